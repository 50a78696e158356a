// Package aiclient wraps github.com/anthropics/anthropic-sdk-go as the
// reference AI collaborator the Content Validator and Extraction Manager's
// LLM strategy call out to (spec.md's "downstream LLM extractor" and
// validator quality-scoring model are both external collaborators; this is
// the one concrete binding this repo ships). Replaces the teacher's
// hand-rolled three-provider net/http clients in internal/llm with a single
// SDK client, in the manner of the pack's refyne and TelegramDigestBot
// Anthropic providers.
package aiclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps an Anthropic SDK client with a fixed model.
type Client struct {
	sdk       anthropic.Client
	model     string
	available bool
}

// Config configures New.
type Config struct {
	APIKey     string
	Model      string
	MaxRetries int
}

func New(cfg Config) *Client {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &Client{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		available: cfg.APIKey != "",
	}
}

// Available reports whether this client has an API key configured; callers
// (the validator, the Extraction Manager's LLM strategy) use this to
// implement isAvailable() without making a network call.
func (c *Client) Available() bool {
	return c.available
}

// JSONCompletion sends system+user text and a JSON schema as a tool
// definition, forcing the model to answer via a single tool call so the
// response parses as structured data without prose wrapping.
func (c *Client) JSONCompletion(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error) {
	properties, _ := schema["properties"].(map[string]any)
	required := stringSlice(schema["required"])

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        "emit_result",
					Description: anthropic.String("Emit the structured result"),
					InputSchema: anthropic.ToolInputSchemaParam{
						Type:       "object",
						Properties: properties,
						Required:   required,
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceParamOfTool("emit_result"),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	for _, block := range resp.Content {
		if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			raw, err := json.Marshal(toolUse.Input)
			if err != nil {
				return nil, fmt.Errorf("marshal tool input: %w", err)
			}
			var out map[string]any
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("unmarshal tool input: %w", err)
			}
			return out, nil
		}
	}

	return nil, fmt.Errorf("anthropic response carried no tool_use block")
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
