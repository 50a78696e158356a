package extraction

import (
	"context"
	"fmt"
	"time"
)

// aiClient is the subset of aiclient.Client an LLM strategy needs; kept as
// a local interface so this package does not import aiclient directly,
// mirroring the teacher's clientFactory indirection in extract.Service.
type aiClient interface {
	Available() bool
	JSONCompletion(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error)
}

// LLMStrategy extracts entities by asking an AI collaborator to emit a
// structured tool call, adapted from the teacher's extract.Service.Extract
// (which forwarded markdown + field specs to a configured llm.Client).
type LLMStrategy struct {
	AI aiClient
}

func (LLMStrategy) Tag() Tag { return TagLLM }

func (s LLMStrategy) IsAvailable() bool {
	return s.AI != nil && s.AI.Available()
}

func (s LLMStrategy) Extract(ctx context.Context, extractionCtx Context) (Result, error) {
	start := time.Now()

	if !s.IsAvailable() {
		return Result{Success: false, StrategyTag: TagLLM, Error: "llm client unavailable"}, nil
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entities": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "object"},
			},
		},
		"required": []any{"entities"},
	}

	system := "You extract structured entities from web page content for an automated task. Respond only via the emit_result tool."
	content := extractionCtx.Markdown
	if content == "" {
		content = extractionCtx.Text
	}
	user := fmt.Sprintf("URL: %s\nTask: %s\nEntity types: %v\nContent:\n%s",
		extractionCtx.URL, extractionCtx.TaskDescription, extractionCtx.EntityTypes, truncate(content, 12000))

	out, err := s.AI.JSONCompletion(ctx, system, user, schema)
	if err != nil {
		return Result{
			Success:         false,
			StrategyTag:     TagLLM,
			Error:           err.Error(),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	rawEntities, _ := out["entities"].([]any)
	entities := make([]Entity, 0, len(rawEntities))
	for _, raw := range rawEntities {
		if m, ok := raw.(map[string]any); ok {
			entities = append(entities, Entity(m))
		}
	}

	return Result{
		Entities:        entities,
		Success:         true,
		StrategyTag:     TagLLM,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
