package extraction

import (
	"context"
	"regexp"
	"time"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
var urlRe = regexp.MustCompile(`https?://[^\s<>"']+`)

// RuleBasedStrategy extracts simple structural entities (emails, links)
// with regexes instead of an AI call — always available, used as the
// Extraction Manager's fallback-of-last-resort.
type RuleBasedStrategy struct{}

func (RuleBasedStrategy) Tag() Tag          { return TagRuleBased }
func (RuleBasedStrategy) IsAvailable() bool { return true }

func (RuleBasedStrategy) Extract(_ context.Context, extractionCtx Context) (Result, error) {
	start := time.Now()

	source := extractionCtx.Text
	if source == "" {
		source = extractionCtx.Markdown
	}

	var entities []Entity
	for _, email := range dedupe(emailRe.FindAllString(source, -1)) {
		entities = append(entities, Entity{"type": "email", "value": email})
	}
	for _, link := range dedupe(urlRe.FindAllString(source, -1)) {
		entities = append(entities, Entity{"type": "url", "value": link})
	}

	return Result{
		Entities:        entities,
		Success:         len(entities) > 0,
		StrategyTag:     TagRuleBased,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
