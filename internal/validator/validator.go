// Package validator implements spec.md §4.13: the Content Validator.
// Computes a quality score and sufficiency verdict for one scraped page,
// caching verdicts by a fingerprint of (text, task_description), and
// failing open (sufficient=true, score=0.5) whenever the underlying
// judgment call itself errors, per spec.md §4.13 and §7.
package validator

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/ncecere-raito/scrapeengine/internal/cache"
	"github.com/ncecere-raito/scrapeengine/internal/metrics"
)

// Input is what the Content Validator judges.
type Input struct {
	HTML            string
	Text            string
	Markdown        string
	URL             string
	TaskDescription string
	PageTitle       string
}

// Result is the Content Validator's verdict.
type Result struct {
	QualityScore     float64
	Sufficient       bool
	Reason           string
	NeedsInteraction bool
	SuggestedActions []string
	// JudgeErrored marks a fail-open verdict produced because the
	// underlying Judge itself raised, per spec.md §9 open question (a):
	// a content-present tier whose validator call errors is accepted as
	// current-tier-wins, never escalated, regardless of which strategy's
	// accept policy is in play (not all of them key off Sufficient/
	// QualityScore alone).
	JudgeErrored bool
}

const failOpenReason = "validation failed, assuming sufficient"

// Judge scores content quality and decides sufficiency; ai may be nil, in
// which case judgment falls back to the heuristic-only path.
type Judge interface {
	Score(ctx context.Context, in Input) (Result, error)
}

// Validator wraps a Judge with the cache-lookup and fail-open behavior
// spec.md §4.13 requires around it.
type Validator struct {
	Judge Judge
	Cache *cache.Manager
	TTL   time.Duration
}

func New(judge Judge, cacheManager *cache.Manager, ttl time.Duration) *Validator {
	return &Validator{Judge: judge, Cache: cacheManager, TTL: ttl}
}

// Validate returns a cached verdict when available, otherwise invokes the
// Judge and caches the outcome. A Judge error is converted into the
// fail-open default rather than propagated.
func (v *Validator) Validate(ctx context.Context, in Input) Result {
	if strings.TrimSpace(in.Text) == "" {
		return Result{QualityScore: 0, Sufficient: false, Reason: "empty text"}
	}

	key := fingerprint(in.Text, in.TaskDescription)

	if v.Cache != nil {
		var cached Result
		if found, err := v.Cache.GetJSON(ctx, key, &cached); err == nil && found {
			metrics.RecordValidatorVerdict(cached.Sufficient)
			return cached
		}
	}

	result, err := v.Judge.Score(ctx, in)
	if err != nil {
		result = Result{QualityScore: 0.5, Sufficient: true, Reason: failOpenReason, JudgeErrored: true}
	}

	if v.Cache != nil {
		_ = v.Cache.SetJSON(ctx, key, result, v.TTL)
	}

	metrics.RecordValidatorVerdict(result.Sufficient)
	return result
}

// fingerprint builds the cache key spec.md §4.13 describes: a fingerprint
// of (text, task_description).
func fingerprint(text, taskDescription string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + taskDescription))
	return fmt.Sprintf("validator:%x", sum[:8])
}

// HeuristicJudge is a Judge that scores quality from structural signals
// alone (text length, presence of a title) without calling
// an LLM — the path used when no AI client is configured.
type HeuristicJudge struct{}

func (HeuristicJudge) Score(_ context.Context, in Input) (Result, error) {
	textLen := len(strings.TrimSpace(in.Text))

	switch {
	case textLen == 0:
		return Result{QualityScore: 0, Sufficient: false, Reason: "empty text"}, nil
	case textLen < 100:
		return Result{
			QualityScore:     0.2,
			Sufficient:       false,
			Reason:           "content too short to be useful",
			NeedsInteraction: true,
			SuggestedActions: []string{"wait_for_dynamic_content", "scroll_to_load_more"},
		}, nil
	case textLen < 500:
		return Result{QualityScore: 0.55, Sufficient: true, Reason: "moderate length content"}, nil
	default:
		score := 0.7
		if in.PageTitle != "" {
			score += 0.1
		}
		if score > 1 {
			score = 1
		}
		return Result{QualityScore: score, Sufficient: true, Reason: "sufficient length content"}, nil
	}
}

// AIJudge scores quality via an aiclient-backed LLM call, falling back to
// a HeuristicJudge when the AI client reports itself unavailable.
type AIJudge struct {
	AI interface {
		Available() bool
		JSONCompletion(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error)
	}
	Fallback Judge
}

var scoreSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"quality_score": map[string]any{"type": "number"},
		"sufficient":    map[string]any{"type": "boolean"},
		"reason":        map[string]any{"type": "string"},
	},
	"required": []any{"quality_score", "sufficient", "reason"},
}

func (j AIJudge) Score(ctx context.Context, in Input) (Result, error) {
	if j.AI == nil || !j.AI.Available() {
		if j.Fallback != nil {
			return j.Fallback.Score(ctx, in)
		}
		return Result{}, fmt.Errorf("no AI client configured and no fallback judge set")
	}

	system := "You judge whether scraped web content sufficiently answers a task. Respond only via the emit_result tool."
	user := fmt.Sprintf("URL: %s\nTask: %s\nPage title: %s\nContent:\n%s",
		in.URL, in.TaskDescription, in.PageTitle, truncate(in.Text, 8000))

	out, err := j.AI.JSONCompletion(ctx, system, user, scoreSchema)
	if err != nil {
		return Result{}, err
	}

	score, _ := out["quality_score"].(float64)
	sufficient, _ := out["sufficient"].(bool)
	reason, _ := out["reason"].(string)

	return Result{QualityScore: score, Sufficient: sufficient, Reason: reason}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
