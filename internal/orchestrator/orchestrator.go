// Package orchestrator implements spec.md §4.14: the Scraper Orchestrator.
// A common harness runs an ordered tier list, timing and validating each
// content-present attempt, and stops at the first tier whose result the
// Content Validator accepts (or whose strategy accepts unconditionally).
// Strategy selection is a fixed switch (planFor) from strategy tag to a
// tier list plus accept policy; there is no strategy registry and no
// per-strategy interface, so the four strategies are the only ones Run
// resolves.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/ncecere-raito/scrapeengine/internal/breaker"
	"github.com/ncecere-raito/scrapeengine/internal/metrics"
	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/ncecere-raito/scrapeengine/internal/scraperadapters"
	"github.com/ncecere-raito/scrapeengine/internal/validator"
)

// StrategyTag names one of the four fixed strategies.
type StrategyTag string

const (
	StrategySpeedFirst   StrategyTag = "speed_first"
	StrategyQualityFirst StrategyTag = "quality_first"
	StrategyCostFirst    StrategyTag = "cost_first"
	StrategyAdaptive     StrategyTag = "adaptive"
)

// ErrAllScrapersFailed is raised when no tier in a strategy produced an
// accepted result: each tier either failed, produced no content-present
// output, or was rejected by the strategy's accept policy.
type ErrAllScrapersFailed struct {
	LastErr error
}

func (e *ErrAllScrapersFailed) Error() string {
	if e.LastErr == nil {
		return "all scrapers failed"
	}
	return "all scrapers failed: " + e.LastErr.Error()
}

func (e *ErrAllScrapersFailed) Unwrap() error { return e.LastErr }

// EmitProgress reports harness-level progress (tier start, tier result).
type EmitProgress func(message string)

// Harness runs tier lists against a scraper registry, with per-dependency
// circuit breakers and a validator shared across all strategies.
type Harness struct {
	Scrapers  *scraperadapters.Registry
	Validator *validator.Validator
	Breakers  *breaker.Registry
}

func New(scrapers *scraperadapters.Registry, v *validator.Validator, breakers *breaker.Registry) *Harness {
	return &Harness{Scrapers: scrapers, Validator: v, Breakers: breakers}
}

// accept decides, given a tier's validator verdict and its position in the
// plan, whether to stop here.
type acceptFn func(verdict validator.Result, tierIndex, tierCount int) bool

// tierPlan is one strategy's fixed ordered tier list plus its accept rule.
type tierPlan struct {
	tiers  []scraperadapters.Tier
	accept acceptFn
}

// contentPresent is the harness's basic check: text>100 chars, or any of
// html/text/markdown non-empty, per spec.md §4.14.
func contentPresent(r *model.ScrapedResult) bool {
	return r.ContentPresent()
}

// Run executes strategyTag's tier plan against targetURL, returning an
// OrchestrationResult on success (even from the last tier) or
// ErrAllScrapersFailed when no tier produced an accepted result.
func (h *Harness) Run(ctx context.Context, strategyTag StrategyTag, targetURL, taskDescription string, opts scraperadapters.Options, emit EmitProgress) (model.OrchestrationResult, error) {
	plan := h.planFor(strategyTag, targetURL)

	result, err := h.runPlan(ctx, plan, string(strategyTag), targetURL, taskDescription, opts, emit)
	if err != nil && strategyTag == StrategyAdaptive {
		if emit != nil {
			emit("adaptive tier list exhausted, falling back to speed_first")
		}
		fallbackPlan := h.planFor(StrategySpeedFirst, targetURL)
		result, err = h.runPlan(ctx, fallbackPlan, string(StrategySpeedFirst), targetURL, taskDescription, opts, emit)
		if err == nil {
			if result.Metadata == nil {
				result.Metadata = map[string]any{}
			}
			result.Metadata["adaptive_selection_failed"] = true
		}
	}
	return result, err
}

// RunExplicit runs a single caller-chosen tier with no escalation, for job
// requests that name a scraper_tier directly instead of AUTO (spec.md §6).
// The tier is still validated for scoring/metadata purposes, but its
// result is accepted unconditionally once content-present, matching a
// caller's explicit choice overriding strategy policy.
func (h *Harness) RunExplicit(ctx context.Context, tier scraperadapters.Tier, targetURL, taskDescription string, opts scraperadapters.Options, emit EmitProgress) (model.OrchestrationResult, error) {
	plan := tierPlan{
		tiers:  []scraperadapters.Tier{tier},
		accept: func(validator.Result, int, int) bool { return true },
	}
	return h.runPlan(ctx, plan, "explicit:"+string(tier), targetURL, taskDescription, opts, emit)
}

func (h *Harness) runPlan(ctx context.Context, plan tierPlan, strategyTag, targetURL, taskDescription string, opts scraperadapters.Options, emit EmitProgress) (model.OrchestrationResult, error) {
	out := model.OrchestrationResult{StrategyTag: strategyTag}
	start := time.Now()

	var lastErr error

	for i, tier := range plan.tiers {
		scraper, ok := h.Scrapers.Get(tier)
		if !ok {
			lastErr = &scraperadapters.UnregisteredTierError{Tier: string(tier)}
			continue
		}

		attemptStart := time.Now()
		if emit != nil {
			emit("trying tier " + string(tier))
		}

		var scraped model.ScrapedResult
		var scrapeErr error

		runFn := func(c context.Context) error {
			var innerErr error
			scraped, innerErr = scraper.Scrape(c, targetURL, "", opts, func(msg string) {
				if emit != nil {
					emit(string(tier) + ": " + msg)
				}
			})
			return innerErr
		}

		if h.Breakers != nil {
			b := h.Breakers.Get(string(tier))
			scrapeErr = b.Execute(ctx, runFn)
		} else {
			scrapeErr = runFn(ctx)
		}

		attempt := model.Attempt{
			ScraperTag:      string(tier),
			ExecutionTimeMs: time.Since(attemptStart).Milliseconds(),
		}

		if scrapeErr != nil {
			attempt.Error = scrapeErr.Error()
			out.Attempts = append(out.Attempts, attempt)
			lastErr = scrapeErr
			metrics.RecordTierAttempt(strategyTag, string(tier), "failed", attempt.ExecutionTimeMs)
			continue
		}

		attempt.Success = true
		attempt.Result = &scraped

		if !contentPresent(&scraped) {
			out.Attempts = append(out.Attempts, attempt)
			lastErr = errContentNotPresent
			metrics.RecordTierAttempt(strategyTag, string(tier), "content_absent", attempt.ExecutionTimeMs)
			continue
		}

		verdict := h.Validator.Validate(ctx, validator.Input{
			HTML:            scraped.HTML,
			Text:            scraped.Text,
			Markdown:        scraped.Markdown,
			URL:             targetURL,
			TaskDescription: taskDescription,
			PageTitle:       scraped.PageTitle,
		})
		score := verdict.QualityScore
		attempt.QualityScore = &score
		attempt.ValidationReason = verdict.Reason

		// spec.md §9 open question (a): a validator error on a
		// content-present tier is accepted outright, never escalated,
		// regardless of the strategy's own accept policy (Quality-First's
		// threshold check would otherwise reject the fail-open score).
		accepted := verdict.Sufficient
		switch {
		case verdict.JudgeErrored:
			accepted = true
		case plan.accept != nil:
			accepted = plan.accept(verdict, i, len(plan.tiers))
		}

		out.Attempts = append(out.Attempts, attempt)

		if accepted {
			metrics.RecordTierAttempt(strategyTag, string(tier), "success", attempt.ExecutionTimeMs)
			out.FinalResult = &scraped
			out.ScraperThatWon = string(tier)
			out.TotalTimeMs = time.Since(start).Milliseconds()
			return out, nil
		}
		metrics.RecordTierAttempt(strategyTag, string(tier), "rejected", attempt.ExecutionTimeMs)
	}

	return out, &ErrAllScrapersFailed{LastErr: lastErr}
}

var errContentNotPresent = &contentNotPresentError{}

type contentNotPresentError struct{}

func (*contentNotPresentError) Error() string { return "scraper result had no content present" }

// planFor builds the fixed tier list and accept rule for a strategy,
// resolving Adaptive's URL-heuristic selection per spec.md §4.14.
func (h *Harness) planFor(tag StrategyTag, targetURL string) tierPlan {
	switch tag {
	case StrategyQualityFirst:
		return tierPlan{
			tiers: []scraperadapters.Tier{scraperadapters.TierSmartHeadless, scraperadapters.TierReader, scraperadapters.TierHTTP},
			accept: func(verdict validator.Result, tierIndex, tierCount int) bool {
				switch tierIndex {
				case 0:
					return verdict.QualityScore >= 0.7
				case 1:
					return verdict.QualityScore >= 0.6
				default:
					return true
				}
			},
		}
	case StrategyCostFirst:
		tiers := []scraperadapters.Tier{scraperadapters.TierHTTP, scraperadapters.TierCheerio, scraperadapters.TierReader, scraperadapters.TierHeadless}
		return tierPlan{
			tiers: tiers,
			accept: func(verdict validator.Result, tierIndex, tierCount int) bool {
				if tierIndex == tierCount-1 {
					return true
				}
				return verdict.Sufficient
			},
		}
	case StrategyAdaptive:
		return tierPlan{tiers: adaptiveTierList(targetURL)}
	default: // speed_first
		return tierPlan{
			tiers: []scraperadapters.Tier{scraperadapters.TierHTTP, scraperadapters.TierSmartHeadless, scraperadapters.TierStandardHeadless},
		}
	}
}

// adaptiveTierList picks an ordered tier list by URL heuristics, per
// spec.md §4.14's Adaptive strategy.
func adaptiveTierList(targetURL string) []scraperadapters.Tier {
	lower := strings.ToLower(targetURL)

	headlessFirst := []scraperadapters.Tier{scraperadapters.TierSmartHeadless, scraperadapters.TierStandardHeadless, scraperadapters.TierHTTP}
	httpFirst := []scraperadapters.Tier{scraperadapters.TierHTTP, scraperadapters.TierSmartHeadless, scraperadapters.TierStandardHeadless}

	spaIndicators := []string{"/#/", "/#!/", "_escaped_fragment_"}
	for _, ind := range spaIndicators {
		if strings.Contains(lower, ind) {
			return headlessFirst
		}
	}

	for _, kw := range []string{"spa", "react", "vue", "angular"} {
		if strings.Contains(lower, kw) {
			return headlessFirst
		}
	}
	for _, kw := range []string{"shop", "store", "product"} {
		if strings.Contains(lower, kw) {
			return headlessFirst
		}
	}
	for _, kw := range []string{"blog", "article", "news"} {
		if strings.Contains(lower, kw) {
			return httpFirst
		}
	}

	return httpFirst
}
