package scrapesvc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/ncecere-raito/scrapeengine/internal/apierr"
	"github.com/ncecere-raito/scrapeengine/internal/breaker"
	"github.com/ncecere-raito/scrapeengine/internal/cache"
	"github.com/ncecere-raito/scrapeengine/internal/config"
	"github.com/ncecere-raito/scrapeengine/internal/crawlrun"
	"github.com/ncecere-raito/scrapeengine/internal/extraction"
	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/ncecere-raito/scrapeengine/internal/orchestrator"
	"github.com/ncecere-raito/scrapeengine/internal/progress"
	"github.com/ncecere-raito/scrapeengine/internal/ratelimit"
	"github.com/ncecere-raito/scrapeengine/internal/scraperadapters"
	"github.com/ncecere-raito/scrapeengine/internal/session"
)

// AuthRequiredError is returned when a job targets a domain whose scraper
// requires session data that isn't available, per spec.md §4.16 step 3:
// "do not attempt anonymous scrape for that host".
type AuthRequiredError struct {
	Domain      string
	Instruction string
}

func (e *AuthRequiredError) Error() string { return e.Instruction }

// Service is the Scrape Service: spec.md §4.16's end-to-end job driver.
type Service struct {
	Cfg          *config.Config
	Cache        *cache.Manager
	RateLimiter  *ratelimit.Limiter
	Breakers     *breaker.Registry
	Orchestrator *orchestrator.Harness
	Extraction   *extraction.Manager
	Sessions     *session.Store
	Progress     *progress.Bus
	Log          zerolog.Logger

	// AuthRequiredDomains maps a registrable domain to the fixed
	// instruction string returned when no session is on file for it,
	// per spec.md §7's "authenticated-host denial returns a fixed
	// instruction string listing the exact cookies needed".
	AuthRequiredDomains map[string]string
}

// Run drives job through its full lifecycle: cache lookup, tier
// selection/orchestration, validation, caching, extraction, completion —
// each stage transition emitted as a progress.Event, the whole internal
// run retried on retryable failures up to cfg.MaxRetries, waiting
// apierr.RetryAfter's delay (a per-category hint, else exponential
// backoff with jitter) between attempts.
func (s *Service) Run(ctx context.Context, job *Job) error {
	emitter := s.Progress.For(job.ID)
	job.Status = progress.StatusRunning
	started := time.Now()
	job.StartedAt = &started
	emitter.Emit(progress.StatusRunning, "job started", 0, nil)

	maxRetries := s.Cfg.MaxRetries
	baseDelay := time.Duration(s.Cfg.RetryBackoffBaseMs) * time.Millisecond

	// The wait before each retry is the delay apierr.RetryAfter computes for
	// the failure; operation stores it in bo.Interval before returning.
	bo := backoff.NewConstantBackOff(baseDelay)
	wrapped := backoff.WithMaxRetries(bo, uint64(maxOrZero(maxRetries)))
	ctxBackoff := backoff.WithContext(wrapped, ctx)

	attempt := 0
	operation := func() error {
		if job.cancelRequested() {
			return backoff.Permanent(context.Canceled)
		}
		err := s.runOnce(ctx, job, emitter)
		if err == nil {
			return nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		if !apierr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		attempt++
		delay := apierr.RetryAfter(err, attempt, baseDelay)
		bo.Interval = delay
		emitter.Emit(progress.StatusRunning, fmt.Sprintf("retrying after %s: %v", delay, err), 0, nil)
		return err
	}

	err := backoff.Retry(operation, ctxBackoff)

	completed := time.Now()
	job.CompletedAt = &completed

	if err != nil {
		if job.cancelRequested() {
			job.Status = progress.StatusCancelled
			emitter.Emit(progress.StatusCancelled, "job cancelled", 100, job)
			return nil
		}
		job.Status = progress.StatusFailed
		job.ErrorMessage = err.Error()
		emitter.Emit(progress.StatusFailed, err.Error(), 100, job)
		return err
	}

	job.Status = progress.StatusCompleted
	emitter.Emit(progress.StatusCompleted, "job completed", 100, job)
	return nil
}

func maxOrZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// runOnce executes steps 1-8 of spec.md §4.16 exactly once (no retry logic
// here; Run's backoff wrapper is the only retry boundary).
func (s *Service) runOnce(ctx context.Context, job *Job, emitter *progress.Emitter) error {
	if job.cancelRequested() {
		return context.Canceled
	}

	// Step 3: session requirement gate, before any network I/O.
	cookies, sessionErr := s.resolveSession(job)
	if sessionErr != nil {
		return backoff.Permanent(sessionErr)
	}

	// Step 1: cache lookup.
	cacheKey := cache.ScrapeKey(job.URL, string(job.ScraperTier), job.TaskDescription)

	if s.Cfg.CacheMode == config.CacheEnabled || s.Cfg.CacheMode == config.CacheReadOnly {
		var cached model.ScrapedResult
		if found, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
			cached.FromCache = true
			job.Result = &cached
			job.FromCache = true
			emitter.Emit(progress.StatusRunning, "served from cache", 50, nil)
			return s.maybeExtract(ctx, job, emitter)
		}
	}

	if job.cancelRequested() {
		return context.Canceled
	}

	// Rate-limit outbound fetches by host.
	if s.RateLimiter != nil {
		decision, _ := s.RateLimiter.Allow(ctx, hostKey(job.URL), time.Now())
		if !decision.Allowed {
			return apierr.New(apierr.RateLimited, "rate limit exceeded for host")
		}
	}

	opts := job.Options.toScraperOptions(cookies)

	// Step 2/4: tier selection + scraper invocation (circuit-breaker
	// wrapping per tier happens inside the orchestrator harness).
	if job.MultiPage.Enabled {
		if err := s.runCrawl(ctx, job, opts, emitter); err != nil {
			return err
		}
	} else {
		orchResult, err := s.orchestrate(ctx, job, opts, func(msg string) {
			emitter.Emit(progress.StatusRunning, msg, 40, nil)
		})
		if err != nil {
			return classifyOrchestratorError(err)
		}
		job.Orchestration = &orchResult
		job.Result = orchResult.FinalResult
	}

	if job.Result == nil {
		return apierr.New(apierr.Unknown, "no result produced")
	}

	// Step 5: minimum raw payload length, per spec.md §4.16.
	if len(job.Result.HTML) < 100 {
		return apierr.New(apierr.ParseError, "scraped html below minimum length")
	}

	// Step 6: persist + cache.
	if s.Cfg.CacheMode == config.CacheEnabled || s.Cfg.CacheMode == config.CacheBypass {
		ttl := time.Duration(s.Cfg.CacheTTLS) * time.Second
		_ = s.Cache.SetJSON(ctx, cacheKey, job.Result, ttl)
	}
	emitter.Emit(progress.StatusRunning, "scrape accepted", 80, nil)

	// Step 7/8: extraction, then completion.
	return s.maybeExtract(ctx, job, emitter)
}

// maybeExtract runs the Extraction Manager when a task description is
// present and an AI collaborator is configured, wrapped by its own
// circuit breaker per spec.md §4.16 step 7.
func (s *Service) maybeExtract(ctx context.Context, job *Job, emitter *progress.Emitter) error {
	if job.TaskDescription == "" || s.Extraction == nil || job.Result == nil {
		return nil
	}

	extractionCtx := extraction.Context{
		HTML:            job.Result.HTML,
		Markdown:        job.Result.Markdown,
		Text:            job.Result.Text,
		URL:             job.URL,
		TaskDescription: job.TaskDescription,
	}

	var result extraction.Result
	runFn := func(c context.Context) error {
		result = s.Extraction.ExtractWithFallback(c, extractionCtx, []extraction.Tag{extraction.TagLLM})
		return nil
	}

	if s.Breakers != nil {
		b := s.Breakers.Get("ai_extraction")
		if err := b.Execute(ctx, runFn); err != nil {
			emitter.Emit(progress.StatusRunning, "extraction skipped: "+err.Error(), 90, nil)
			return nil
		}
	} else {
		_ = runFn(ctx)
	}

	entities := make([]model.Entity, 0, len(result.Entities))
	for _, e := range result.Entities {
		entities = append(entities, model.Entity(e))
	}
	job.Extraction = &model.ExtractionResult{
		Entities:        entities,
		Success:         result.Success,
		Confidence:      result.Confidence,
		StrategyTag:     string(result.StrategyTag),
		ExecutionTimeMs: result.ExecutionTimeMs,
		Error:           result.Error,
		Metadata:        result.Metadata,
	}
	emitter.Emit(progress.StatusRunning, "extraction complete", 95, nil)
	return nil
}

// runCrawl drives a multi-page job through the crawl-graph engine,
// re-entering the Orchestrator per discovered URL exactly as spec.md §2's
// top-level control flow describes.
func (s *Service) runCrawl(ctx context.Context, job *Job, opts scraperadapters.Options, emitter *progress.Emitter) error {
	fetcher := &orchestratorPageFetcher{
		svc:     s,
		job:     job,
		opts:    opts,
		emitter: emitter,
	}

	results, stats := crawlrun.Run(ctx, job.URL, job.MultiPage.Config, job.TaskDescription, fetcher, func(page model.CrawlPage, message string) {
		emitter.Emit(progress.StatusRunning, fmt.Sprintf("%s: %s", page.URL, message), 40, nil)
	}, s.Log)

	job.CrawlStats = &stats
	primarySet := false
	for _, r := range results {
		job.PageResults = append(job.PageResults, PageOutcome{Page: r.Page, Result: r.Result})
		if r.Result != nil && !primarySet {
			job.Result = r.Result // seed page's result represents the job's primary ScrapedResult
			primarySet = true
		}
	}

	if job.Result == nil && stats.PagesVisited == 0 {
		return apierr.New(apierr.Unknown, "crawl visited no pages")
	}
	return nil
}

// orchestrate runs job's seed URL through the Orchestrator harness,
// choosing between AUTO's configured strategy cascade and an explicit
// caller-named tier per spec.md §6's scraper_tier job option.
func (s *Service) orchestrate(ctx context.Context, job *Job, opts scraperadapters.Options, emit orchestrator.EmitProgress) (model.OrchestrationResult, error) {
	if job.ScraperTier == TierAuto {
		return s.Orchestrator.Run(ctx, orchestrator.StrategyTag(s.Cfg.DefaultStrategy), job.URL, job.TaskDescription, opts, emit)
	}
	return s.Orchestrator.RunExplicit(ctx, scraperadapters.Tier(job.ScraperTier), job.URL, job.TaskDescription, opts, emit)
}

// orchestratorPageFetcher adapts the Orchestrator harness to crawlrun's
// PageFetcher contract, re-running tier selection/escalation per page.
type orchestratorPageFetcher struct {
	svc     *Service
	job     *Job
	opts    scraperadapters.Options
	emitter *progress.Emitter
}

func (f *orchestratorPageFetcher) Fetch(ctx context.Context, pageURL string) (string, model.ScrapedResult, error) {
	result, err := f.orchestrateURL(ctx, pageURL)
	if err != nil {
		return "", model.ScrapedResult{}, classifyOrchestratorError(err)
	}
	if result.FinalResult == nil {
		return "", model.ScrapedResult{}, apierr.New(apierr.Unknown, "orchestrator produced no result")
	}
	return result.FinalResult.HTML, *result.FinalResult, nil
}

func (f *orchestratorPageFetcher) orchestrateURL(ctx context.Context, pageURL string) (model.OrchestrationResult, error) {
	emit := func(msg string) {
		f.emitter.Emit(progress.StatusRunning, pageURL+": "+msg, 40, nil)
	}
	if f.job.ScraperTier == TierAuto {
		return f.svc.Orchestrator.Run(ctx, orchestrator.StrategyTag(f.svc.Cfg.DefaultStrategy), pageURL, f.job.TaskDescription, f.opts, emit)
	}
	return f.svc.Orchestrator.RunExplicit(ctx, scraperadapters.Tier(f.job.ScraperTier), pageURL, f.job.TaskDescription, f.opts, emit)
}

// resolveSession loads session cookies for job's host when a domain in
// AuthRequiredDomains matches, per spec.md §4.16 step 3.
func (s *Service) resolveSession(job *Job) ([]model.Cookie, error) {
	domain := hostKey(job.URL)
	instruction, required := s.AuthRequiredDomains[domain]
	if !required {
		return nil, nil
	}

	if s.Sessions == nil {
		return nil, &AuthRequiredError{Domain: domain, Instruction: instruction}
	}

	data, err := s.Sessions.Load(session.Key(domain, ""))
	if err != nil || data == nil {
		return nil, &AuthRequiredError{Domain: domain, Instruction: instruction}
	}
	return data.Cookies, nil
}

// classifyOrchestratorError converts an orchestrator failure into the
// apierr taxonomy so Run's backoff wrapper can judge retryability.
func classifyOrchestratorError(err error) error {
	var allFailed *orchestrator.ErrAllScrapersFailed
	if asAllFailed(err, &allFailed) {
		cat := apierr.Classify(allFailed.LastErr, 0)
		return apierr.Wrap(cat, err, "all scraper tiers failed")
	}
	return apierr.Wrap(apierr.Unknown, err, "orchestration failed")
}

func asAllFailed(err error, target **orchestrator.ErrAllScrapersFailed) bool {
	if e, ok := err.(*orchestrator.ErrAllScrapersFailed); ok {
		*target = e
		return true
	}
	return false
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
