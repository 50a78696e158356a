// Command scrapeengine wires the engine's collaborators together and runs
// a worker pool draining jobs from an injected JobSource, replacing the
// teacher's cmd/raito-api (fiber server + Postgres store + goose
// migrations) with the minimal wiring this core exposes: the HTTP job API
// and its persistence store stay external Non-goals (spec.md §1), so this
// entrypoint has nothing to listen on and no store to migrate.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ncecere-raito/scrapeengine/internal/aiclient"
	"github.com/ncecere-raito/scrapeengine/internal/breaker"
	"github.com/ncecere-raito/scrapeengine/internal/cache"
	"github.com/ncecere-raito/scrapeengine/internal/config"
	"github.com/ncecere-raito/scrapeengine/internal/extraction"
	"github.com/ncecere-raito/scrapeengine/internal/orchestrator"
	"github.com/ncecere-raito/scrapeengine/internal/progress"
	"github.com/ncecere-raito/scrapeengine/internal/ratelimit"
	"github.com/ncecere-raito/scrapeengine/internal/scraperadapters"
	"github.com/ncecere-raito/scrapeengine/internal/scrapesvc"
	"github.com/ncecere-raito/scrapeengine/internal/session"
	"github.com/ncecere-raito/scrapeengine/internal/validator"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ./config.yaml)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	svc := buildService(cfg, log)

	svc.Progress.Subscribe(func(ev progress.Event) {
		log.Info().
			Str("job_id", ev.JobID).
			Int64("seq", ev.Seq).
			Str("status", string(ev.Status)).
			Int("progress", ev.Progress).
			Str("message", ev.Message).
			Msg("progress")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runWorkerPool(ctx, svc, cfg.MaxConcurrentJobs, log)
}

// buildService wires every collaborator named in spec.md §4: cache,
// rate limiter, circuit breakers, session store, content validator,
// scraper registry, orchestrator harness, and extraction manager.
func buildService(cfg *config.Config, log zerolog.Logger) *scrapesvc.Service {
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var cacheBackend cache.Backend
	if redisClient != nil {
		cacheBackend = &cache.RedisBackend{Client: redisClient}
	}
	cacheMgr := cache.New(cacheBackend, log.With().Str("component", "cache").Logger())

	rateLimiter := ratelimit.New(redisClient, cfg.RateLimitWindowMs, cfg.RateLimitMax, log.With().Str("component", "ratelimit").Logger())

	breakerOpts := breaker.Options{
		ErrorThresholdPct: cfg.CircuitBreaker.ErrorThresholdPct,
		MinRequests:       cfg.CircuitBreaker.MinRequests,
		ResetTimeout:      time.Duration(cfg.CircuitBreaker.ResetTimeoutMs) * time.Millisecond,
	}
	breakers := breaker.NewRegistry(breakerOpts, log.With().Str("component", "breaker").Logger())
	breakers.Get("ai_extraction").OnTransition(func(t breaker.Transition) {
		log.Warn().Str("dependency", t.Dependency).Str("from", string(t.From)).Str("to", string(t.To)).Msg("circuit breaker transition")
	})

	aiClient := aiclient.New(aiclient.Config{
		APIKey: cfg.Anthropic.APIKey,
		Model:  cfg.Anthropic.Model,
	})

	judge := validator.AIJudge{AI: aiClient, Fallback: validator.HeuristicJudge{}}
	contentValidator := validator.New(judge, cacheMgr, time.Hour)

	scrapers := scraperadapters.NewRegistry()
	scrapers.Register(scraperadapters.TierHTTP, scraperadapters.NewHTTPScraper(time.Duration(cfg.HTTPTimeoutMs)*time.Millisecond))
	scrapers.Register(scraperadapters.TierCheerio, scraperadapters.NewCheerioScraper(time.Duration(cfg.HTTPTimeoutMs)*time.Millisecond))
	scrapers.Register(scraperadapters.TierReader, scraperadapters.NewReaderScraper(time.Duration(cfg.ReaderTimeoutMs)*time.Millisecond))
	headlessTimeout := time.Duration(cfg.HeadlessTimeoutMs) * time.Millisecond
	scrapers.Register(scraperadapters.TierHeadless, scraperadapters.NewHeadlessScraper(headlessTimeout, 0))
	scrapers.Register(scraperadapters.TierSmartHeadless, scraperadapters.NewHeadlessScraper(headlessTimeout, 2*time.Second))
	scrapers.Register(scraperadapters.TierStandardHeadless, scraperadapters.NewHeadlessScraper(headlessTimeout, 0))

	harness := orchestrator.New(scrapers, contentValidator, breakers)

	extractionMgr := extraction.NewManager()
	extractionMgr.Register(extraction.LLMStrategy{AI: aiClient})
	extractionMgr.Register(extraction.RuleBasedStrategy{})

	sessionStore := session.New(cfg.Session.StoragePath)

	return &scrapesvc.Service{
		Cfg:          cfg,
		Cache:        cacheMgr,
		RateLimiter:  rateLimiter,
		Breakers:     breakers,
		Orchestrator: harness,
		Extraction:   extractionMgr,
		Sessions:     sessionStore,
		Progress:     progress.NewBus(log.With().Str("component", "progress").Logger()),
		Log:          log,
		AuthRequiredDomains: map[string]string{},
	}
}

// runWorkerPool polls nothing on its own — the injectable scrapesvc.JobSource
// this core depends on (spec.md §1's external job-queue collaborator) isn't
// wired here; this loop is the concurrency shape spec.md §5's "parallel
// workers" describes, ready for a JobSource to be plugged in by whatever
// outer process owns job intake.
func runWorkerPool(ctx context.Context, svc *scrapesvc.Service, workers int, log zerolog.Logger) {
	if workers <= 0 {
		workers = 1
	}
	log.Info().Int("workers", workers).Msg("scrape engine ready")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}
