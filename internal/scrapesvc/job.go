// Package scrapesvc implements spec.md §4.16: the Scrape Service, the
// end-to-end driver tying cache, rate limiter, session store, circuit
// breakers, the orchestrator, the processing pipeline, and the extraction
// manager together into one job's lifecycle. Grounded on the teacher's
// internal/jobs/runner.go polling semaphore/ticker worker pool (kept as
// this service's concurrency model, generalized from *db.Job rows to an
// injectable JobSource so the dropped Postgres store isn't required) and
// internal/services/scrape.go (the ScrapedResult-to-Document assembly,
// trimmed of the dropped Firecrawl formats[] toggle).
package scrapesvc

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/ncecere-raito/scrapeengine/internal/progress"
	"github.com/ncecere-raito/scrapeengine/internal/scraperadapters"
)

// Tier names one of spec.md §6's job-surface scraper_tier values. AUTO
// defers tier selection to the Orchestrator's configured strategy.
type Tier string

const (
	TierAuto          Tier = "AUTO"
	TierHTTP          Tier = "HTTP"
	TierReader        Tier = "READER"
	TierHeadless      Tier = "HEADLESS"
	TierSmartHeadless Tier = "SMART_HEADLESS"
	TierCheerio       Tier = "CHEERIO"
	TierAIAgent       Tier = "AI_AGENT"
)

// JobOptions mirrors the job options spec.md §6 lists.
type JobOptions struct {
	UseProxy           bool
	BlockResources     bool
	IncludeScreenshots bool
	SessionBundle      *model.SessionData
}

func (o JobOptions) toScraperOptions(cookies []model.Cookie) scraperadapters.Options {
	return scraperadapters.Options{
		UseProxy:       o.UseProxy,
		BlockResources: o.BlockResources,
		IncludeScreens: o.IncludeScreenshots,
		SessionCookies: cookies,
	}
}

// MultiPageOptions carries spec.md §3's CrawlConfig when a job crawls
// beyond its seed URL.
type MultiPageOptions struct {
	Enabled bool
	Config  model.CrawlConfig
}

// Job is one scrape request's mutable lifecycle record. The Scrape
// Service exclusively owns a Job's lifetime and mutates it, per spec.md
// §3's ownership rule.
type Job struct {
	ID              string
	URL             string
	TaskDescription string
	ScraperTier     Tier
	Options         JobOptions
	MultiPage       MultiPageOptions

	Status        progress.Status
	Result        *model.ScrapedResult
	PageResults   []PageOutcome // populated for multi-page jobs
	CrawlStats    *model.CrawlStats
	Extraction    *model.ExtractionResult
	Orchestration *model.OrchestrationResult

	ErrorMessage string
	FromCache    bool

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	mu        sync.Mutex
	cancelled bool
}

// PageOutcome is one page's record within a multi-page crawl job.
type PageOutcome struct {
	Page   model.CrawlPage
	Result *model.ScrapedResult
}

// NewJob constructs a queued Job with a fresh v7-preferred ID, mirroring
// the teacher's uuidMustV7 helper in internal/crawl/jobs.go.
func NewJob(targetURL, taskDescription string, tier Tier, opts JobOptions, multiPage MultiPageOptions) *Job {
	return &Job{
		ID:              uuidMustV7(),
		URL:             targetURL,
		TaskDescription: taskDescription,
		ScraperTier:     tier,
		Options:         opts,
		MultiPage:       multiPage,
		Status:          progress.StatusQueued,
		CreatedAt:       time.Now(),
	}
}

// uuidMustV7 prefers a v7 (time-ordered) UUID, falling back to v4 when v7
// generation fails, exactly as the teacher's jobs.go helper does.
func uuidMustV7() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// RequestCancel marks the job cancelled. Valid only from queued or
// running; Service.Run observes this flag at each suspension point and
// unwinds cleanly rather than forcibly killing in-flight I/O, per
// spec.md §5.
func (j *Job) RequestCancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != progress.StatusQueued && j.Status != progress.StatusRunning {
		return false
	}
	j.cancelled = true
	return true
}

func (j *Job) cancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// JobSource is the injectable job-queue collaborator replacing the
// teacher's Postgres-backed *store.Store: something that can hand the
// Runner pending jobs and receive status updates. The persistence store
// itself remains an external Non-goal (spec.md §1); this is only the
// interface the core consumes from it.
type JobSource interface {
	ListPending(limit int) ([]*Job, error)
	Save(job *Job) error
}
