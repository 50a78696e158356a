// Package model holds the shared data types spec.md §3 defines: the crawl
// graph's records, scrape/processing results, cache entries, rate-limit
// windows, session data, circuit-breaker state, and orchestration records.
package model

import "time"

// PageStatus is a CrawlPage's lifecycle state.
type PageStatus string

const (
	PagePending PageStatus = "pending"
	PageVisited PageStatus = "visited"
	PageSkipped PageStatus = "skipped"
	PageFailed  PageStatus = "failed"
)

// CrawlPage is one node in a crawl run's BFS graph. Invariants (spec.md
// §3): a URL appears at most once across queue+visited combined; a child's
// depth is parent depth + 1; once visited it is never re-enqueued.
type CrawlPage struct {
	URL          string
	Depth        int
	ParentURL    string
	DiscoveredAt time.Time
	VisitedAt    *time.Time
	Status       PageStatus
	Error        string
	Priority     int
}

// CrawlConfig governs a single crawl run.
type CrawlConfig struct {
	MaxPages             int
	MaxDepth             int
	MaxAjaxEndpoints     int
	FollowExternalLinks  bool
	AllowedDomains       []string
	BlockedPatterns      []string
	RespectRobots        bool
	DelayBetweenRequests time.Duration
	Timeout              time.Duration
}

// CrawlStats accumulates counters and timings for one crawl run.
type CrawlStats struct {
	PagesVisited        int
	PagesSkipped        int
	PagesFailed         int
	AjaxEndpointsFetched int
	LinksDiscovered      int
	DuplicatesDetected   int
	MaxDepthReached      int
	TotalTime            time.Duration
	pageTimesSum         time.Duration
	pageTimesCount       int
}

// RecordPageTime folds a single page's elapsed time into the running
// average used by AveragePageTime.
func (s *CrawlStats) RecordPageTime(d time.Duration) {
	s.pageTimesSum += d
	s.pageTimesCount++
}

// AveragePageTime is the mean of all RecordPageTime durations, or zero when
// none have been recorded.
func (s *CrawlStats) AveragePageTime() time.Duration {
	if s.pageTimesCount == 0 {
		return 0
	}
	return s.pageTimesSum / time.Duration(s.pageTimesCount)
}

// SuccessRate is visited/(visited+failed); spec.md §9(b) fixes this
// definition regardless of how the counters are incremented elsewhere.
func (s *CrawlStats) SuccessRate() float64 {
	denom := s.PagesVisited + s.PagesFailed
	if denom == 0 {
		return 0
	}
	return float64(s.PagesVisited) / float64(denom)
}

// ScrapedResult is a single scraper tier's raw output.
type ScrapedResult struct {
	HTML            string
	Markdown        string
	Text            string
	PageTitle       string
	PageDescription string
	FinalURL        string
	StatusCode      int
	ContentType     string
	Screenshots     [][]byte
	RequestCount    int
	FromCache       bool
}

const minContentPresentLen = 100

// ContentPresent reports whether r passes the minimum-length bar spec.md §3
// defines for "content-present", independent of quality.
func (r *ScrapedResult) ContentPresent() bool {
	if r == nil {
		return false
	}
	if len(r.Text) > minContentPresentLen {
		return true
	}
	return len(r.HTML) > 0 || len(r.Text) > 0 || len(r.Markdown) > 0
}

// StageTiming is one Processing Pipeline stage's elapsed time.
type StageTiming struct {
	Stage string
	Ms    int64
}

// StageError records a non-fatal error raised by one pipeline stage.
type StageError struct {
	Stage   string
	Message string
}

// MarkupStats captures length deltas across HTML-processing sub-steps.
type MarkupStats struct {
	OriginalLen int
	CleanLen    int
	MainLen     *int
}

// TextStats captures length deltas across text-extraction sub-steps.
type TextStats struct {
	OriginalLen  int
	ProcessedLen int
}

// ProcessedContentMetadata is ProcessedContent's metadata sub-record.
type ProcessedContentMetadata struct {
	StagesExecuted   []string
	ExecutionTimeMs  int64
	PerStageTimings  []StageTiming
	Errors           []StageError
	MarkupStats      MarkupStats
	TextStats        TextStats
}

// ProcessedContent is the Processing Pipeline's output (spec.md §3).
type ProcessedContent struct {
	RawMarkup   string
	CleanMarkup string
	MainContent string
	HasMain     bool
	Markdown    string
	Text        string
	Metadata    ProcessedContentMetadata
}

// CacheEntry is a generic cached value with creation/expiry bookkeeping.
type CacheEntry[T any] struct {
	Value     T
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// CacheLookup is what Cache Manager Get returns.
type CacheLookup[T any] struct {
	Data          *T
	FromCache     bool
	RemainingTTL  *time.Duration
}

// Cookie mirrors spec.md §3's SessionData cookie shape.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  *time.Time
	HTTPOnly bool
	Secure   bool
	SameSite string // "Strict", "Lax", "None", or ""
}

// SessionData is persisted cookie/web-storage state for one authenticated
// domain (spec.md §3, §4.12).
type SessionData struct {
	Cookies        []Cookie
	LocalStorage   map[string]string
	SessionStorage map[string]string
	CreatedAt      time.Time
	ExpiresAt      *time.Time
	Domain         string
}

// Expired reports whether s's ExpiresAt has passed as of now.
func (s *SessionData) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// BreakerState is a Circuit Breaker's current gating state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerHalfOpen BreakerState = "half_open"
	BreakerOpen     BreakerState = "open"
)

// ExtractionContext is the input to one Extraction Manager strategy call.
type ExtractionContext struct {
	HTML            string
	Markdown        string
	Text            string
	URL             string
	TaskDescription string
	EntityTypes     []string
}

// Entity is one structured item an extraction strategy produced.
type Entity map[string]any

// ExtractionResult is one Extraction Manager strategy call's output.
type ExtractionResult struct {
	Entities        []Entity
	Success         bool
	Confidence      *float64
	StrategyTag     string
	ExecutionTimeMs int64
	Error           string
	Metadata        map[string]any
}

// Attempt is one scraper tier's outcome within an orchestration run.
type Attempt struct {
	ScraperTag        string
	Success           bool
	Result            *ScrapedResult
	ExecutionTimeMs   int64
	Error             string
	QualityScore      *float64
	ValidationReason  string
}

// OrchestrationResult is the Scraper Orchestrator's final verdict for one
// URL (spec.md §3/§4.14).
type OrchestrationResult struct {
	FinalResult      *ScrapedResult
	ScraperThatWon   string
	Attempts         []Attempt
	TotalTimeMs      int64
	StrategyTag      string
	Metadata         map[string]any
}
