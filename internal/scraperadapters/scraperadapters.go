// Package scraperadapters implements spec.md §6's scraper adapter contract
// and the reference tier implementations that satisfy it, adapted from the
// teacher's internal/scraper/{scraper,rod_scraper}.go — generalized so each
// tier returns model.ScrapedResult (the shape the orchestration harness in
// internal/orchestrator requires) instead of the teacher's ad hoc
// scraper.Result, and so that HTTP and headless tiers share one contract
// instead of two unrelated structs.
package scraperadapters

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ncecere-raito/scrapeengine/internal/htmlproc"
	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/ncecere-raito/scrapeengine/internal/pipeline"
)

// Tier is a scraper tier tag, matching the job-surface enum spec.md §6
// names plus the two adaptive-strategy tags §9(c) separates out.
type Tier string

const (
	TierHTTP             Tier = "HTTP"
	TierReader           Tier = "READER"
	TierHeadless         Tier = "HEADLESS"
	TierSmartHeadless    Tier = "SMART_HEADLESS"
	TierStandardHeadless Tier = "STANDARD_HEADLESS"
	TierCheerio          Tier = "CHEERIO"
	TierAIAgent          Tier = "AI_AGENT"
)

// Options mirrors the job options spec.md §6 lists that affect scraping.
type Options struct {
	UseProxy       bool
	BlockResources bool
	IncludeScreens bool
	SessionCookies []model.Cookie
}

// EmitProgress reports a free-text progress note mid-scrape.
type EmitProgress func(message string)

// Scraper is the adapter contract spec.md §6 fixes: scrape(url, job_id,
// options, emit_progress) → ScrapedResult | error.
type Scraper interface {
	Scrape(ctx context.Context, targetURL, jobID string, opts Options, emit EmitProgress) (model.ScrapedResult, error)
}

// Registry maps a Tier to the Scraper that serves it.
type Registry struct {
	scrapers map[Tier]Scraper
}

func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[Tier]Scraper)}
}

func (r *Registry) Register(tier Tier, s Scraper) {
	r.scrapers[tier] = s
}

func (r *Registry) Get(tier Tier) (Scraper, bool) {
	s, ok := r.scrapers[tier]
	return s, ok
}

// UnregisteredTierError is returned when a strategy's tier plan names a
// tier with no Scraper registered for it.
type UnregisteredTierError struct {
	Tier string
}

func (e *UnregisteredTierError) Error() string {
	return "no scraper registered for tier " + e.Tier
}

// HTTPScraper fetches over plain net/http and converts to markdown,
// adapted directly from the teacher's HTTPScraper.Scrape.
type HTTPScraper struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPScraper(timeout time.Duration) *HTTPScraper {
	return &HTTPScraper{Client: &http.Client{Timeout: timeout}, Timeout: timeout}
}

func (s *HTTPScraper) Scrape(ctx context.Context, targetURL, jobID string, opts Options, emit EmitProgress) (model.ScrapedResult, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return model.ScrapedResult{}, err
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	if emit != nil {
		emit("fetching over http")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.ScrapedResult{}, err
	}
	for _, c := range opts.SessionCookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return model.ScrapedResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	buf := new(strings.Builder)
	if _, err := copyBody(buf, resp); err != nil {
		return model.ScrapedResult{}, err
	}
	htmlStr := buf.String()

	processed := pipeline.Run(htmlStr, pipeline.Options{
		HTMLOptions:      htmlproc.Options{RemoveScripts: true, RemoveStyles: true},
		DomainHint:       u.Hostname(),
		PreserveOriginal: true,
	})

	title, description := extractTitleAndDescription(htmlStr)

	return model.ScrapedResult{
		HTML:            htmlStr,
		Markdown:        processed.Markdown,
		Text:            processed.Text,
		PageTitle:       title,
		PageDescription: description,
		FinalURL:        resp.Request.URL.String(),
		StatusCode:      resp.StatusCode,
		ContentType:     resp.Header.Get("Content-Type"),
		RequestCount:    1,
	}, nil
}

func copyBody(buf *strings.Builder, resp *http.Response) (int64, error) {
	const maxBody = 20 * 1024 * 1024
	limited := http.MaxBytesReader(nil, resp.Body, maxBody)
	n, err := buf.ReadFrom(limited)
	return n, err
}

func extractTitleAndDescription(htmlStr string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return "", ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	description := doc.Find("meta[name=description]").AttrOr("content", "")
	return title, description
}

// CheerioScraper does the same fetch and conversion as HTTPScraper, then
// replaces Text with the main-content text when a main-content element is
// found; HTML and Markdown are HTTPScraper's. It serves the Cost-First
// strategy's middle step.
type CheerioScraper struct {
	Inner *HTTPScraper
}

func NewCheerioScraper(timeout time.Duration) *CheerioScraper {
	return &CheerioScraper{Inner: NewHTTPScraper(timeout)}
}

func (s *CheerioScraper) Scrape(ctx context.Context, targetURL, jobID string, opts Options, emit EmitProgress) (model.ScrapedResult, error) {
	if emit != nil {
		emit("parsing with lightweight dom scan")
	}
	result, err := s.Inner.Scrape(ctx, targetURL, jobID, opts, nil)
	if err != nil {
		return model.ScrapedResult{}, err
	}

	processed := pipeline.Run(result.HTML, pipeline.Options{
		HTMLOptions:      htmlproc.Options{RemoveScripts: true, RemoveStyles: true},
		PreserveOriginal: true,
	})
	if processed.HasMain {
		result.Text = processed.Text
	}
	return result, nil
}

// ReaderScraper is a Jina-Reader-like tier: the same fetch and conversion
// as HTTPScraper, then Text is re-extracted with comments also removed and
// HTML is reduced to the main-content markup when one is found. Markdown
// is HTTPScraper's conversion of the full page.
type ReaderScraper struct {
	Inner *HTTPScraper
}

func NewReaderScraper(timeout time.Duration) *ReaderScraper {
	return &ReaderScraper{Inner: NewHTTPScraper(timeout)}
}

func (s *ReaderScraper) Scrape(ctx context.Context, targetURL, jobID string, opts Options, emit EmitProgress) (model.ScrapedResult, error) {
	if emit != nil {
		emit("fetching via reader tier")
	}
	result, err := s.Inner.Scrape(ctx, targetURL, jobID, opts, nil)
	if err != nil {
		return model.ScrapedResult{}, err
	}

	processed := pipeline.Run(result.HTML, pipeline.Options{
		HTMLOptions:      htmlproc.Options{RemoveScripts: true, RemoveStyles: true, RemoveComments: true},
		PreserveOriginal: true,
	})
	result.Text = processed.Text
	if processed.HasMain {
		result.HTML = processed.MainContent
	}
	return result, nil
}

// HeadlessScraper renders via a local headless Chromium instance through
// go-rod, adapted directly from the teacher's RodScraper.Scrape. One
// HeadlessScraper instance serves both the smart and standard headless
// tiers; SmartWait toggles an extra settle delay for client-rendered pages.
type HeadlessScraper struct {
	Timeout   time.Duration
	SmartWait time.Duration
}

func NewHeadlessScraper(timeout time.Duration, smartWait time.Duration) *HeadlessScraper {
	return &HeadlessScraper{Timeout: timeout, SmartWait: smartWait}
}

func (s *HeadlessScraper) Scrape(ctx context.Context, targetURL, jobID string, opts Options, emit EmitProgress) (model.ScrapedResult, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return model.ScrapedResult{}, err
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	if emit != nil {
		emit("launching headless browser")
	}

	browser, err := newLocalBrowser(ctx, s.Timeout)
	if err != nil {
		return model.ScrapedResult{}, err
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{URL: u.String()})
	if err != nil {
		return model.ScrapedResult{}, err
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return model.ScrapedResult{}, err
	}

	if s.SmartWait > 0 {
		if emit != nil {
			emit("waiting for dynamic content to settle")
		}
		time.Sleep(s.SmartWait)
	}

	htmlStr, err := page.HTML()
	if err != nil {
		return model.ScrapedResult{}, err
	}

	processed := pipeline.Run(htmlStr, pipeline.Options{
		HTMLOptions:      htmlproc.Options{RemoveScripts: true, RemoveStyles: true},
		DomainHint:       u.Hostname(),
		PreserveOriginal: true,
	})

	title, description := extractTitleAndDescription(htmlStr)

	return model.ScrapedResult{
		HTML:            htmlStr,
		Markdown:        processed.Markdown,
		Text:            processed.Text,
		PageTitle:       title,
		PageDescription: description,
		FinalURL:        u.String(),
		StatusCode:      200,
		RequestCount:    1,
	}, nil
}

// newLocalBrowser launches a local Chromium instance via rod's launcher,
// identical in shape to the teacher's newLocalRodBrowser.
func newLocalBrowser(ctx context.Context, timeout time.Duration) (*rod.Browser, error) {
	var l *launcher.Launcher
	if path, has := launcher.LookPath(); has {
		l = launcher.New().Bin(path)
	} else {
		l = launcher.New()
	}
	l = l.Headless(true).NoSandbox(true)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx).Timeout(timeout)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	return browser, nil
}
