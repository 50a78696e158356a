package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/ncecere-raito/scrapeengine/internal/scraperadapters"
	"github.com/ncecere-raito/scrapeengine/internal/validator"
)

type fakeScraper struct {
	result model.ScrapedResult
	err    error
	calls  int
}

func (f *fakeScraper) Scrape(ctx context.Context, targetURL, jobID string, opts scraperadapters.Options, emit scraperadapters.EmitProgress) (model.ScrapedResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeJudge struct {
	results []validator.Result
	idx     int
}

func (f *fakeJudge) Score(ctx context.Context, in validator.Input) (validator.Result, error) {
	if f.idx >= len(f.results) {
		return validator.Result{Sufficient: true, QualityScore: 0.9}, nil
	}
	r := f.results[f.idx]
	f.idx++
	return r, nil
}

func newHarness(scrapers map[scraperadapters.Tier]*fakeScraper, judge *fakeJudge) *Harness {
	reg := scraperadapters.NewRegistry()
	for tier, s := range scrapers {
		reg.Register(tier, s)
	}
	v := validator.New(judge, nil, 0)
	return New(reg, v, nil)
}

func TestSpeedFirstAcceptsFirstSufficientTier(t *testing.T) {
	http := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{{Sufficient: true, QualityScore: 0.82}}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{scraperadapters.TierHTTP: http}, judge)

	result, err := h.Run(context.Background(), StrategySpeedFirst, "https://a/", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(scraperadapters.TierHTTP), result.ScraperThatWon)
	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, 1, http.calls)
}

func TestSpeedFirstEscalatesOnInsufficientVerdict(t *testing.T) {
	httpScraper := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	smart := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{
		{Sufficient: false, QualityScore: 0.3, Reason: "empty table body indicates dynamic content"},
		{Sufficient: true, QualityScore: 0.8},
	}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{
		scraperadapters.TierHTTP:          httpScraper,
		scraperadapters.TierSmartHeadless: smart,
	}, judge)

	result, err := h.Run(context.Background(), StrategySpeedFirst, "https://a/", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(scraperadapters.TierSmartHeadless), result.ScraperThatWon)
	assert.Len(t, result.Attempts, 2)
}

func TestQualityFirstAcceptsSmartHeadlessAtHighThreshold(t *testing.T) {
	smart := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{{Sufficient: false, QualityScore: 0.75}}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{scraperadapters.TierSmartHeadless: smart}, judge)

	result, err := h.Run(context.Background(), StrategyQualityFirst, "https://a/", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(scraperadapters.TierSmartHeadless), result.ScraperThatWon)
}

func TestQualityFirstAcceptsFailOpenVerdictWithoutEscalating(t *testing.T) {
	smart := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	reader := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{
		{QualityScore: 0.5, Sufficient: true, Reason: "validation failed, assuming sufficient", JudgeErrored: true},
	}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{
		scraperadapters.TierSmartHeadless: smart,
		scraperadapters.TierReader:        reader,
	}, judge)

	result, err := h.Run(context.Background(), StrategyQualityFirst, "https://a/", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(scraperadapters.TierSmartHeadless), result.ScraperThatWon)
	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, 0, reader.calls)
}

func TestCostFirstAcceptsUnconditionallyAtLastTier(t *testing.T) {
	httpScraper := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	cheerio := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	reader := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	headless := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{
		{Sufficient: false}, {Sufficient: false}, {Sufficient: false}, {Sufficient: false},
	}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{
		scraperadapters.TierHTTP:     httpScraper,
		scraperadapters.TierCheerio:  cheerio,
		scraperadapters.TierReader:   reader,
		scraperadapters.TierHeadless: headless,
	}, judge)

	result, err := h.Run(context.Background(), StrategyCostFirst, "https://a/", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(scraperadapters.TierHeadless), result.ScraperThatWon)
}

func TestAllScrapersFailedWhenEveryTierErrors(t *testing.T) {
	httpScraper := &fakeScraper{err: errors.New("network down")}
	smart := &fakeScraper{err: errors.New("network down")}
	standard := &fakeScraper{err: errors.New("network down")}
	judge := &fakeJudge{}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{
		scraperadapters.TierHTTP:             httpScraper,
		scraperadapters.TierSmartHeadless:    smart,
		scraperadapters.TierStandardHeadless: standard,
	}, judge)

	_, err := h.Run(context.Background(), StrategySpeedFirst, "https://a/", "", scraperadapters.Options{}, nil)
	require.Error(t, err)
	var allFailed *ErrAllScrapersFailed
	assert.ErrorAs(t, err, &allFailed)
}

func TestAdaptivePicksHeadlessFirstForSPAIndicators(t *testing.T) {
	assert.Equal(t,
		[]scraperadapters.Tier{scraperadapters.TierSmartHeadless, scraperadapters.TierStandardHeadless, scraperadapters.TierHTTP},
		adaptiveTierList("https://app.example.com/react/dashboard"),
	)
}

func TestAdaptivePicksHTTPFirstForArticleIndicators(t *testing.T) {
	assert.Equal(t,
		[]scraperadapters.Tier{scraperadapters.TierHTTP, scraperadapters.TierSmartHeadless, scraperadapters.TierStandardHeadless},
		adaptiveTierList("https://example.com/blog/my-post"),
	)
}

func TestAdaptiveFallsBackToSpeedFirstWhenInitialAttemptExhausted(t *testing.T) {
	httpScraper := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	smart := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{
		{Sufficient: false}, // adaptive attempt: SmartHeadless rejected
		{Sufficient: false}, // adaptive attempt: HTTP rejected
		{Sufficient: true, QualityScore: 0.8}, // fallback attempt: HTTP accepted
	}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{
		scraperadapters.TierHTTP:          httpScraper,
		scraperadapters.TierSmartHeadless: smart,
	}, judge)

	result, err := h.Run(context.Background(), StrategyAdaptive, "https://app.example.com/react/dashboard", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, result.Metadata["adaptive_selection_failed"])
	assert.Equal(t, string(scraperadapters.TierHTTP), result.ScraperThatWon)
}

func TestRunExplicitAcceptsUnconditionally(t *testing.T) {
	httpScraper := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{{Sufficient: false, QualityScore: 0.1}}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{scraperadapters.TierHTTP: httpScraper}, judge)

	result, err := h.RunExplicit(context.Background(), scraperadapters.TierHTTP, "https://a/", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(scraperadapters.TierHTTP), result.ScraperThatWon)
}

func TestContentNotPresentSkipsValidationAndContinues(t *testing.T) {
	httpScraper := &fakeScraper{result: model.ScrapedResult{}}
	smart := &fakeScraper{result: model.ScrapedResult{Text: string(make([]byte, 500))}}
	judge := &fakeJudge{results: []validator.Result{{Sufficient: true, QualityScore: 0.9}}}
	h := newHarness(map[scraperadapters.Tier]*fakeScraper{
		scraperadapters.TierHTTP:          httpScraper,
		scraperadapters.TierSmartHeadless: smart,
	}, judge)

	result, err := h.Run(context.Background(), StrategySpeedFirst, "https://a/", "", scraperadapters.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, string(scraperadapters.TierSmartHeadless), result.ScraperThatWon)
	assert.Nil(t, result.Attempts[0].QualityScore)
}
