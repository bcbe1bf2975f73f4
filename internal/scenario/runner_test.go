// internal/scenario/runner_test.go
package scenario_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/marketcheck/internal/browser"
	"github.com/xkilldash9x/marketcheck/internal/catalog"
	"github.com/xkilldash9x/marketcheck/internal/catalog/catalogtest"
	"github.com/xkilldash9x/marketcheck/internal/config"
	"github.com/xkilldash9x/marketcheck/internal/locator"
	"github.com/xkilldash9x/marketcheck/internal/reporting"
	"github.com/xkilldash9x/marketcheck/internal/scenario"
	"github.com/xkilldash9x/marketcheck/internal/store"
	"github.com/xkilldash9x/marketcheck/internal/verify"
)

// -- Test doubles --

type fakeFactory struct {
	site catalogtest.Site
	set  *locator.Set
	opts catalogtest.Options
	err  error

	mu        sync.Mutex
	pages     []*catalogtest.Page
	active    int32
	maxActive int32
}

func (f *fakeFactory) NewSession(_ context.Context, _ browser.Attacher) (scenario.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	page := catalogtest.NewPage(f.site, f.set, f.opts)
	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()

	n := atomic.AddInt32(&f.active, 1)
	for {
		m := atomic.LoadInt32(&f.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxActive, m, n) {
			break
		}
	}
	return &trackedPage{Page: page, factory: f}, nil
}

type trackedPage struct {
	*catalogtest.Page
	factory *fakeFactory
}

func (p *trackedPage) Close(ctx context.Context) error {
	atomic.AddInt32(&p.factory.active, -1)
	return p.Page.Close(ctx)
}

type recordingReporter struct {
	mu         sync.Mutex
	steps      []string
	assertions []string
	finished   int
	passed     bool
	runErr     error
}

func (r *recordingReporter) Attach(string, string, []byte) error { return nil }

func (r *recordingReporter) Step(description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, description)
}

func (r *recordingReporter) Assertion(passed bool, label, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "fail"
	if passed {
		status = "pass"
	}
	r.assertions = append(r.assertions, label+":"+status)
}

func (r *recordingReporter) Finish(passed bool, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	r.passed, r.runErr = passed, runErr
	return nil
}

type reporterPool struct {
	mu        sync.Mutex
	reporters map[string]*recordingReporter
}

func (p *reporterPool) factory(params catalog.FilterParams) (reporting.Reporter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reporters == nil {
		p.reporters = map[string]*recordingReporter{}
	}
	r := &recordingReporter{}
	p.reporters[params.DisplayName()] = r
	return r, nil
}

func (p *reporterPool) get(name string) *recordingReporter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reporters[name]
}

type fakeStore struct {
	mu   sync.Mutex
	runs []store.RunRecord
	err  error
}

func (s *fakeStore) SaveRun(_ context.Context, run store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return s.err
}

func (s *fakeStore) byCase() map[string]store.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]store.RunRecord{}
	for _, r := range s.runs {
		out[r.Case] = r
	}
	return out
}

// -- Helpers --

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Site.URL = "https://market.example/"
	cfg.Scroll.DownPause = 0
	cfg.Scroll.UpPause = 0
	return cfg
}

func laptops() catalog.FilterParams {
	return catalog.ParamsFromConfig(config.NewDefaultConfig().Cases[0])
}

func newFactory(opts catalogtest.Options) *fakeFactory {
	return &fakeFactory{
		site: catalogtest.Laptops(),
		set:  locator.NewSet(config.DefaultLocators),
		opts: opts,
	}
}

func newPage(t *testing.T, opts catalogtest.Options) *catalogtest.Page {
	t.Helper()
	return catalogtest.NewPage(catalogtest.Laptops(), locator.NewSet(config.DefaultLocators), opts)
}

func checkNames(outcomes []verify.Outcome) []string {
	var names []string
	for _, o := range outcomes {
		names = append(names, o.Check)
	}
	return names
}

// -- Test Cases --

func TestRunCase_Passes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), newFactory(catalogtest.Options{}), zaptest.NewLogger(t))
	reporter := &recordingReporter{}

	result, err := runner.RunCase(ctx, newPage(t, catalogtest.Options{PageSize: 5}), reporter, laptops())
	require.NoError(t, err)
	assert.True(t, result.Passed(), result.Summary())
	assert.Equal(t, []string{
		verify.CheckNameTitle,
		verify.CheckNamePresence,
		verify.CheckNamePriceRange,
		verify.CheckNameBrands,
		verify.CheckNameCount,
	}, checkNames(result.Outcomes))

	assert.Equal(t, []string{
		"Open https://market.example/",
		"Choose category Electronics / Laptops",
		"Filter by price 10000..20000 and brands [Lenovo HP]",
		"Collect filtered products",
		"Search for Lenovo IdeaPad 1 15ALC7",
		"Collect search results",
	}, reporter.steps)
	assert.Equal(t, []string{"title:pass", "presence:pass", "price range:pass", "brands:pass", "count:pass"}, reporter.assertions)
}

func TestRunCase_ReportsEveryBrokenFilter(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), newFactory(catalogtest.Options{}), zaptest.NewLogger(t))
	page := newPage(t, catalogtest.Options{IgnorePriceFilter: true, IgnoreBrandFilter: true})

	result, err := runner.RunCase(ctx, page, reporting.Nop{}, laptops())
	require.NoError(t, err, "assertion failures are not errors")
	assert.False(t, result.Passed())
	assert.Equal(t, []string{verify.CheckNamePriceRange, verify.CheckNameBrands}, checkNames(result.Failures()))

	summary := result.Summary()
	assert.Contains(t, summary, `"HP Stream 11-ak0" (8990)`)
	assert.Contains(t, summary, `"Lenovo Legion 5 Pro 16ARH7H" (89990)`)
	assert.Contains(t, summary, `"ASUS VivoBook 15 X1504" (15990)`)
	assert.Contains(t, summary, `"Acer Aspire 3 A315" (12490)`)
}

func TestRunCase_CheckedIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), newFactory(catalogtest.Options{}), zaptest.NewLogger(t))
	params := laptops()
	params.CheckedIndex = 50

	page := newPage(t, catalogtest.Options{})
	result, err := runner.RunCase(ctx, page, reporting.Nop{}, params)
	require.ErrorIs(t, err, scenario.ErrNoProductToSearch)
	require.Len(t, result.Outcomes, 5, "the checks still run so the report explains the failure")
	assert.Equal(t, []string{verify.CheckNamePresence}, checkNames(result.Failures()))
	assert.Contains(t, page.Screenshots(), "Error: search")

	for _, a := range page.Actions() {
		assert.NotContains(t, a, "search_input")
	}
}

func TestRunCase_LocatorTimeoutIsFatal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), newFactory(catalogtest.Options{}), zaptest.NewLogger(t))
	params := laptops()
	params.Category = "Garden"

	page := newPage(t, catalogtest.Options{})
	result, err := runner.RunCase(ctx, page, reporting.Nop{}, params)
	require.ErrorIs(t, err, browser.ErrElementNotFound)
	assert.Contains(t, err.Error(), "choose category")
	assert.Empty(t, result.Outcomes)

	shots := page.Screenshots()
	require.NotEmpty(t, shots)
	assert.Equal(t, "Error: choose category", shots[len(shots)-1], "the failing page is captured")
}

func TestRunCase_UntitledCheckedProduct(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), newFactory(catalogtest.Options{}), zaptest.NewLogger(t))

	site := catalogtest.Laptops()
	site.Items[0].Title = ""
	page := catalogtest.NewPage(site, locator.NewSet(cfg.Locators), catalogtest.Options{})

	result, err := runner.RunCase(ctx, page, reporting.Nop{}, laptops())
	require.ErrorIs(t, err, scenario.ErrNoProductToSearch)
	require.Len(t, result.Outcomes, 5)
	assert.Equal(t, []string{verify.CheckNamePresence}, checkNames(result.Failures()))
	assert.Contains(t, page.Screenshots(), "Error: search")

	for _, a := range page.Actions() {
		assert.NotContains(t, a, "search_input", "an empty query is never submitted")
	}
}

func TestRunCase_PriceParseIsFatal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	factory := newFactory(catalogtest.Options{})
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), factory, zaptest.NewLogger(t))

	site := catalogtest.Laptops()
	site.Items[0].PriceText = "call us"
	page := catalogtest.NewPage(site, locator.NewSet(cfg.Locators), catalogtest.Options{})

	_, err := runner.RunCase(ctx, page, reporting.Nop{}, laptops())
	require.ErrorIs(t, err, catalog.ErrPriceParse)
	assert.Contains(t, err.Error(), "collect filtered products")
	assert.Contains(t, page.Screenshots(), "Error: collect filtered products")
}

func TestRunAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.Browser.Concurrency = 2
	factory := newFactory(catalogtest.Options{PageSize: 6})
	reporters := &reporterPool{}
	runs := &fakeStore{}
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), factory, zaptest.NewLogger(t),
		scenario.WithReporterFactory(reporters.factory),
		scenario.WithStore(runs))

	invalid := laptops()
	invalid.Name, invalid.Category = "invalid", ""
	garden := laptops()
	garden.Name, garden.Category = "garden", "Garden"
	broken := laptops()
	broken.Name, broken.Brands = "asus", []string{"Asus"}

	reports := runner.RunAll(context.Background(), []catalog.FilterParams{laptops(), invalid, garden, broken})
	require.Len(t, reports, 4)

	assert.True(t, reports[0].Passed(), "laptops: %v", reports[0].Err)
	assert.Equal(t, reporting.StatusPassed, reports[0].Status())
	assert.False(t, reports[0].FinishedAt.Before(reports[0].StartedAt))

	assert.ErrorContains(t, reports[1].Err, "category is required")
	assert.Nil(t, reports[1].Result)
	assert.Nil(t, reporters.get("invalid"), "invalid cases never start a session or report")

	assert.ErrorIs(t, reports[2].Err, browser.ErrElementNotFound)
	assert.Equal(t, reporting.StatusBroken, reports[2].Status())

	// The Asus filter leaves a single product, so the count check fails.
	assert.NoError(t, reports[3].Err)
	assert.Equal(t, reporting.StatusFailed, reports[3].Status())
	assert.Equal(t, []string{verify.CheckNameCount}, checkNames(reports[3].Result.Failures()))

	for _, name := range []string{"laptops", "garden", "asus"} {
		r := reporters.get(name)
		require.NotNil(t, r, name)
		assert.Equal(t, 1, r.finished, "%s report finished once", name)
	}
	assert.True(t, reporters.get("laptops").passed)
	assert.ErrorIs(t, reporters.get("garden").runErr, browser.ErrElementNotFound)

	saved := runs.byCase()
	require.Len(t, saved, 4)
	assert.Equal(t, "passed", saved["laptops"].Status)
	assert.Len(t, saved["laptops"].Outcomes, 5)
	assert.Equal(t, "broken", saved["invalid"].Status)
	assert.Equal(t, "broken", saved["garden"].Status)
	assert.Contains(t, saved["garden"].Error, "element not found")
	assert.Equal(t, "failed", saved["asus"].Status)
	assert.Equal(t, reports[0].RunID, saved["laptops"].ID)

	factory.mu.Lock()
	defer factory.mu.Unlock()
	assert.Len(t, factory.pages, 3)
	for _, p := range factory.pages {
		assert.True(t, p.Closed(), "every session is closed")
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&factory.maxActive), int32(2))
	assert.Zero(t, atomic.LoadInt32(&factory.active))
}

func TestRunAll_DirectoryReports(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.Report.Dir = t.TempDir()
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), newFactory(catalogtest.Options{}), zaptest.NewLogger(t))

	reports := runner.RunAll(context.Background(), []catalog.FilterParams{laptops()})
	require.Len(t, reports, 1)
	require.True(t, reports[0].Passed())
	require.NotEmpty(t, reports[0].ReportDir)

	res, err := reporting.ReadResult(reports[0].ReportDir)
	require.NoError(t, err)
	assert.Equal(t, reporting.StatusPassed, res.Status)
	assert.Len(t, res.Assertions, 5)
	assert.Len(t, res.Steps, 6)
}

func TestRunAll_SessionStartFailure(t *testing.T) {
	cfg := testConfig()
	factory := newFactory(catalogtest.Options{})
	factory.err = errors.New("chrome not found")
	reporters := &reporterPool{}
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), factory, zaptest.NewLogger(t),
		scenario.WithReporterFactory(reporters.factory))

	reports := runner.RunAll(context.Background(), []catalog.FilterParams{laptops()})
	require.Len(t, reports, 1)
	assert.ErrorContains(t, reports[0].Err, "failed to start browser session: chrome not found")
	assert.Nil(t, reports[0].Result)
	assert.Equal(t, reporting.StatusBroken, reports[0].Status())
	assert.Error(t, reporters.get("laptops").runErr)
}

func TestRunAll_StoreErrorsAreLogged(t *testing.T) {
	cfg := testConfig()
	core, logs := observer.New(zap.ErrorLevel)
	runs := &fakeStore{err: errors.New("database is down")}
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), newFactory(catalogtest.Options{}), zap.New(core),
		scenario.WithReporterFactory((&reporterPool{}).factory),
		scenario.WithStore(runs))

	reports := runner.RunAll(context.Background(), []catalog.FilterParams{laptops()})
	assert.True(t, reports[0].Passed(), "store failures do not fail the case")
	require.Equal(t, 1, logs.FilterMessage("Failed to save run.").Len())
}

func TestRunAll_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	factory := newFactory(catalogtest.Options{})
	runner := scenario.NewRunner(cfg, locator.NewSet(cfg.Locators), factory, zaptest.NewLogger(t),
		scenario.WithReporterFactory((&reporterPool{}).factory))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports := runner.RunAll(ctx, []catalog.FilterParams{laptops(), laptops()})
	for _, r := range reports {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
