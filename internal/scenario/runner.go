// internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/marketcheck/internal/browser"
	"github.com/xkilldash9x/marketcheck/internal/catalog"
	"github.com/xkilldash9x/marketcheck/internal/config"
	"github.com/xkilldash9x/marketcheck/internal/locator"
	"github.com/xkilldash9x/marketcheck/internal/reporting"
	"github.com/xkilldash9x/marketcheck/internal/store"
	"github.com/xkilldash9x/marketcheck/internal/verify"
)

const sessionCloseTimeout = 10 * time.Second

// ErrNoProductToSearch is returned when the filtered listing has no titled
// product at the checked index, leaving nothing to search for.
var ErrNoProductToSearch = errors.New("no titled product at the checked index")

// Session is a browser page owned by one case.
type Session interface {
	catalog.Page
	Close(ctx context.Context) error
}

// SessionFactory creates an isolated session per case. Screenshots taken by
// the session go to attacher.
type SessionFactory interface {
	NewSession(ctx context.Context, attacher browser.Attacher) (Session, error)
}

// BrowserFactory adapts a browser.Manager to SessionFactory.
type BrowserFactory struct {
	Manager *browser.Manager
}

func (f BrowserFactory) NewSession(ctx context.Context, attacher browser.Attacher) (Session, error) {
	s, err := f.Manager.NewSession(ctx, attacher)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, run store.RunRecord) error
}

// ReporterFactory creates the reporter of one case.
type ReporterFactory func(params catalog.FilterParams) (reporting.Reporter, error)

// CaseReport is the outcome of one case as seen by RunAll.
type CaseReport struct {
	RunID  string
	Params catalog.FilterParams
	// Result holds the checks that ran. It is nil when no session started.
	Result     *verify.Result
	Err        error
	ReportDir  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Passed reports whether the case ran to completion and every check passed.
func (c CaseReport) Passed() bool {
	return c.Err == nil && c.Result != nil && c.Result.Passed()
}

// Status classifies the case for reports and storage.
func (c CaseReport) Status() reporting.Status {
	return reporting.StatusOf(c.Result != nil && c.Result.Passed(), c.Err)
}

// Runner executes catalog cases end to end.
type Runner struct {
	cfg         *config.Config
	locators    *locator.Set
	factory     SessionFactory
	store       RunStore
	newReporter ReporterFactory
	logger      *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists every finished case.
func WithStore(s RunStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithReporterFactory replaces the default directory reporter.
func WithReporterFactory(f ReporterFactory) Option {
	return func(r *Runner) { r.newReporter = f }
}

// NewRunner creates a runner. By default every case reports into its own
// directory under cfg.Report.Dir and nothing is persisted.
func NewRunner(cfg *config.Config, locators *locator.Set, factory SessionFactory, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		locators: locators,
		factory:  factory,
		logger:   logger.Named("scenario"),
	}
	r.newReporter = func(p catalog.FilterParams) (reporting.Reporter, error) {
		return reporting.New(cfg.Report, p.DisplayName(), r.logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCase drives one case on page: open the site, choose the category, check
// the title, filter, collect, search for the checked product and collect
// again. Checks are recorded in the returned Result. A non-nil error means
// the case stopped early; the Result then holds whatever ran before.
func (r *Runner) RunCase(ctx context.Context, page catalog.Page, reporter reporting.Reporter, p catalog.FilterParams) (*verify.Result, error) {
	wf := catalog.NewWorkflow(page, r.locators, r.cfg.Scroll, r.logger.With(zap.String("case", p.DisplayName())))
	result := &verify.Result{}
	record := func(o verify.Outcome) {
		result.Add(o)
		reporter.Assertion(o.Passed, o.Check, o.Message)
	}

	// fail captures the page that broke the step before returning.
	fail := func(step string, err error) (*verify.Result, error) {
		page.Screenshot(ctx, "Error: "+step)
		return result, fmt.Errorf("%s: %w", step, err)
	}

	reporter.Step("Open " + r.cfg.Site.URL)
	if err := wf.OpenSite(ctx, r.cfg.Site.URL); err != nil {
		return fail("open site", err)
	}

	reporter.Step(fmt.Sprintf("Choose category %s / %s", p.Category, p.Subcategory))
	if err := wf.ChooseCategory(ctx, p.Category, p.Subcategory); err != nil {
		return fail("choose category", err)
	}
	title, err := wf.PageTitle(ctx)
	if err != nil {
		return fail("read title", err)
	}
	record(verify.CheckTitle(title, p.Subcategory))

	reporter.Step(fmt.Sprintf("Filter by price %d..%d and brands %v", p.MinPrice, p.MaxPrice, p.Brands))
	if err := wf.SetFilters(ctx, p.MinPrice, p.MaxPrice, p.Brands); err != nil {
		return fail("set filters", err)
	}

	reporter.Step("Collect filtered products")
	before, err := wf.ScrollAndCollect(ctx)
	if err != nil {
		return fail("collect filtered products", err)
	}

	var query string
	if p.CheckedIndex < len(before) {
		query = strings.TrimSpace(before[p.CheckedIndex].Title)
	}
	if query == "" {
		for _, o := range verify.Run(before, nil, p).Outcomes {
			record(o)
		}
		return fail("search", fmt.Errorf("%w: index %d, %d products listed", ErrNoProductToSearch, p.CheckedIndex, len(before)))
	}

	reporter.Step("Search for " + query)
	if err := wf.Search(ctx, query); err != nil {
		return fail("search", err)
	}

	reporter.Step("Collect search results")
	after, err := wf.ScrollAndCollect(ctx)
	if err != nil {
		return fail("collect search results", err)
	}

	for _, o := range verify.Run(before, after, p).Outcomes {
		record(o)
	}
	return result, nil
}

// RunAll executes cases concurrently, up to browser.concurrency at a time,
// each in its own session. Reports are returned in case order.
func (r *Runner) RunAll(ctx context.Context, cases []catalog.FilterParams) []CaseReport {
	reports := make([]CaseReport, len(cases))

	limit := r.cfg.Browser.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, c := range cases {
		g.Go(func() error {
			reports[i] = r.runOne(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (r *Runner) runOne(ctx context.Context, p catalog.FilterParams) (rep CaseReport) {
	rep = CaseReport{RunID: uuid.NewString(), Params: p, StartedAt: time.Now()}
	logger := r.logger.With(zap.String("case", p.DisplayName()), zap.String("run_id", rep.RunID))
	defer func() {
		rep.FinishedAt = time.Now()
		r.save(ctx, logger, rep)
	}()

	if err := p.Validate(); err != nil {
		rep.Err = err
		return rep
	}

	reporter, err := r.newReporter(p)
	if err != nil {
		logger.Warn("Failed to create reporter; continuing without a report.", zap.Error(err))
		reporter = reporting.Nop{}
	}
	if d, ok := reporter.(interface{ Dir() string }); ok {
		rep.ReportDir = d.Dir()
	}

	logger.Info("Starting case.")
	rep.Result, rep.Err = r.execute(ctx, logger, reporter, p)

	if err := reporter.Finish(rep.Result != nil && rep.Result.Passed(), rep.Err); err != nil {
		logger.Warn("Failed to finish report.", zap.Error(err))
	}

	switch {
	case rep.Err != nil:
		logger.Error("Case stopped with an error.", zap.Error(rep.Err))
	case !rep.Result.Passed():
		logger.Warn("Case failed.", zap.String("summary", rep.Result.Summary()))
	default:
		logger.Info("Case passed.")
	}
	return rep
}

func (r *Runner) execute(ctx context.Context, logger *zap.Logger, reporter reporting.Reporter, p catalog.FilterParams) (*verify.Result, error) {
	session, err := r.factory.NewSession(ctx, reporter)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()
	return r.RunCase(ctx, session, reporter, p)
}

func (r *Runner) save(ctx context.Context, logger *zap.Logger, rep CaseReport) {
	if r.store == nil {
		return
	}
	record := store.RunRecord{
		ID:         rep.RunID,
		Case:       rep.Params.DisplayName(),
		Params:     rep.Params,
		Status:     string(rep.Status()),
		ReportDir:  rep.ReportDir,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
	if rep.Err != nil {
		record.Error = rep.Err.Error()
	}
	if rep.Result != nil {
		record.Outcomes = rep.Result.Outcomes
	}
	if err := r.store.SaveRun(context.WithoutCancel(ctx), record); err != nil {
		logger.Error("Failed to save run.", zap.Error(err))
	}
}
