// cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marketcheck/internal/browser"
	"github.com/xkilldash9x/marketcheck/internal/catalog"
	"github.com/xkilldash9x/marketcheck/internal/config"
	"github.com/xkilldash9x/marketcheck/internal/locator"
	"github.com/xkilldash9x/marketcheck/internal/observability"
	"github.com/xkilldash9x/marketcheck/internal/reporting"
	"github.com/xkilldash9x/marketcheck/internal/scenario"
)

const browserShutdownTimeout = 30 * time.Second

// errCasesFailed is returned when at least one case failed or broke.
var errCasesFailed = errors.New("catalog cases did not pass")

// sessionsFunc starts the session source for a run and returns a function
// that releases it.
type sessionsFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (scenario.SessionFactory, func(), error)

func newBrowserSessions(ctx context.Context, cfg *config.Config, logger *zap.Logger) (scenario.SessionFactory, func(), error) {
	mgr := browser.NewManager(ctx, cfg, logger)
	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), browserShutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser manager did not shut down cleanly.", zap.Error(err))
		}
	}
	return scenario.BrowserFactory{Manager: mgr}, shutdown, nil
}

// caseFlags holds the flags describing an ad-hoc case.
type caseFlags struct {
	names        []string
	name         string
	category     string
	subcategory  string
	minPrice     int
	maxPrice     int
	brands       []string
	checkedIndex int
	minProducts  int
}

// newRunCmd creates the `run` command.
func newRunCmd(sessions sessionsFunc, provider storeProvider) *cobra.Command {
	var flags caseFlags

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the catalog filter and search cases",
		Long: `Opens the storefront, chooses a catalog category, applies the price and brand
filters, collects the listing, searches for one of the listed products and
verifies the results. Cases come from the configuration file unless
--category is given, in which case a single case is built from the flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			cases, err := selectCases(cfg, flags, cmd.Flags().Changed("category"))
			if err != nil {
				return err
			}

			factory, release, err := sessions(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer release()

			return runCases(ctx, logger, cfg, cases, factory, provider, cmd.OutOrStdout())
		},
	}

	f := runCmd.Flags()
	f.String("url", "", "storefront URL (overrides site.url)")
	f.Bool("headless", true, "run the browser without a window (overrides browser.headless)")
	f.Int("concurrency", 0, "cases run in parallel (overrides browser.concurrency)")
	f.String("report-dir", "", "directory for case reports (overrides report.dir)")
	f.Bool("screenshots", true, "attach screenshots to reports (overrides report.screenshots)")
	f.String("database", "", "PostgreSQL URL for run history (overrides database.url)")

	f.StringSliceVar(&flags.names, "case", nil, "run only the configured cases with these names")
	f.StringVar(&flags.name, "name", "", "name of the ad-hoc case")
	f.StringVar(&flags.category, "category", "", "catalog category; builds an ad-hoc case from the flags below")
	f.StringVar(&flags.subcategory, "subcategory", "", "catalog subcategory of the ad-hoc case")
	f.IntVar(&flags.minPrice, "min-price", 0, "lower price bound of the ad-hoc case")
	f.IntVar(&flags.maxPrice, "max-price", 0, "upper price bound of the ad-hoc case")
	f.StringSliceVar(&flags.brands, "brand", nil, "brand filter of the ad-hoc case (repeatable)")
	f.IntVar(&flags.checkedIndex, "index", 0, "position of the product to search for in the filtered listing")
	f.IntVar(&flags.minProducts, "min-products", 0, "the filtered listing must hold more products than this")
	runCmd.MarkFlagsMutuallyExclusive("case", "category")

	return runCmd
}

// selectCases returns the ad-hoc case when adHoc is set and the configured
// cases otherwise, restricted to flags.names when given.
func selectCases(cfg *config.Config, flags caseFlags, adHoc bool) ([]catalog.FilterParams, error) {
	if adHoc {
		return []catalog.FilterParams{{
			Name:         flags.name,
			Category:     flags.category,
			Subcategory:  flags.subcategory,
			MinPrice:     flags.minPrice,
			MaxPrice:     flags.maxPrice,
			Brands:       flags.brands,
			CheckedIndex: flags.checkedIndex,
			MinProducts:  flags.minProducts,
		}}, nil
	}

	configured := make(map[string]catalog.FilterParams, len(cfg.Cases))
	all := make([]catalog.FilterParams, 0, len(cfg.Cases))
	for _, c := range cfg.Cases {
		p := catalog.ParamsFromConfig(c)
		configured[p.DisplayName()] = p
		all = append(all, p)
	}

	if len(flags.names) == 0 {
		if len(all) == 0 {
			return nil, errors.New("no cases configured; add cases to the config file or pass --category")
		}
		return all, nil
	}

	selected := make([]catalog.FilterParams, 0, len(flags.names))
	for _, name := range flags.names {
		p, ok := configured[name]
		if !ok {
			return nil, fmt.Errorf("unknown case %q", name)
		}
		selected = append(selected, p)
	}
	return selected, nil
}

// runCases contains the core, testable logic of the run command.
func runCases(
	ctx context.Context,
	logger *zap.Logger,
	cfg *config.Config,
	cases []catalog.FilterParams,
	factory scenario.SessionFactory,
	provider storeProvider,
	out io.Writer,
) error {
	locators := locator.NewSet(cfg.Locators)
	if err := locators.Validate(); err != nil {
		return fmt.Errorf("invalid locators: %w", err)
	}

	var opts []scenario.Option
	if cfg.Database.URL != "" {
		runs, cleanup, err := connectStore(ctx, provider, cfg)
		if err != nil {
			logger.Warn("Run history is disabled.", zap.Error(err))
		} else {
			defer cleanup()
			opts = append(opts, scenario.WithStore(runs))
		}
	}

	logger.Info("Running catalog cases.", zap.Int("cases", len(cases)), zap.String("site", cfg.Site.URL))
	runner := scenario.NewRunner(cfg, locators, factory, logger, opts...)
	reports := runner.RunAll(ctx, cases)

	failed := printReports(out, reports)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errCasesFailed, failed, len(reports))
	}
	return nil
}

// connectStore creates the store and its schema. The returned cleanup is
// never nil on success.
func connectStore(ctx context.Context, provider storeProvider, cfg *config.Config) (runStore, func(), error) {
	runs, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cleanup == nil {
		cleanup = func() {}
	}
	if err := runs.EnsureSchema(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return runs, cleanup, nil
}

// printReports writes one block per case and returns how many did not pass.
func printReports(out io.Writer, reports []scenario.CaseReport) int {
	failed := 0
	for _, r := range reports {
		status := r.Status()
		if status != reporting.StatusPassed {
			failed++
		}
		fmt.Fprintf(out, "%-7s %s (%s)\n", label(status), r.Params.DisplayName(), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "  error: %v\n", r.Err)
		case status == reporting.StatusFailed:
			fmt.Fprintf(out, "  %s\n", r.Result.Summary())
		}
		if r.ReportDir != "" {
			fmt.Fprintf(out, "  report: %s\n", r.ReportDir)
		}
	}
	fmt.Fprintf(out, "\n%d passed, %d did not pass\n", len(reports)-failed, failed)
	return failed
}

func label(s reporting.Status) string {
	switch s {
	case reporting.StatusPassed:
		return "PASS"
	case reporting.StatusFailed:
		return "FAIL"
	default:
		return "BROKEN"
	}
}
