// cmd/history.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marketcheck/internal/config"
	"github.com/xkilldash9x/marketcheck/internal/observability"
	"github.com/xkilldash9x/marketcheck/internal/reporting"
)

// newHistoryCmd creates the `history` command.
func newHistoryCmd(provider storeProvider) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent case runs recorded in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, observability.GetLogger(), cfg, limit, provider, cmd.OutOrStdout())
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	historyCmd.Flags().String("database", "", "PostgreSQL URL (overrides database.url)")
	return historyCmd
}

func runHistory(ctx context.Context, logger *zap.Logger, cfg *config.Config, limit int, provider storeProvider, out io.Writer) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	runs, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	summaries, err := runs.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	logger.Debug("Loaded run history.", zap.Int("runs", len(summaries)))

	if len(summaries) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%s  %-7s %-24s %d failed checks  %s  %s\n",
			s.StartedAt.UTC().Format(time.DateTime),
			label(reporting.Status(s.Status)),
			s.Case,
			s.Failed,
			s.FinishedAt.Sub(s.StartedAt).Round(time.Second),
			s.ID,
		)
	}
	return nil
}
