package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexanderramin/timeclock/internal/cli/formatter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSweepCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one staleness pass: alert long sessions and auto-close abandoned ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A pass with per-item failures still reports what it did.
			report, err := app.Sweeper.Sweep(cmd.Context())
			if report != nil {
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatSweepReport(report))
			}
			return err
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	var auditOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sweeper until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app, auditOnStart)
		},
	}

	cmd.Flags().BoolVar(&auditOnStart, "audit", true, "Verify every item against its history before the first sweep completes")

	return cmd
}

// serve runs the sweeper loop and an optional start-up audit side by side.
// It returns when ctx is cancelled. A failed audit is logged and the sweeper
// keeps running; the periodic audit retries it.
func serve(ctx context.Context, app *App, auditOnStart bool) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Sweeper.Run(ctx)
	})
	if auditOnStart && app.Auditor != nil {
		g.Go(func() error {
			report, err := app.Auditor.VerifyAll(ctx)
			if app.Logger == nil {
				return nil
			}
			checked, repaired := 0, 0
			if report != nil {
				checked, repaired = report.Checked, len(report.Repaired)
			}
			if err != nil {
				app.Logger.ErrorContext(ctx, "start-up audit failed",
					"checked", checked,
					"repaired", repaired,
					"error", err,
				)
				return nil
			}
			app.Logger.InfoContext(ctx, "start-up audit complete",
				"checked", checked,
				"repaired", repaired,
			)
			return nil
		})
	}

	return g.Wait()
}
