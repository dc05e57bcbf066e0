package cli

import (
	"fmt"

	"github.com/alexanderramin/timeclock/internal/cli/formatter"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status ITEM",
		Short: "Show an item's timer and live elapsed time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := app.Queries.Item(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatStatus(item, app.currentTime()))
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history ITEM",
		Short: "List an item's session rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			item, err := app.Queries.Item(ctx, args[0])
			if err != nil {
				return err
			}
			sessions, err := app.Queries.SessionHistory(ctx, item.ID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHistory(item, sessions))
			return nil
		},
	}
}

func newActiveCmd(app *App) *cobra.Command {
	var pool string

	cmd := &cobra.Command{
		Use:   "active WORKER",
		Short: "Show the slots a worker occupies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			workerID := args[0]

			pools := []domain.Pool{domain.PoolWork, domain.PoolReview}
			if pool != "" {
				p, err := parsePool(pool)
				if err != nil {
					return err
				}
				pools = []domain.Pool{p}
			}

			unlimited := false
			if app.Authz != nil {
				var err error
				unlimited, err = app.Authz.HasGrant(ctx, workerID, domain.CapabilityUnlimitedSessions)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for i, p := range pools {
				active, err := app.Limiter.ActiveItems(ctx, workerID, p)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, formatter.FormatActive(workerID, p, active, app.Limiter.Cap(p), unlimited))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pool, "pool", "", "Only show one pool: work or review")

	return cmd
}
