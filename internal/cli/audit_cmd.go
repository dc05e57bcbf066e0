package cli

import (
	"fmt"

	"github.com/alexanderramin/timeclock/internal/cli/formatter"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/spf13/cobra"
)

func newAuditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Verify totals against session history and review audit flags",
	}

	cmd.AddCommand(
		newAuditVerifyCmd(app),
		newAuditFlagsCmd(app),
	)

	return cmd
}

func newAuditVerifyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [ITEM]",
		Short: "Recompute totals from history and repair drift",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				repaired, err := app.Auditor.Verify(ctx, args[0])
				if err != nil {
					return err
				}
				if repaired {
					fmt.Fprintf(out, "%s repaired %s\n", formatter.Warn("!"), args[0])
				} else {
					fmt.Fprintf(out, "%s is consistent\n", args[0])
				}
				return nil
			}

			report, err := app.Auditor.VerifyAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(out, formatter.FormatAuditReport(report))
			return nil
		},
	}
}

func newAuditFlagsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "flags [ITEM]",
		Short: "List one item's audit flags, or the most recent across all items",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				flags []*domain.AuditFlag
				err   error
			)
			if len(args) == 1 {
				flags, err = app.Queries.AuditFlags(ctx, args[0])
			} else {
				flags, err = app.Queries.RecentAuditFlags(ctx, limit)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatAuditFlags(flags))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum flags to show across all items")

	return cmd
}
