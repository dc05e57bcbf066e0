package cli

import (
	"fmt"
	"time"

	"github.com/alexanderramin/timeclock/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newGrantCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Manage unlimited-concurrency grants",
	}

	cmd.AddCommand(
		newGrantAddCmd(app),
		newGrantRevokeCmd(app),
		newGrantListCmd(app),
	)

	return cmd
}

func newGrantAddCmd(app *App) *cobra.Command {
	var expires string
	var forDur time.Duration

	cmd := &cobra.Command{
		Use:   "add WORKER",
		Short: "Exempt a worker from the concurrency cap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expires != "" && forDur > 0 {
				return fmt.Errorf("use either --expires or --for, not both")
			}
			expiresAt, err := parseInstant("expires", expires)
			if err != nil {
				return err
			}
			if forDur > 0 {
				t := app.currentTime().Add(forDur)
				expiresAt = &t
			}

			g, err := app.Grants.Grant(cmd.Context(), args[0], expiresAt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted %s to %s (expires %s)\n",
				g.Capability, formatter.Bold(g.WorkerID), formatter.OptionalTimestamp(g.ExpiresAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&expires, "expires", "", "Expiry instant (RFC 3339)")
	cmd.Flags().DurationVar(&forDur, "for", 0, "Expire after this long, e.g. 8h")

	return cmd
}

func newGrantRevokeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke WORKER",
		Short: "Revoke a worker's active grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Grants.Revoke(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d grant(s) for %s\n", n, args[0])
			return nil
		},
	}
}

func newGrantListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list WORKER",
		Short: "List a worker's grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grants, err := app.Grants.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatGrants(grants, app.currentTime()))
			return nil
		},
	}
}
