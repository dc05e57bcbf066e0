package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexanderramin/timeclock/internal/cli/formatter"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/service"
	"github.com/spf13/cobra"
)

type transitionFunc func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)

// newTransitionCmd builds one of the worker-driven commands. Each call goes
// through the store retry policy; domain rejections return at once.
func newTransitionCmd(app *App, use, short, verb string, pick func(service.SessionEngine) transitionFunc) *cobra.Command {
	var workerID, at string

	cmd := &cobra.Command{
		Use:   use + " ITEM",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			clientTime, err := parseInstant("at", at)
			if err != nil {
				return err
			}
			req := service.TransitionRequest{
				WorkItemID: args[0],
				WorkerID:   workerID,
				ClientTime: clientTime,
			}

			run := pick(app.Engine)
			res, err := service.RetryStore(ctx, app.Retry, func() (*service.TransitionResult, error) {
				return run(ctx, req)
			})
			if err != nil {
				var lerr *domain.LimitError
				if errors.As(err, &lerr) {
					fmt.Fprint(cmd.ErrOrStderr(), formatter.FormatLimit(lerr))
				}
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTransition(verb, res))
			return nil
		},
	}

	cmd.Flags().StringVar(&workerID, "worker", "", "Acting worker ID")
	cmd.Flags().StringVar(&at, "at", "", "Client instant for the edge (RFC 3339); defaults to now")
	_ = cmd.MarkFlagRequired("worker")

	return cmd
}

func newStartCmd(app *App) *cobra.Command {
	return newTransitionCmd(app, "start", "Start the first session on an idle item", "started",
		func(e service.SessionEngine) transitionFunc { return e.Start })
}

func newPauseCmd(app *App) *cobra.Command {
	return newTransitionCmd(app, "pause", "Pause the running session", "paused",
		func(e service.SessionEngine) transitionFunc { return e.Pause })
}

func newResumeCmd(app *App) *cobra.Command {
	return newTransitionCmd(app, "resume", "Resume a paused item", "resumed",
		func(e service.SessionEngine) transitionFunc { return e.Resume })
}

func newFinishCmd(app *App) *cobra.Command {
	return newTransitionCmd(app, "finish", "Finish an active or paused item", "finished",
		func(e service.SessionEngine) transitionFunc { return e.Finish })
}

func newForceFinishCmd(app *App) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "force-finish ITEM",
		Short: "Close an item on behalf of its holder",
		Long: "Close an active or paused item without the holder. The close instant " +
			"defaults to now and is capped at now.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			closeAt, err := parseInstant("at", at)
			if err != nil {
				return err
			}
			req := service.ForceFinishRequest{WorkItemID: args[0], At: closeAt}
			res, err := service.RetryStore(ctx, app.Retry, func() (*service.TransitionResult, error) {
				return app.Engine.ForceFinish(ctx, req)
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTransition("force-finished", res))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Credited close instant (RFC 3339); defaults to now")

	return cmd
}

func newReopenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen ITEM",
		Short: "Return a finished item to Idle so it can be started again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			item, err := service.RetryStore(ctx, app.Retry, func() (*domain.WorkItem, error) {
				return app.Engine.Reopen(ctx, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reopened %s  %s  total %s\n",
				formatter.Bold(item.ID), formatter.StatePill(item.State), formatter.FormatSeconds(item.AccumulatedSeconds))
			return nil
		},
	}
}
