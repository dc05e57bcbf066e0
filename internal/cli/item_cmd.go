package cli

import (
	"fmt"

	"github.com/alexanderramin/timeclock/internal/cli/formatter"
	"github.com/alexanderramin/timeclock/internal/service"
	"github.com/spf13/cobra"
)

func newItemCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage trackable work items",
	}

	cmd.AddCommand(
		newItemAddCmd(app),
		newItemAssignCmd(app),
		newItemListCmd(app),
	)

	return cmd
}

func newItemAddCmd(app *App) *cobra.Command {
	var id, kind, assignee, reviews string

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Register a task, bug or QA review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			item, err := app.Items.Register(cmd.Context(), service.RegisterRequest{
				ID:         id,
				Kind:       k,
				Title:      args[0],
				AssigneeID: assignee,
				ParentID:   reviews,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s %s (%s)\n",
				formatter.KindBadge(item.Kind), formatter.Bold(item.ID), item.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Item ID; generated when empty")
	cmd.Flags().StringVar(&kind, "kind", "task", "Item kind: task, bug or qa_review")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Initial holder")
	cmd.Flags().StringVar(&reviews, "reviews", "", "Reviewed item ID (qa_review only)")

	return cmd
}

func newItemAssignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign ITEM WORKER",
		Short: "Hand an item to another worker",
		Long:  "Hand an item to another worker. Items that occupy a slot must be finished first.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := app.Items.Assign(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s\n", formatter.Bold(item.ID), item.AssigneeID)
			return nil
		},
	}
}

func newItemListCmd(app *App) *cobra.Command {
	var assignee string
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStates(states)
			if err != nil {
				return err
			}
			items, err := app.Items.List(cmd.Context(), assignee, filter)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatItems(items, app.currentTime()))
			return nil
		},
	}

	cmd.Flags().StringVar(&assignee, "assignee", "", "Filter by holder")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by state (repeatable or comma-separated)")

	return cmd
}
