package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"strikearr/internal/api"
)

const defaultActionsLimit = 25

func newActionsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Show recent remediation actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return ctx.withLedgerAPI(cmd.Context(), func(source ledgerAPI) error {
				actions, err := source.Actions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ActionsResponse{Actions: actions})
				}
				out := cmd.OutOrStdout()
				if len(actions) == 0 {
					fmt.Fprintln(out, "No remediation actions recorded")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"When", "Instance", "Title", "Categories", "Outcome"},
					actionRows(actions),
					nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultActionsLimit, "Maximum number of actions to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func actionRows(actions []api.Action) [][]string {
	rows := make([][]string, 0, len(actions))
	for _, action := range actions {
		title := action.Title
		if title == "" {
			title = action.Identity
		}
		rows = append(rows, []string{
			formatTimestamp(action.At),
			action.Instance,
			title,
			strings.Join(action.Categories, ", "),
			actionOutcome(action),
		})
	}
	return rows
}

func actionOutcome(action api.Action) string {
	if action.Error != "" {
		return "failed: " + action.Error
	}
	var parts []string
	if action.Removed {
		parts = append(parts, "removed")
	}
	if action.Blocked {
		parts = append(parts, "blocklisted")
	}
	if action.Researched {
		parts = append(parts, "re-searched")
	}
	if len(parts) == 0 {
		return action.Kind
	}
	return strings.Join(parts, ", ")
}
