package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"strikearr/internal/api"
)

func newStrikesCommand(ctx *commandContext) *cobra.Command {
	var (
		instance string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "strikes",
		Short: "List active strike records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedgerAPI(cmd.Context(), func(source ledgerAPI) error {
				records, err := source.Strikes(cmd.Context(), instance)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.StrikesResponse{Records: records})
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No active strikes")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Instance", "Download", "Title", "Category", "Strikes", "Last struck"},
					strikeRows(records),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&instance, "instance", "i", "", "Only show strikes for this instance")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func strikeRows(records []api.StrikeRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Instance,
			rec.Identity,
			rec.Title,
			rec.Category,
			strconv.Itoa(rec.Count),
			formatTimestamp(rec.LastStruckAt),
		})
	}
	return rows
}
