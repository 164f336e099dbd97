package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"strikearr/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, instance and ledger status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedgerAPI(cmd.Context(), func(source ledgerAPI) error {
				resp, err := source.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				renderStatus(newPrinter(cmd.OutOrStdout()), resp, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(p *printer, resp *api.StatusResponse, now time.Time) {
	p.section("Daemon")
	if resp.Running {
		p.line("Daemon", statusOK, fmt.Sprintf("running (pid %d, up since %s)", resp.PID, formatTimestamp(resp.StartedAt)))
	} else {
		p.line("Daemon", statusWarn, "not running")
	}
	if resp.ConfigPath != "" {
		detail := resp.ConfigPath
		if resp.ConfigLoadedAt != "" {
			detail += " (loaded " + formatAge(resp.ConfigLoadedAt, now) + ")"
		}
		p.line("Config", statusInfo, detail)
	}
	if len(resp.Channels) == 0 {
		p.line("Notifications", statusInfo, "none")
	} else {
		p.line("Notifications", statusOK, strings.Join(resp.Channels, ", "))
	}
	p.blank()

	p.section("Instances")
	if len(resp.Instances) == 0 {
		fmt.Fprintln(p.out, "No enabled instances")
	} else {
		for _, inst := range resp.Instances {
			detail := fmt.Sprintf("%s, last cycle %s", inst.State, formatAge(inst.LastCycleAt, now))
			if inst.LastError != "" {
				detail += ": " + inst.LastError
			}
			p.line(inst.Name, instanceKind(inst), detail)
		}
		fmt.Fprint(p.out, renderTable(
			[]string{"Instance", "Type", "State", "Cycles", "Queue", "Struck", "Removed", "Failed", "Next cycle"},
			instanceRows(resp.Instances),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}
	p.blank()

	p.section("Strikes")
	rows := totalsRows(resp.Totals)
	if len(rows) == 0 {
		fmt.Fprintln(p.out, "No active strikes")
	} else {
		fmt.Fprint(p.out, renderTable([]string{"Instance", "Category", "Items"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight}))
	}
	p.blank()

	p.section("Ledger")
	db := resp.Database
	switch {
	case db.Error != "":
		p.line("Database", statusError, db.Error)
	case !db.DatabaseExists:
		p.line("Database", statusWarn, "not created yet: "+db.DBPath)
	case !db.IntegrityCheck:
		p.line("Database", statusError, "integrity check failed: "+db.DBPath)
	default:
		p.line("Database", statusOK, db.DBPath)
	}
	p.line("Schema", statusInfo, "v"+strconv.Itoa(db.SchemaVersion))
	p.line("Records", statusInfo, fmt.Sprintf("%d strikes, %d actions", db.StrikeRecords, db.Actions))
}

func instanceRows(instances []api.InstanceStatus) [][]string {
	rows := make([][]string, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, []string{
			inst.Name,
			inst.ServiceType,
			inst.State,
			strconv.FormatInt(inst.Cycles, 10),
			strconv.Itoa(inst.QueueSize),
			strconv.Itoa(inst.Struck),
			strconv.Itoa(inst.Removed),
			strconv.Itoa(inst.Failed),
			formatTimestamp(inst.NextCycleAt),
		})
	}
	return rows
}

func totalsRows(totals map[string]map[string]int) [][]string {
	instances := make([]string, 0, len(totals))
	for name := range totals {
		instances = append(instances, name)
	}
	sort.Strings(instances)

	var rows [][]string
	for _, name := range instances {
		categories := make([]string, 0, len(totals[name]))
		for category := range totals[name] {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			rows = append(rows, []string{name, category, strconv.Itoa(totals[name][category])})
		}
	}
	return rows
}
