package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"strikearr/internal/config"
)

func newPatternsCommand(ctx *commandContext) *cobra.Command {
	patternsCmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect block rules",
	}

	var instance string
	testCmd := &cobra.Command{
		Use:   "test <name>...",
		Short: "Report whether release names would be blocklisted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if instance != "" {
				if _, ok := cfg.Instance(instance); !ok {
					return fmt.Errorf("unknown instance %q", instance)
				}
			}
			snap, err := config.Resolve(cmd.Context(), cfg, ctx.configPath)
			if err != nil {
				return err
			}
			list := snap.BlockList(instance)

			scope := "global"
			if instance != "" {
				scope = instance
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rules: %s (%s, %d patterns)\n", scope, list.Mode, list.Rules.Len())

			rows := make([][]string, 0, len(args))
			for _, name := range args {
				name = strings.TrimSpace(name)
				blocked, reason := list.Explain(name)
				rows = append(rows, []string{name, yesNo(blocked), reason})
			}
			fmt.Fprint(out, renderTable([]string{"Name", "Blocked", "Reason"}, rows, nil))
			return nil
		},
	}
	testCmd.Flags().StringVarP(&instance, "instance", "i", "", "Use the block rules of this instance")

	patternsCmd.AddCommand(testCmd)
	return patternsCmd
}
