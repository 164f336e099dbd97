package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"strikearr/internal/daemonctl"
	"strikearr/internal/daemonrun"
)

const (
	startWait = 10 * time.Second
	stopGrace = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var (
		runLogLevel string
		foreground  bool
		development bool
	)
	daemonCmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Run the strikearr daemon in the current process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, ctx.configPath, daemonrun.Options{
				LogLevel:    runLogLevel,
				Development: development,
				Foreground:  foreground,
			})
		},
	}
	daemonCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Override the configured log level")
	daemonCmd.Flags().BoolVar(&foreground, "foreground", false, "Log to stdout only")
	daemonCmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")

	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the strikearr daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cfg.PIDPath(), exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath,
				LogLevel:   startLogLevel,
			}, startWait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the configured log level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the strikearr daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cfg.PIDPath(), cfg.LockPath(), stopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in %s; killed pid %d\n", stopGrace, result.PID)
				return nil
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}

	return []*cobra.Command{daemonCmd, startCmd, stopCmd}
}
