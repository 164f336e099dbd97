package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"strikearr/internal/api"
	"strikearr/internal/logging"
	"strikearr/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification on every enabled channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if alive, _ := ctx.daemonRunning(); alive {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				resp, err := client.TestNotify(cmd.Context())
				switch {
				case err == nil:
					if resp.Message != "" {
						fmt.Fprintln(out, resp.Message)
					} else if resp.Sent {
						fmt.Fprintln(out, "Test notification sent")
					} else {
						fmt.Fprintln(out, "Notification not sent")
					}
					return nil
				case !errors.Is(err, api.ErrUnavailable):
					return err
				}
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dispatcher := notifications.NewFromConfig(cfg, logging.NewNop())
			defer dispatcher.Close()
			if err := dispatcher.Test(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Test notification sent via %s\n", strings.Join(dispatcher.Channels(), ", "))
			return nil
		},
	}
}
