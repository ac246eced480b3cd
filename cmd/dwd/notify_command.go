package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dwd/internal/logging"
	"dwd/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	cmd.AddCommand(newNotifyTestCommand(ctx))
	return cmd
}

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	var message string
	var level string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
			if topic == "" {
				fmt.Fprintln(out, "Notifications disabled (notifications.ntfy_topic is empty)")
				return nil
			}
			lvl, err := notifications.ParseLevel(level)
			if err != nil {
				return err
			}

			ntfy := notifications.NewNtfyNotifier(topic, notifications.NtfyOptions{
				Timeout: cfg.NotifyTimeout(),
				Logger:  logging.NewNop(),
			})
			defer ntfy.Close()

			sendCtx, cancel := context.WithTimeout(cmd.Context(), cfg.NotifyTimeout())
			defer cancel()
			if err := ntfy.Send(sendCtx, message, lvl); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "dwd test notification", "Notification body")
	cmd.Flags().StringVar(&level, "level", string(notifications.LevelInfo), "Notification level")
	return cmd
}
