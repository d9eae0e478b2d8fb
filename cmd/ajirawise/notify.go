package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTo string

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test message",
	Long:  "Sends a test message to a channel id (tg:<chat id> or a WhatsApp number) using the configured senders.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
	notifyTestCmd.Flags().StringVar(&notifyTo, "to", "", "channel id to message")
	_ = notifyTestCmd.MarkFlagRequired("to")
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	sender := setupSender(cfg, httpClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := notifier.SendTestMessage(ctx, sender, notifyTo); err != nil {
		logger.Error("test message failed", "to", notifyTo, "error", err)
		os.Exit(1)
	}
	logger.Info("test message sent successfully", "to", notifyTo)
	return nil
}
