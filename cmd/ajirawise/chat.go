package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/console"
	"github.com/amishk599/ajirawise/internal/notifier"
)

var chatName string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the bot in the terminal",
	Long:  "Opens a terminal conversation against the configured store and job boards. Alerts appear in the transcript.",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatName, "name", "local", "console user name")
}

func runChat(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Same reason as check: the TUI owns stdout.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := console.NewSender(32)

	a, err := newApp(ctx, cfg, sender, silentLogger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	return console.RunChat(ctx, a.service, sender, notifier.ConsolePrefix+chatName)
}
