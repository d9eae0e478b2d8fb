package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/scheduler"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Alert delivery subcommands",
}

var alertsInterest string

var alertsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scheduled delivery cycle now",
	Long:  "Delivers to every user with an interest and credits, or only to users of --interest, then exits.",
	RunE:  runAlerts,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsRunCmd)
	alertsRunCmd.Flags().StringVar(&alertsInterest, "interest", "", "restrict the cycle to one category")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	category := ""
	if alertsInterest != "" {
		c, ok := catalog.Normalize(alertsInterest)
		if !ok {
			return fmt.Errorf("unknown category %q", alertsInterest)
		}
		category = c
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var sum scheduler.Summary
	if category == "" {
		sum, err = a.scheduler.RunOnce(ctx)
	} else {
		sum, err = a.scheduler.Broadcast(ctx, category)
	}
	if err != nil {
		return err
	}

	fmt.Printf("users: %d  sent: %d  failed: %d\n", sum.Users, sum.Sent, sum.Failed)
	return nil
}
