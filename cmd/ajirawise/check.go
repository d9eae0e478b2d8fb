package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/config"
	"github.com/amishk599/ajirawise/internal/console"
	"github.com/amishk599/ajirawise/internal/delivery"
	"github.com/amishk599/ajirawise/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check [category]",
	Short: "Fetch candidates once and print them",
	Long: "One-shot fetch: normalizes the category, queries the enabled boards, prints the candidates and exits. " +
		"Nothing is written to the ledger. Without a category an interactive board browser is shown.",
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		// The TUI owns the terminal; log output before the alt-screen
		// starts corrupts the display.
		silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		return runBoardCheck(cfg, silentLogger)
	}

	category, ok := catalog.Normalize(args[0])
	if !ok {
		return fmt.Errorf("unknown category %q (run `ajirawise categories` for the list)", args[0])
	}

	logger.Info("check mode: nothing will be recorded as sent", "category", category)

	source, err := buildSource(cfg, &http.Client{Timeout: cfg.Sources.RequestTimeout}, nil, logger)
	if err != nil {
		logger.Error("failed to build job sources", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs := source.FetchCandidates(ctx, category)
	printCandidates(os.Stdout, category, jobs)
	logger.Info("check complete", "candidates", len(jobs))
	return nil
}

func printCandidates(w io.Writer, category string, jobs []model.JobPosting) {
	if len(jobs) == 0 {
		fmt.Fprintf(w, "No %s candidates found.\n", category)
		return
	}
	fmt.Fprintf(w, "%d %s candidates\n%s\n", len(jobs), category, strings.Repeat("─", 40))
	for i, j := range jobs {
		fmt.Fprintf(w, "\n#%d\n%s\n", i+1, delivery.FormatJob(j, category, 0, delivery.TriggerChat))
	}
}

func runBoardCheck(cfg *config.Config, logger *slog.Logger) error {
	source, err := buildSource(cfg, &http.Client{Timeout: cfg.Sources.RequestTimeout}, nil, logger)
	if err != nil {
		return err
	}

	var category string
	for {
		choice, err := console.RunCategoryPicker(catalog.Categories, category)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}
		category = catalog.Categories[choice]

		jobs, err := console.RunLoader(category, cfg.Sources.FetchTimeout, func(ctx context.Context) ([]model.JobPosting, error) {
			return source.FetchCandidates(ctx, category), nil
		})
		if errors.Is(err, console.ErrCancelled) {
			continue
		}
		if err != nil {
			fmt.Printf("Error fetching jobs: %v\n", err)
			continue
		}

		wantQuit, err := console.RunBrowser(category, jobs)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
	}
}
