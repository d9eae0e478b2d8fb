package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/ajirawise/internal/auth"
	"github.com/amishk599/ajirawise/internal/cache"
	"github.com/amishk599/ajirawise/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and alert scheduler",
	Long:  "Serve the WhatsApp, Telegram, M-Pesa and admin endpoints and run the alert scheduler; blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"addr", cfg.Server.Addr,
		"credits_mode", cfg.Credits.Mode,
		"sources_mode", cfg.Sources.Mode,
		"store", cfg.Store.Driver,
		"scheduler_interval", cfg.Scheduler.Interval.String(),
		"advisor", cfg.Advisor.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var dedup cache.Deduper
	if a.redis != nil {
		dedup = cache.NewRedisDeduper(a.redis, cfg.Redis.Prefix+"inbound:", cfg.Redis.DedupTTL)
	} else {
		dedup = cache.NewMemoryDeduper(cfg.Redis.DedupTTL)
	}

	var jwtSvc *auth.JWT
	if cfg.Secrets.AdminJWTSecret != "" {
		jwtSvc = auth.NewJWT(cfg.Secrets.AdminJWTSecret, cfg.Admin.TokenTTL)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set, admin API disabled")
	}

	handler := httpapi.NewRouter(httpapi.Deps{
		Service:           a.service,
		Payments:          a.payments,
		Scheduler:         a.scheduler,
		Repo:              a.repo,
		Dedup:             dedup,
		JWT:               jwtSvc,
		AdminUser:         cfg.Admin.Username,
		AdminPasswordHash: cfg.Secrets.AdminPasswordHash,
		TelegramSecret:    cfg.Secrets.TelegramWebhookSecret,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Logger:            logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			return a.scheduler.Run(gctx)
		})
	} else {
		logger.Info("scheduler disabled, alerts run only on demand")
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("goodbye")
	return nil
}
