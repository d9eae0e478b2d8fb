package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/amishk599/ajirawise/internal/adapter"
	"github.com/amishk599/ajirawise/internal/ai"
	"github.com/amishk599/ajirawise/internal/cache"
	"github.com/amishk599/ajirawise/internal/config"
	"github.com/amishk599/ajirawise/internal/delivery"
	"github.com/amishk599/ajirawise/internal/engine"
	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/notifier"
	"github.com/amishk599/ajirawise/internal/payment"
	"github.com/amishk599/ajirawise/internal/ratelimit"
	"github.com/amishk599/ajirawise/internal/retry"
	"github.com/amishk599/ajirawise/internal/scheduler"
	"github.com/amishk599/ajirawise/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "ajirawise",
	Short: "Job alerts over WhatsApp and Telegram",
	Long:  "AjiraWise chats with job seekers, tracks their interest and credits, and sends matching Kenyan job postings.",
	// Default to `serve` so that `ajirawise` with no args runs the bot.
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: AJIRAWISE_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > AJIRAWISE_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	return config.Load(config.ResolvePath(path))
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupSender(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Sender {
	var telegram, whatsapp model.Sender
	if cfg.Secrets.TelegramBotToken != "" {
		logger.Info("using telegram sender")
		telegram = notifier.NewTelegramSender(cfg.Secrets.TelegramBotToken, httpClient, logger)
	}
	if cfg.Secrets.TwilioConfigured() {
		logger.Info("using whatsapp sender", "from", cfg.Secrets.TwilioWhatsAppFrom)
		whatsapp = notifier.NewWhatsAppSender(
			cfg.Secrets.TwilioAccountSID,
			cfg.Secrets.TwilioAuthToken,
			cfg.Secrets.TwilioWhatsAppFrom,
			httpClient,
			logger,
		)
	}
	return notifier.NewRouter(telegram, whatsapp, notifier.NewLogSender(logger))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.Repository, error) {
	switch cfg.Store.Driver {
	case "postgres":
		s, err := store.NewPostgresStore(ctx, cfg.Secrets.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
		return s, nil
	case "memory":
		logger.Warn("using in-memory store, state is lost on exit")
		return store.NewMemoryStore(), nil
	default:
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite store", "path", cfg.Store.Path)
		return s, nil
	}
}

// openRedis returns nil when REDIS_URL is unset.
func openRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.Secrets.RedisURL == "" {
		return nil, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.Secrets.RedisURL)
	if err != nil {
		return nil, err
	}
	logger.Info("redis connected", "prefix", cfg.Redis.Prefix)
	return rdb, nil
}

func createFetchers(cfg *config.Config, httpClient *http.Client) ([]model.JobFetcher, error) {
	s := cfg.Sources
	if s.Mode == "fixture" {
		fx, err := adapter.NewFixtureSource(s.FixturePath)
		if err != nil {
			return nil, err
		}
		return []model.JobFetcher{fx}, nil
	}

	limit := func(b config.BoardConfig) int {
		if b.Limit > 0 {
			return b.Limit
		}
		return s.MaxCandidates
	}

	var fetchers []model.JobFetcher
	if s.BrighterMonday.Enabled {
		fetchers = append(fetchers, adapter.NewBrighterMondaySource(httpClient, s.BrighterMonday.Pages, limit(s.BrighterMonday)))
	}
	if s.JobsKenya.Enabled {
		fetchers = append(fetchers, adapter.NewJobsKenyaSource(httpClient, limit(s.JobsKenya)))
	}
	if s.MyJobMag.Enabled {
		renderer := adapter.NewChromeRenderer(s.MyJobMag.RenderTimeout, 2*time.Second)
		fetchers = append(fetchers, adapter.NewMyJobMagSource(httpClient, renderer, limit(s.MyJobMag)))
	}
	var boards []adapter.GreenhouseBoard
	for _, b := range s.Greenhouse {
		if b.Enabled {
			boards = append(boards, adapter.GreenhouseBoard{Token: b.BoardToken, Company: b.Company})
		}
	}
	if len(boards) > 0 {
		fetchers = append(fetchers, adapter.NewGreenhouseSource(boards, httpClient))
	}
	return fetchers, nil
}

// buildSource wires the enabled boards behind rate limiting and retries,
// merges them, and puts the Redis candidate cache in front when available.
func buildSource(cfg *config.Config, httpClient *http.Client, rdb *redis.Client, logger *slog.Logger) (model.JobSource, error) {
	fetchers, err := createFetchers(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	// Shared limiter: every fetcher for the same board waits on the same key.
	limiter := ratelimit.NewKeyedLimiter(cfg.Sources.MinDelay)
	for i, f := range fetchers {
		f = ratelimit.NewRateLimitedFetcher(f, limiter)
		fetchers[i] = retry.NewRetryFetcher(f, cfg.Sources.MaxRetries, 2*time.Second, logger)
		logger.Debug("registered job board", "name", f.Name())
	}

	var src model.JobSource = adapter.NewMultiSource(
		fetchers,
		cfg.Sources.Locations,
		cfg.Sources.MaxCandidates,
		cfg.Sources.FetchTimeout,
		logger,
	)
	if rdb != nil && cfg.Sources.CacheTTL > 0 {
		src = adapter.NewCachedSource(src, cache.NewRedisCache(rdb, cfg.Redis.Prefix+"candidates:"), cfg.Sources.CacheTTL, logger)
	}
	return src, nil
}

// setupProvider returns nil when the advisor is disabled or the provider
// cannot be created; the caller then degrades to fallback replies.
func setupProvider(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (ai.LLMProvider, func()) {
	if !cfg.Advisor.Enabled {
		return nil, func() {}
	}

	switch cfg.Advisor.Provider {
	case "gemini":
		p, err := ai.NewGeminiProvider(ctx, cfg.Secrets.GeminiAPIKey, cfg.Advisor.Model)
		if err != nil {
			logger.Warn("gemini provider unavailable, using fallback replies", "error", err)
			return nil, func() {}
		}
		logger.Info("llm provider ready", "provider", "gemini", "model", cfg.Advisor.Model)
		return p, func() { _ = p.Close() }
	default:
		p := ai.NewOpenAIProvider(cfg.Advisor.BaseURL, cfg.Secrets.OpenRouterAPIKey, cfg.Advisor.Model, httpClient)
		logger.Info("llm provider ready", "provider", "openai", "model", cfg.Advisor.Model)
		return p, func() {}
	}
}

// setupAdvisor returns nil when the advisor is disabled. A missing provider
// degrades to NopAdvisor so free text still gets the fallback reply.
func setupAdvisor(cfg *config.Config, provider ai.LLMProvider, logger *slog.Logger) model.Advisor {
	switch {
	case !cfg.Advisor.Enabled:
		return nil
	case provider == nil:
		return ai.NewNopAdvisor()
	}
	return ai.NewLLMAdvisor(provider, cfg.Advisor.Timeout, logger)
}

// setupAlertWriter returns the personalized alert writer, or nil to keep the
// standard alert format.
func setupAlertWriter(cfg *config.Config, provider ai.LLMProvider, logger *slog.Logger) delivery.AlertWriter {
	if !cfg.Advisor.PersonalizeAlerts || provider == nil {
		return nil
	}
	logger.Info("personalized job alerts enabled", "timeout", cfg.Advisor.AlertTimeout.String())
	return ai.NewLLMAlertWriter(provider, logger)
}

// app holds the wired core shared by serve, chat and alerts.
type app struct {
	cfg       *config.Config
	repo      model.Repository
	redis     *redis.Client
	sender    model.Sender
	protocol  *delivery.Protocol
	service   *engine.Service
	scheduler *scheduler.Scheduler
	payments  *payment.Service
	closers   []func()
}

// newApp wires the store, sources, sender, advisor and services. A non-nil
// sender replaces the configured channels.
func newApp(ctx context.Context, cfg *config.Config, sender model.Sender, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg}
	httpClient := &http.Client{Timeout: cfg.Sources.RequestTimeout}

	repo, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.repo = repo
	a.closers = append(a.closers, func() { _ = repo.Close() })

	rdb, err := openRedis(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	if rdb != nil {
		a.redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	source, err := buildSource(cfg, httpClient, rdb, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building job sources: %w", err)
	}

	if sender == nil {
		sender = setupSender(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	}
	a.sender = sender

	provider, closeProvider := setupProvider(ctx, cfg, &http.Client{Timeout: max(cfg.Advisor.Timeout, cfg.Advisor.AlertTimeout)}, logger)
	a.closers = append(a.closers, closeProvider)
	advisor := setupAdvisor(cfg, provider, logger)

	a.protocol = delivery.NewProtocol(source, repo, sender, cfg.Delivery.MaxPerRun, cfg.Sources.FetchTimeout, logger)
	if w := setupAlertWriter(cfg, provider, logger); w != nil {
		a.protocol = a.protocol.WithWriter(w, cfg.Advisor.AlertTimeout)
	}
	mode := engine.CreditMode(cfg.Credits.Mode)
	eng := engine.New(engine.Options{
		Mode:         mode,
		MinTopUp:     cfg.Credits.MinTopUp,
		MaxTopUp:     cfg.Credits.MaxTopUp,
		Paybill:      cfg.Credits.Paybill,
		KESPerCredit: cfg.Credits.KESPerCredit,
		Advisory:     advisor != nil,
	})
	a.service = engine.NewService(eng, repo, a.protocol, advisor, sender, logger)
	a.scheduler = scheduler.NewScheduler(
		repo,
		a.protocol.WithCap(cfg.Scheduler.MaxPerUser),
		cfg.Scheduler.Interval,
		cfg.Scheduler.Pause,
		logger,
	)
	if mode == engine.CreditsMpesa {
		a.payments = payment.NewService(repo, sender, cfg.Credits.KESPerCredit, logger)
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
