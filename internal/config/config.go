package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable consulted when no --config flag is given.
const EnvPath = "AJIRAWISE_CONFIG"

// DefaultPath is used when neither the flag nor EnvPath is set.
const DefaultPath = "config.yaml"

// Config is the root configuration for the AjiraWise bot.
type Config struct {
	Server    ServerConfig
	Credits   CreditsConfig
	Delivery  DeliveryConfig
	Scheduler SchedulerConfig
	Sources   SourcesConfig
	Advisor   AdvisorConfig
	Store     StoreConfig
	Redis     RedisConfig
	Admin     AdminConfig
	Secrets   Secrets
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string `validate:"required"`
	CORSOrigins     []string
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// CreditsConfig selects how balances are funded.
type CreditsConfig struct {
	Mode         string `validate:"oneof=instant mpesa"`
	KESPerCredit int    `validate:"min=1"`
	MinTopUp     int    `validate:"min=1"`
	MaxTopUp     int    `validate:"gtefield=MinTopUp"`
	Paybill      string `validate:"required_if=Mode mpesa"`
	DarajaEnv    string `validate:"oneof=sandbox production"`
}

// DeliveryConfig caps alerts sent for one chat request.
type DeliveryConfig struct {
	MaxPerRun int `validate:"min=1,max=50"`
}

// SchedulerConfig controls the periodic alert cycle.
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration `validate:"gte=1s"`
	MaxPerUser int           `validate:"min=1,max=50"`
	Pause      time.Duration `validate:"gte=0"`
}

// SourcesConfig controls where job candidates come from.
type SourcesConfig struct {
	Mode           string `validate:"oneof=live fixture"`
	FixturePath    string
	MaxCandidates  int           `validate:"min=1"`
	FetchTimeout   time.Duration `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"gt=0"`
	MinDelay       time.Duration `validate:"gte=0"`
	MaxRetries     int           `validate:"min=0,max=5"`
	CacheTTL       time.Duration `validate:"gte=0"`
	Locations      []string

	BrighterMonday BoardConfig
	JobsKenya      BoardConfig
	MyJobMag       BoardConfig
	Greenhouse     []GreenhouseBoardConfig `validate:"dive"`
}

// BoardConfig toggles one scraped job board.
type BoardConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Pages         int           `yaml:"pages"`
	Limit         int           `yaml:"limit"`
	RenderTimeout time.Duration `yaml:"-"`
}

// GreenhouseBoardConfig is one employer's public Greenhouse board.
type GreenhouseBoardConfig struct {
	Company    string `yaml:"company" validate:"required"`
	BoardToken string `yaml:"board_token" validate:"required"`
	Enabled    bool   `yaml:"enabled"`
}

// AdvisorConfig controls the optional career advisor. PersonalizeAlerts
// reuses the same model to rewrite each job alert.
type AdvisorConfig struct {
	Enabled           bool
	Provider          string `validate:"oneof=openai gemini"`
	BaseURL           string
	Model             string        `validate:"required_if=Enabled true"`
	Timeout           time.Duration `validate:"gt=0"`
	PersonalizeAlerts bool
	AlertTimeout      time.Duration `validate:"gt=0"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `validate:"oneof=sqlite postgres memory"`
	Path   string `validate:"required_if=Driver sqlite"`
}

// RedisConfig is used only when REDIS_URL is set.
type RedisConfig struct {
	Prefix   string
	DedupTTL time.Duration `validate:"gt=0"`
}

// AdminConfig controls the admin API login.
type AdminConfig struct {
	Username string        `validate:"required"`
	TokenTTL time.Duration `validate:"gt=0"`
}

// Secrets are read from the environment, never from the YAML file.
type Secrets struct {
	TwilioAccountSID      string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken       string `env:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom    string `env:"TWILIO_WHATSAPP_NUMBER"`
	TelegramBotToken      string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`
	OpenRouterAPIKey      string `env:"OPENROUTER_API_KEY"`
	GeminiAPIKey          string `env:"GEMINI_API_KEY"`
	DatabaseURL           string `env:"DATABASE_URL"`
	RedisURL              string `env:"REDIS_URL"`
	AdminJWTSecret        string `env:"ADMIN_JWT_SECRET"`
	AdminPasswordHash     string `env:"ADMIN_PASSWORD_HASH"`
	MpesaConsumerKey      string `env:"MPESA_CONSUMER_KEY"`
	MpesaConsumerSecret   string `env:"MPESA_CONSUMER_SECRET"`
}

// TwilioConfigured reports whether WhatsApp replies can be sent.
func (s Secrets) TwilioConfigured() bool {
	return s.TwilioAccountSID != "" && s.TwilioAuthToken != "" && s.TwilioWhatsAppFrom != ""
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Server struct {
		Addr            string   `yaml:"addr"`
		CORSOrigins     []string `yaml:"cors_origins"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Credits struct {
		Mode         string `yaml:"mode"`
		KESPerCredit int    `yaml:"kes_per_credit"`
		MinTopUp     int    `yaml:"min_topup"`
		MaxTopUp     int    `yaml:"max_topup"`
		Paybill      string `yaml:"paybill"`
		DarajaEnv    string `yaml:"daraja_env"`
	} `yaml:"credits"`
	Delivery struct {
		MaxPerRun int `yaml:"max_per_run"`
	} `yaml:"delivery"`
	Scheduler struct {
		Enabled    *bool  `yaml:"enabled"`
		Interval   string `yaml:"interval"`
		MaxPerUser int    `yaml:"max_per_user"`
		Pause      string `yaml:"pause"`
	} `yaml:"scheduler"`
	Sources rawSourcesConfig `yaml:"sources"`
	Advisor rawAdvisorConfig `yaml:"advisor"`
	Store   rawStoreConfig   `yaml:"store"`
	Redis   struct {
		Prefix   string `yaml:"prefix"`
		DedupTTL string `yaml:"dedup_ttl"`
	} `yaml:"redis"`
	Admin struct {
		Username string `yaml:"username"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"admin"`
}

type rawSourcesConfig struct {
	Mode           string                  `yaml:"mode"`
	FixturePath    string                  `yaml:"fixture_path"`
	MaxCandidates  int                     `yaml:"max_candidates"`
	FetchTimeout   string                  `yaml:"fetch_timeout"`
	RequestTimeout string                  `yaml:"request_timeout"`
	MinDelay       string                  `yaml:"min_delay"`
	MaxRetries     *int                    `yaml:"max_retries"`
	CacheTTL       string                  `yaml:"cache_ttl"`
	Locations      []string                `yaml:"locations"`
	BrighterMonday BoardConfig             `yaml:"brightermonday"`
	JobsKenya      BoardConfig             `yaml:"jobskenya"`
	MyJobMag       rawBoardConfig          `yaml:"myjobmag"`
	Greenhouse     []GreenhouseBoardConfig `yaml:"greenhouse"`
}

type rawBoardConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Pages         int    `yaml:"pages"`
	Limit         int    `yaml:"limit"`
	RenderTimeout string `yaml:"render_timeout"`
}

type rawAdvisorConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Provider          string `yaml:"provider"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	Timeout           string `yaml:"timeout"`
	PersonalizeAlerts bool   `yaml:"personalize_alerts"`
	AlertTimeout      string `yaml:"alert_timeout"`
}

type rawStoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// ResolvePath applies the lookup order: explicit path, then $AJIRAWISE_CONFIG,
// then ./config.yaml.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads .env when present, parses the YAML config file at path with
// ${VAR} expansion, reads secrets from the environment, validates, and
// returns Config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(&cfg.Secrets); err != nil {
		return nil, fmt.Errorf("parse secrets: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	var p durationParser

	cfg := &Config{
		Server: ServerConfig{
			Addr:            orDefault(raw.Server.Addr, ":8080"),
			CORSOrigins:     raw.Server.CORSOrigins,
			ShutdownTimeout: p.parse("server.shutdown_timeout", raw.Server.ShutdownTimeout, 10*time.Second),
		},
		Credits: CreditsConfig{
			Mode:         orDefault(raw.Credits.Mode, "instant"),
			KESPerCredit: intOrDefault(raw.Credits.KESPerCredit, 1),
			MinTopUp:     intOrDefault(raw.Credits.MinTopUp, 1),
			MaxTopUp:     intOrDefault(raw.Credits.MaxTopUp, 30),
			Paybill:      raw.Credits.Paybill,
			DarajaEnv:    orDefault(raw.Credits.DarajaEnv, "sandbox"),
		},
		Delivery: DeliveryConfig{
			MaxPerRun: intOrDefault(raw.Delivery.MaxPerRun, 5),
		},
		Scheduler: SchedulerConfig{
			Enabled:    raw.Scheduler.Enabled == nil || *raw.Scheduler.Enabled,
			Interval:   p.parse("scheduler.interval", raw.Scheduler.Interval, time.Hour),
			MaxPerUser: intOrDefault(raw.Scheduler.MaxPerUser, 1),
			Pause:      p.parse("scheduler.pause", raw.Scheduler.Pause, time.Second),
		},
		Sources: SourcesConfig{
			Mode:           orDefault(raw.Sources.Mode, "live"),
			FixturePath:    raw.Sources.FixturePath,
			MaxCandidates:  intOrDefault(raw.Sources.MaxCandidates, 20),
			FetchTimeout:   p.parse("sources.fetch_timeout", raw.Sources.FetchTimeout, 45*time.Second),
			RequestTimeout: p.parse("sources.request_timeout", raw.Sources.RequestTimeout, 15*time.Second),
			MinDelay:       p.parse("sources.min_delay", raw.Sources.MinDelay, 2*time.Second),
			MaxRetries:     2,
			CacheTTL:       p.parse("sources.cache_ttl", raw.Sources.CacheTTL, 10*time.Minute),
			Locations:      raw.Sources.Locations,
			BrighterMonday: withPages(raw.Sources.BrighterMonday, 2),
			JobsKenya:      raw.Sources.JobsKenya,
			MyJobMag: BoardConfig{
				Enabled:       raw.Sources.MyJobMag.Enabled,
				Pages:         raw.Sources.MyJobMag.Pages,
				Limit:         raw.Sources.MyJobMag.Limit,
				RenderTimeout: p.parse("sources.myjobmag.render_timeout", raw.Sources.MyJobMag.RenderTimeout, 30*time.Second),
			},
			Greenhouse: raw.Sources.Greenhouse,
		},
		Advisor: AdvisorConfig{
			Enabled:           raw.Advisor.Enabled,
			Provider:          orDefault(raw.Advisor.Provider, "openai"),
			BaseURL:           raw.Advisor.BaseURL,
			Model:             raw.Advisor.Model,
			Timeout:           p.parse("advisor.timeout", raw.Advisor.Timeout, 20*time.Second),
			PersonalizeAlerts: raw.Advisor.PersonalizeAlerts,
			AlertTimeout:      p.parse("advisor.alert_timeout", raw.Advisor.AlertTimeout, 10*time.Second),
		},
		Store: StoreConfig{
			Driver: orDefault(raw.Store.Driver, "sqlite"),
			Path:   orDefault(raw.Store.Path, "ajirawise.db"),
		},
		Redis: RedisConfig{
			Prefix:   orDefault(raw.Redis.Prefix, "ajirawise:"),
			DedupTTL: p.parse("redis.dedup_ttl", raw.Redis.DedupTTL, 24*time.Hour),
		},
		Admin: AdminConfig{
			Username: orDefault(raw.Admin.Username, "admin"),
			TokenTTL: p.parse("admin.token_ttl", raw.Admin.TokenTTL, 12*time.Hour),
		},
	}
	if raw.Sources.MaxRetries != nil {
		cfg.Sources.MaxRetries = *raw.Sources.MaxRetries
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// durationParser keeps the first parse error so fromRaw reads as one literal.
type durationParser struct{ err error }

func (p *durationParser) parse(field, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func intOrDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}

func withPages(b BoardConfig, pages int) BoardConfig {
	if b.Pages == 0 {
		b.Pages = pages
	}
	return b
}

var structValidator = validator.New()

func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			f := ve[0]
			return fmt.Errorf("config %s: failed %q (value %v)", strings.TrimPrefix(f.Namespace(), "Config."), f.Tag(), f.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}

	if cfg.Sources.Mode == "live" {
		enabled := cfg.Sources.BrighterMonday.Enabled || cfg.Sources.JobsKenya.Enabled || cfg.Sources.MyJobMag.Enabled
		for _, b := range cfg.Sources.Greenhouse {
			enabled = enabled || b.Enabled
		}
		if !enabled {
			return fmt.Errorf("sources: at least one board must be enabled in live mode")
		}
	}

	if cfg.Store.Driver == "postgres" && cfg.Secrets.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when store.driver is \"postgres\"")
	}

	if cfg.Advisor.PersonalizeAlerts && !cfg.Advisor.Enabled {
		return fmt.Errorf("advisor.personalize_alerts requires advisor.enabled")
	}

	if cfg.Advisor.Enabled {
		switch cfg.Advisor.Provider {
		case "openai":
			if cfg.Secrets.OpenRouterAPIKey == "" {
				return fmt.Errorf("OPENROUTER_API_KEY is required when advisor.provider is \"openai\"")
			}
		case "gemini":
			if cfg.Secrets.GeminiAPIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required when advisor.provider is \"gemini\"")
			}
		}
	}

	return nil
}
