package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const fixtureConfig = `
sources:
  mode: fixture
`

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	path := writeConfig(t, `
server:
  addr: ":9090"
  cors_origins: ["https://admin.ajirawise.co.ke"]
credits:
  mode: mpesa
  kes_per_credit: 10
  paybill: "174379"
delivery:
  max_per_run: 3
scheduler:
  interval: 30m
  max_per_user: 2
  pause: 500ms
sources:
  mode: live
  max_candidates: 15
  locations: [Kenya, Remote]
  brightermonday:
    enabled: true
    pages: 3
  myjobmag:
    enabled: true
    render_timeout: 20s
  greenhouse:
    - company: Andela
      board_token: andela
      enabled: true
advisor:
  enabled: true
  model: meta-llama/llama-3.1-8b-instruct
  timeout: 15s
  personalize_alerts: true
  alert_timeout: 5s
store:
  driver: sqlite
  path: /var/lib/ajirawise/bot.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Credits.Mode != "mpesa" || cfg.Credits.KESPerCredit != 10 || cfg.Credits.Paybill != "174379" {
		t.Errorf("Credits = %+v", cfg.Credits)
	}
	if cfg.Delivery.MaxPerRun != 3 {
		t.Errorf("MaxPerRun = %d, want 3", cfg.Delivery.MaxPerRun)
	}
	if cfg.Scheduler.Interval != 30*time.Minute || cfg.Scheduler.MaxPerUser != 2 || cfg.Scheduler.Pause != 500*time.Millisecond {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = false, want default true")
	}
	if cfg.Sources.BrighterMonday.Pages != 3 || cfg.Sources.MyJobMag.RenderTimeout != 20*time.Second {
		t.Errorf("boards = %+v / %+v", cfg.Sources.BrighterMonday, cfg.Sources.MyJobMag)
	}
	if len(cfg.Sources.Greenhouse) != 1 || cfg.Sources.Greenhouse[0].BoardToken != "andela" {
		t.Errorf("Greenhouse = %+v", cfg.Sources.Greenhouse)
	}
	if cfg.Advisor.Provider != "openai" || cfg.Advisor.Timeout != 15*time.Second ||
		!cfg.Advisor.PersonalizeAlerts || cfg.Advisor.AlertTimeout != 5*time.Second {
		t.Errorf("Advisor = %+v", cfg.Advisor)
	}
	if cfg.Store.Path != "/var/lib/ajirawise/bot.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Secrets.TelegramBotToken != "123:abc" || cfg.Secrets.OpenRouterAPIKey != "sk-or-test" {
		t.Errorf("Secrets = %+v", cfg.Secrets)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, fixtureConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Credits.Mode != "instant" || cfg.Credits.MinTopUp != 1 || cfg.Credits.MaxTopUp != 30 || cfg.Credits.KESPerCredit != 1 {
		t.Errorf("Credits = %+v", cfg.Credits)
	}
	if cfg.Delivery.MaxPerRun != 5 {
		t.Errorf("MaxPerRun = %d, want 5", cfg.Delivery.MaxPerRun)
	}
	if cfg.Scheduler.MaxPerUser != 1 || cfg.Scheduler.Interval != time.Hour {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "ajirawise.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Sources.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Sources.MaxRetries)
	}
	if cfg.Advisor.PersonalizeAlerts || cfg.Advisor.AlertTimeout != 10*time.Second {
		t.Errorf("Advisor = %+v", cfg.Advisor)
	}
	if cfg.Admin.Username != "admin" || cfg.Admin.TokenTTL != 12*time.Hour {
		t.Errorf("Admin = %+v", cfg.Admin)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("AJIRAWISE_TEST_PAYBILL", "600000")
	cfg, err := Load(writeConfig(t, fixtureConfig+`
credits:
  mode: mpesa
  paybill: "${AJIRAWISE_TEST_PAYBILL}"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Credits.Paybill != "600000" {
		t.Errorf("Paybill = %q, want 600000", cfg.Credits.Paybill)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "scheduler: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad duration",
			content: fixtureConfig + "scheduler:\n  interval: soon\n",
			wantErr: "scheduler.interval",
		},
		{
			name:    "interval below a second",
			content: fixtureConfig + "scheduler:\n  interval: 10ms\n",
			wantErr: "Scheduler.Interval",
		},
		{
			name:    "unknown credit mode",
			content: fixtureConfig + "credits:\n  mode: barter\n",
			wantErr: "Credits.Mode",
		},
		{
			name:    "mpesa without paybill",
			content: fixtureConfig + "credits:\n  mode: mpesa\n",
			wantErr: "Credits.Paybill",
		},
		{
			name:    "max below min top-up",
			content: fixtureConfig + "credits:\n  min_topup: 10\n  max_topup: 5\n",
			wantErr: "Credits.MaxTopUp",
		},
		{
			name:    "delivery cap too large",
			content: fixtureConfig + "delivery:\n  max_per_run: 500\n",
			wantErr: "Delivery.MaxPerRun",
		},
		{
			name:    "live mode without boards",
			content: "sources:\n  mode: live\n",
			wantErr: "at least one board",
		},
		{
			name:    "greenhouse board without token",
			content: "sources:\n  mode: live\n  greenhouse:\n    - company: Acme\n      enabled: true\n",
			wantErr: "BoardToken",
		},
		{
			name:    "postgres without DATABASE_URL",
			content: fixtureConfig + "store:\n  driver: postgres\n",
			wantErr: "DATABASE_URL",
		},
		{
			name:    "advisor without key",
			content: fixtureConfig + "advisor:\n  enabled: true\n  provider: gemini\n  model: gemini-1.5-flash\n",
			wantErr: "GEMINI_API_KEY",
		},
		{
			name:    "personalized alerts without advisor",
			content: fixtureConfig + "advisor:\n  personalize_alerts: true\n",
			wantErr: "personalize_alerts",
		},
		{
			name:    "advisor without model",
			content: fixtureConfig + "advisor:\n  enabled: true\n",
			wantErr: "Advisor.Model",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath(\"\") = %q, want %q", got, DefaultPath)
	}

	t.Setenv(EnvPath, "/etc/ajirawise/config.yaml")
	if got := ResolvePath(""); got != "/etc/ajirawise/config.yaml" {
		t.Errorf("ResolvePath with env = %q", got)
	}
	if got := ResolvePath("local.yaml"); got != "local.yaml" {
		t.Errorf("ResolvePath(flag) = %q, want local.yaml", got)
	}
}
