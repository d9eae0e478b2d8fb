package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/ajirawise/internal/ai"
	"github.com/amishk599/ajirawise/internal/config"
	"github.com/amishk599/ajirawise/internal/model"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) Send(_ context.Context, _, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func testConfig(mode string) *config.Config {
	return &config.Config{
		Credits: config.CreditsConfig{
			Mode:         mode,
			KESPerCredit: 1,
			MinTopUp:     1,
			MaxTopUp:     30,
			Paybill:      "174379",
		},
		Delivery:  config.DeliveryConfig{MaxPerRun: 5},
		Scheduler: config.SchedulerConfig{Interval: time.Hour, MaxPerUser: 1},
		Sources: config.SourcesConfig{
			Mode:           "fixture",
			MaxCandidates:  20,
			FetchTimeout:   5 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Store: config.StoreConfig{Driver: "memory"},
		Redis: config.RedisConfig{Prefix: "test:", DedupTTL: time.Hour},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewApp_ConversationWithFixtures(t *testing.T) {
	sender := &recordingSender{}
	a, err := newApp(context.Background(), testConfig("instant"), sender, discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if a.payments != nil {
		t.Error("payments wired in instant mode")
	}

	ctx := context.Background()
	for _, msg := range []string{"hi", "finance", "2", "jobs"} {
		if _, err := a.service.HandleMessage(ctx, "console:tester", msg); err != nil {
			t.Fatalf("HandleMessage(%q): %v", msg, err)
		}
	}

	if len(sender.sent) != 2 {
		t.Fatalf("alerts sent = %d, want 2", len(sender.sent))
	}
	user, err := a.repo.GetUser(ctx, "console:tester")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Balance != 0 || user.Interest != "Finance & Accounting" {
		t.Errorf("user = %+v", user)
	}
}

func TestNewApp_MpesaWiresPayments(t *testing.T) {
	a, err := newApp(context.Background(), testConfig("mpesa"), &recordingSender{}, discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if a.payments == nil {
		t.Fatal("payments not wired in mpesa mode")
	}
}

func TestCreateFetchers_LiveBoards(t *testing.T) {
	cfg := testConfig("instant")
	cfg.Sources.Mode = "live"
	cfg.Sources.BrighterMonday = config.BoardConfig{Enabled: true, Pages: 2}
	cfg.Sources.JobsKenya = config.BoardConfig{Enabled: true, Limit: 5}
	cfg.Sources.Greenhouse = []config.GreenhouseBoardConfig{
		{Company: "Andela", BoardToken: "andela", Enabled: true},
		{Company: "Paused", BoardToken: "paused", Enabled: false},
	}

	fetchers, err := createFetchers(cfg, http.DefaultClient)
	if err != nil {
		t.Fatalf("createFetchers: %v", err)
	}
	var names []string
	for _, f := range fetchers {
		names = append(names, f.Name())
	}
	got := strings.Join(names, ",")
	if got != "BrighterMonday,Jobs Kenya,Greenhouse" {
		t.Errorf("fetchers = %s", got)
	}
}

func TestCreateFetchers_FixtureMode(t *testing.T) {
	fetchers, err := createFetchers(testConfig("instant"), http.DefaultClient)
	if err != nil {
		t.Fatalf("createFetchers: %v", err)
	}
	if len(fetchers) != 1 || fetchers[0].Name() != "Fixture" {
		t.Errorf("fetchers = %v", fetchers)
	}
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	printCandidates(&buf, "Data Entry", nil)
	if !strings.Contains(buf.String(), "No Data Entry candidates") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	printCandidates(&buf, "Data Entry", []model.JobPosting{
		{Title: "Data Entry Clerk", Company: "Acme", URL: "https://example.com/1"},
	})
	out := buf.String()
	if !strings.Contains(out, "1 Data Entry candidates") || !strings.Contains(out, "Data Entry Clerk") {
		t.Errorf("output = %q", out)
	}
}

type stubProvider struct{}

func (stubProvider) Complete(context.Context, string, string) (string, error) {
	return "Great fit for you!", nil
}

func TestSetupAdvisorAndAlertWriter(t *testing.T) {
	cfg := testConfig("instant")
	if setupAdvisor(cfg, stubProvider{}, discardLogger()) != nil {
		t.Error("advisor wired while disabled")
	}
	if setupAlertWriter(cfg, stubProvider{}, discardLogger()) != nil {
		t.Error("alert writer wired while personalization is off")
	}

	cfg.Advisor.Enabled = true
	if _, ok := setupAdvisor(cfg, nil, discardLogger()).(*ai.NopAdvisor); !ok {
		t.Error("missing provider should degrade to NopAdvisor")
	}
	if _, ok := setupAdvisor(cfg, stubProvider{}, discardLogger()).(*ai.LLMAdvisor); !ok {
		t.Error("provider should yield LLMAdvisor")
	}

	cfg.Advisor.PersonalizeAlerts = true
	if setupAlertWriter(cfg, nil, discardLogger()) != nil {
		t.Error("alert writer wired without a provider")
	}
	if _, ok := setupAlertWriter(cfg, stubProvider{}, discardLogger()).(*ai.LLMAlertWriter); !ok {
		t.Error("alert writer not wired")
	}
}
