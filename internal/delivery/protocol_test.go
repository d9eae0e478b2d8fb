package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/store"
)

// --- Fakes ---

// staticSource returns the same ordered candidates on every call.
type staticSource struct {
	jobs        []model.JobPosting
	calls       int
	hadDeadline bool
}

func (s *staticSource) FetchCandidates(ctx context.Context, _ string) []model.JobPosting {
	s.calls++
	_, s.hadDeadline = ctx.Deadline()
	return s.jobs
}

// recordingSender records every message; safe for concurrent use.
type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingSender) Send(_ context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, channelID+"|"+text)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeJobs(n int) []model.JobPosting {
	jobs := make([]model.JobPosting, n)
	for i := range jobs {
		jobs[i] = model.JobPosting{
			Title:    fmt.Sprintf("Backend Developer %d", i+1),
			Company:  "Acme",
			Location: "Nairobi",
			URL:      fmt.Sprintf("https://example.co.ke/jobs/%d", i+1),
			Source:   "Fixture",
			Category: "Software Engineering",
		}.WithFingerprint()
	}
	return jobs
}

func seedUser(t *testing.T, repo model.Repository, id, interest string, balance int) model.UserProfile {
	t.Helper()
	ctx := context.Background()
	u, err := repo.UpsertUser(ctx, id, model.UserFields{Interest: &interest})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if balance > 0 {
		if u, err = repo.AdjustBalance(ctx, id, balance, model.ReasonTopUp, "seed"); err != nil {
			t.Fatalf("AdjustBalance: %v", err)
		}
	}
	return u
}

func jobsSent(t *testing.T, repo model.Repository) int {
	t.Helper()
	st, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return st.JobsSent
}

// --- Tests ---

func TestDeliver_SendsUpToBalance(t *testing.T) {
	repo := store.NewMemoryStore()
	user := seedUser(t, repo, "+254700000001", "Software Engineering", 3)
	src := &staticSource{jobs: makeJobs(5)}
	sender := &recordingSender{}
	p := NewProtocol(src, repo, sender, 5, time.Second, discardLogger())

	res, err := p.Deliver(context.Background(), user, TriggerChat)
	if err != nil {
		t.Fatalf("Deliver() = %v", err)
	}
	if res.Outcome != OutcomeDelivered || len(res.Sent) != 3 || res.Balance != 0 {
		t.Fatalf("result = %+v", res)
	}
	for i, job := range res.Sent {
		if job.ID != src.jobs[i].ID {
			t.Errorf("sent[%d] = %s, want candidate order preserved", i, job.Title)
		}
	}
	if sender.count() != 3 {
		t.Errorf("sender got %d messages, want 3", sender.count())
	}
	if n := jobsSent(t, repo); n != 3 {
		t.Errorf("ledger rows = %d, want 3", n)
	}
	got, _ := repo.GetUser(context.Background(), user.ChannelID)
	if got.Balance != 0 {
		t.Errorf("stored balance = %d, want 0", got.Balance)
	}
	if !strings.Contains(sender.sent[2], "💳 Remaining: 0") {
		t.Errorf("last message lacks remaining balance:\n%s", sender.sent[2])
	}

	// Next call: balance is exhausted, nothing is fetched or sent.
	user, _ = repo.GetUser(context.Background(), user.ChannelID)
	res, err = p.Deliver(context.Background(), user, TriggerChat)
	if err != nil {
		t.Fatalf("second Deliver() = %v", err)
	}
	if res.Outcome != OutcomeNoCredit || len(res.Sent) != 0 {
		t.Errorf("second result = %+v", res)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
	if n := jobsSent(t, repo); n != 3 {
		t.Errorf("ledger rows = %d after second call, want 3", n)
	}
}

func TestDeliver_SkipsAlreadySent(t *testing.T) {
	repo := store.NewMemoryStore()
	user := seedUser(t, repo, "+254700000002", "Software Engineering", 3)
	jobs := makeJobs(5)
	for _, j := range jobs[:3] {
		repo.RecordSentIfAbsent(context.Background(), user.ChannelID, j.ID)
	}
	p := NewProtocol(&staticSource{jobs: jobs}, repo, &recordingSender{}, 5, 0, discardLogger())

	res, err := p.Deliver(context.Background(), user, TriggerChat)
	if err != nil {
		t.Fatalf("Deliver() = %v", err)
	}
	if len(res.Sent) != 2 || res.Sent[0].ID != jobs[3].ID || res.Sent[1].ID != jobs[4].ID {
		t.Fatalf("sent = %+v", res.Sent)
	}
	if res.Balance != 1 {
		t.Errorf("balance = %d, want 1", res.Balance)
	}
}

func TestDeliver_Cap(t *testing.T) {
	repo := store.NewMemoryStore()
	user := seedUser(t, repo, "+254700000003", "Software Engineering", 10)
	p := NewProtocol(&staticSource{jobs: makeJobs(8)}, repo, &recordingSender{}, 5, 0, discardLogger())

	res, _ := p.Deliver(context.Background(), user, TriggerChat)
	if len(res.Sent) != 5 || res.Balance != 5 {
		t.Errorf("result = %d sent, balance %d; want 5, 5", len(res.Sent), res.Balance)
	}

	one := p.WithCap(1)
	if one.Cap() != 1 || p.Cap() != 5 {
		t.Errorf("WithCap changed the original: %d/%d", one.Cap(), p.Cap())
	}
}

func TestDeliver_NothingNewMutatesNothing(t *testing.T) {
	tests := []struct {
		name    string
		jobs    []model.JobPosting
		preSent int
		want    Outcome
	}{
		{"source empty", nil, 0, OutcomeSourceEmpty},
		{"all already sent", makeJobs(3), 3, OutcomeAllSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := store.NewMemoryStore()
			user := seedUser(t, repo, "+254700000004", "Software Engineering", 4)
			for _, j := range tt.jobs[:tt.preSent] {
				repo.RecordSentIfAbsent(context.Background(), user.ChannelID, j.ID)
			}
			sender := &recordingSender{}
			p := NewProtocol(&staticSource{jobs: tt.jobs}, repo, sender, 5, 0, discardLogger())

			res, err := p.Deliver(context.Background(), user, TriggerChat)
			if err != nil {
				t.Fatalf("Deliver() = %v", err)
			}
			if res.Outcome != tt.want || res.Balance != 4 {
				t.Errorf("result = %+v", res)
			}
			got, _ := repo.GetUser(context.Background(), user.ChannelID)
			if got.Balance != 4 {
				t.Errorf("stored balance = %d, want 4", got.Balance)
			}
			if n := jobsSent(t, repo); n != tt.preSent {
				t.Errorf("ledger rows = %d, want %d", n, tt.preSent)
			}
			if sender.count() != 0 {
				t.Errorf("sender got %d messages", sender.count())
			}
		})
	}
}

func TestDeliver_Guards(t *testing.T) {
	src := &staticSource{jobs: makeJobs(2)}
	p := NewProtocol(src, store.NewMemoryStore(), &recordingSender{}, 5, 0, discardLogger())

	res, _ := p.Deliver(context.Background(), model.UserProfile{ChannelID: "a", Balance: 3}, TriggerChat)
	if res.Outcome != OutcomeNoInterest {
		t.Errorf("no interest outcome = %v", res.Outcome)
	}
	res, _ = p.Deliver(context.Background(), model.UserProfile{ChannelID: "a", Interest: "Data Entry"}, TriggerChat)
	if res.Outcome != OutcomeNoCredit {
		t.Errorf("no credit outcome = %v", res.Outcome)
	}
	if src.calls != 0 {
		t.Errorf("source called %d times", src.calls)
	}
}

func TestDeliver_SendFailureKeepsClaim(t *testing.T) {
	repo := store.NewMemoryStore()
	user := seedUser(t, repo, "+254700000005", "Software Engineering", 3)
	sender := &recordingSender{err: errors.New("channel down")}
	p := NewProtocol(&staticSource{jobs: makeJobs(5)}, repo, sender, 5, 0, discardLogger())

	res, err := p.Deliver(context.Background(), user, TriggerChat)
	if err == nil {
		t.Fatal("expected send error")
	}
	if len(res.Sent) != 1 || res.Balance != 2 {
		t.Errorf("result = %d sent, balance %d; want 1, 2", len(res.Sent), res.Balance)
	}
	if n := jobsSent(t, repo); n != 1 {
		t.Errorf("ledger rows = %d, want 1", n)
	}
}

func TestDeliver_FetchIsBounded(t *testing.T) {
	repo := store.NewMemoryStore()
	user := seedUser(t, repo, "+254700000006", "Software Engineering", 1)
	src := &staticSource{jobs: makeJobs(1)}
	p := NewProtocol(src, repo, &recordingSender{}, 5, 50*time.Millisecond, discardLogger())

	p.Deliver(context.Background(), user, TriggerChat)
	if !src.hadDeadline {
		t.Error("source context carried no deadline")
	}
}

func TestDeliver_ConcurrentTriggersNeverDoubleSend(t *testing.T) {
	repo := store.NewMemoryStore()
	user := seedUser(t, repo, "+254700000007", "Software Engineering", 3)
	sender := &recordingSender{}
	jobs := makeJobs(5)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := NewProtocol(&staticSource{jobs: jobs}, repo, sender, 5, 0, discardLogger())
			p.Deliver(context.Background(), user, TriggerScheduled)
		}()
	}
	wg.Wait()

	got, _ := repo.GetUser(context.Background(), user.ChannelID)
	if got.Balance != 0 {
		t.Errorf("balance = %d, want 0", got.Balance)
	}
	if sender.count() != 3 {
		t.Errorf("messages sent = %d, want 3", sender.count())
	}
	if n := jobsSent(t, repo); n != 3 {
		t.Errorf("ledger rows = %d, want 3", n)
	}
	seen := map[string]bool{}
	for _, m := range sender.sent {
		if seen[m] {
			t.Errorf("duplicate message:\n%s", m)
		}
		seen[m] = true
	}
}

func TestFormatJob(t *testing.T) {
	job := model.JobPosting{Title: "Accounts Clerk", URL: "https://example.co.ke/1"}

	chat := FormatJob(job, "Finance & Accounting", 4, TriggerChat)
	for _, want := range []string{
		"🎯 *New Finance & Accounting Job Alert:*",
		"📋 *Accounts Clerk*",
		"🏢 Company: Not specified",
		"📍 Location: Kenya",
		"🌐 Source: Job Board",
		"💳 Remaining: 4",
		"Good luck!",
	} {
		if !strings.Contains(chat, want) {
			t.Errorf("chat message lacks %q:\n%s", want, chat)
		}
	}

	scheduled := FormatJob(job, "Finance & Accounting", 0, TriggerScheduled)
	if !strings.HasPrefix(scheduled, "🔔 *Scheduled Job Alert - Finance & Accounting*") {
		t.Errorf("scheduled header:\n%s", scheduled)
	}
}
