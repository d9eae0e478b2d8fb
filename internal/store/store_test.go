package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/amishk599/ajirawise/internal/model"
)

type repoFactory struct {
	name string
	open func(t *testing.T) model.Repository
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func factories() []repoFactory {
	f := []repoFactory{
		{"memory", func(t *testing.T) model.Repository { return NewMemoryStore() }},
		{"sqlite", func(t *testing.T) model.Repository { return newTestStore(t) }},
	}
	if url := os.Getenv("AJIRAWISE_TEST_DATABASE_URL"); url != "" {
		f = append(f, repoFactory{"postgres", func(t *testing.T) model.Repository { return newTestPostgres(t, url) }})
	}
	return f
}

func forEachRepo(t *testing.T, fn func(t *testing.T, repo model.Repository)) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.open(t))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestGetUserUnknownReturnsNotFound(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		_, err := repo.GetUser(context.Background(), uniqueID(t, "+254700000001"))
		if !errors.Is(err, model.ErrNotFound) {
			t.Errorf("GetUser err = %v, want ErrNotFound", err)
		}
	})
}

func TestUpsertUserCreatesAndPatches(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		id := uniqueID(t, "+254700000002")

		u, err := repo.UpsertUser(ctx, id, model.UserFields{PendingMenu: ptr(model.MenuAwaitingInterest)})
		if err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		if u.PendingMenu != model.MenuAwaitingInterest || u.Interest != "" || u.Balance != 0 {
			t.Errorf("after create got %+v", u)
		}

		u, err = repo.UpsertUser(ctx, id, model.UserFields{Interest: ptr("Data Entry")})
		if err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
		if u.Interest != "Data Entry" {
			t.Errorf("Interest = %q, want Data Entry", u.Interest)
		}
		if u.PendingMenu != model.MenuAwaitingInterest {
			t.Errorf("PendingMenu changed to %q by a nil field", u.PendingMenu)
		}

		got, err := repo.GetUser(ctx, id)
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if got.Interest != "Data Entry" || got.ChannelID != id {
			t.Errorf("GetUser = %+v", got)
		}
	})
}

func TestAdjustBalance(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		id := uniqueID(t, "+254700000003")

		u, err := repo.AdjustBalance(ctx, id, 5, model.ReasonTopUp, "")
		if err != nil {
			t.Fatalf("AdjustBalance(+5): %v", err)
		}
		if u.Balance != 5 {
			t.Errorf("Balance = %d, want 5", u.Balance)
		}

		if _, err := repo.AdjustBalance(ctx, id, -6, model.ReasonDispatch, "x"); !errors.Is(err, model.ErrInsufficientBalance) {
			t.Errorf("AdjustBalance(-6) err = %v, want ErrInsufficientBalance", err)
		}

		u, err = repo.AdjustBalance(ctx, id, -5, model.ReasonDispatch, "x")
		if err != nil {
			t.Fatalf("AdjustBalance(-5): %v", err)
		}
		if u.Balance != 0 {
			t.Errorf("Balance = %d, want 0", u.Balance)
		}
	})
}

func TestAdjustBalanceNegativeOnUnknownUser(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		_, err := repo.AdjustBalance(context.Background(), uniqueID(t, "+254700000004"), -1, model.ReasonDispatch, "")
		if !errors.Is(err, model.ErrInsufficientBalance) {
			t.Errorf("err = %v, want ErrInsufficientBalance", err)
		}
	})
}

func TestRecordSentIfAbsent(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		id := uniqueID(t, "+254700000005")

		first, err := repo.RecordSentIfAbsent(ctx, id, "job-1")
		if err != nil {
			t.Fatalf("RecordSentIfAbsent: %v", err)
		}
		second, err := repo.RecordSentIfAbsent(ctx, id, "job-1")
		if err != nil {
			t.Fatalf("RecordSentIfAbsent: %v", err)
		}
		other, err := repo.RecordSentIfAbsent(ctx, uniqueID(t, "+254700000006"), "job-1")
		if err != nil {
			t.Fatalf("RecordSentIfAbsent: %v", err)
		}
		if !first || second || !other {
			t.Errorf("got first=%v second=%v other=%v, want true false true", first, second, other)
		}
	})
}

func TestClaimJob(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		id := uniqueID(t, "+254700000007")
		if _, err := repo.AdjustBalance(ctx, id, 2, model.ReasonTopUp, ""); err != nil {
			t.Fatalf("AdjustBalance: %v", err)
		}

		u, claimed, err := repo.ClaimJob(ctx, id, "job-a")
		if err != nil || !claimed || u.Balance != 1 {
			t.Fatalf("first claim = (%d, %v, %v), want (1, true, nil)", u.Balance, claimed, err)
		}

		u, claimed, err = repo.ClaimJob(ctx, id, "job-a")
		if err != nil || claimed || u.Balance != 1 {
			t.Fatalf("duplicate claim = (%d, %v, %v), want (1, false, nil)", u.Balance, claimed, err)
		}

		u, claimed, err = repo.ClaimJob(ctx, id, "job-b")
		if err != nil || !claimed || u.Balance != 0 {
			t.Fatalf("second claim = (%d, %v, %v), want (0, true, nil)", u.Balance, claimed, err)
		}

		_, claimed, err = repo.ClaimJob(ctx, id, "job-c")
		if !errors.Is(err, model.ErrInsufficientBalance) || claimed {
			t.Fatalf("claim at zero = (%v, %v), want ErrInsufficientBalance", claimed, err)
		}

		// The failed claim must not leave a ledger row behind.
		added, err := repo.RecordSentIfAbsent(ctx, id, "job-c")
		if err != nil || !added {
			t.Errorf("job-c ledger row present after failed claim (added=%v, err=%v)", added, err)
		}
	})
}

func TestClaimJobConcurrentNeverOverdraws(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		id := uniqueID(t, "+254700000008")
		const credits, workers = 3, 12
		if _, err := repo.AdjustBalance(ctx, id, credits, model.ReasonTopUp, ""); err != nil {
			t.Fatalf("AdjustBalance: %v", err)
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// Half the workers race for the same job id.
				jobID := fmt.Sprintf("job-%d", i%(workers/2))
				_, ok, err := repo.ClaimJob(ctx, id, jobID)
				if err != nil && !errors.Is(err, model.ErrInsufficientBalance) {
					t.Errorf("ClaimJob: %v", err)
				}
				if ok {
					mu.Lock()
					claimed++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		u, err := repo.GetUser(ctx, id)
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if claimed != credits {
			t.Errorf("claimed = %d, want %d", claimed, credits)
		}
		if u.Balance != 0 {
			t.Errorf("Balance = %d, want 0", u.Balance)
		}
	})
}

func TestBalanceNeverNegativeUnderRandomOps(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		id := uniqueID(t, "+254700000009")
		rng := rand.New(rand.NewSource(7))
		want := 0

		for i := 0; i < 200; i++ {
			switch rng.Intn(3) {
			case 0:
				n := rng.Intn(30) + 1
				if _, err := repo.AdjustBalance(ctx, id, n, model.ReasonTopUp, ""); err != nil {
					t.Fatalf("top-up: %v", err)
				}
				want += n
			case 1:
				_, claimed, err := repo.ClaimJob(ctx, id, fmt.Sprintf("job-%d", rng.Intn(50)))
				if err != nil && !errors.Is(err, model.ErrInsufficientBalance) && !errors.Is(err, model.ErrNotFound) {
					t.Fatalf("claim: %v", err)
				}
				if claimed {
					want--
				}
			default:
				n := rng.Intn(10) + 1
				_, err := repo.AdjustBalance(ctx, id, -n, model.ReasonDispatch, "")
				if err == nil {
					want -= n
				} else if !errors.Is(err, model.ErrInsufficientBalance) {
					t.Fatalf("debit: %v", err)
				}
			}
			if want < 0 {
				t.Fatalf("model balance went negative at step %d", i)
			}
		}

		u, err := repo.GetUser(ctx, id)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("GetUser: %v", err)
		}
		if u.Balance != want {
			t.Errorf("Balance = %d, want %d", u.Balance, want)
		}
	})
}

func TestCreditPaymentIdempotent(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		id := uniqueID(t, "+254700000010")
		p := model.Payment{TransactionID: uniqueID(t, "QK12ABC"), ChannelID: id, Credits: 4, AmountMinor: 4000}

		u, applied, err := repo.CreditPayment(ctx, p)
		if err != nil || !applied || u.Balance != 4 {
			t.Fatalf("first credit = (%d, %v, %v)", u.Balance, applied, err)
		}
		u, applied, err = repo.CreditPayment(ctx, p)
		if err != nil || applied || u.Balance != 4 {
			t.Fatalf("replayed credit = (%d, %v, %v), want (4, false, nil)", u.Balance, applied, err)
		}
	})
}

func TestCreditPaymentValidation(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		_, _, err := repo.CreditPayment(context.Background(), model.Payment{TransactionID: "T1", ChannelID: "+254700000011"})
		var verr *model.ValidationError
		if !errors.As(err, &verr) || verr.Field != "credits" {
			t.Errorf("err = %v, want credits ValidationError", err)
		}
	})
}

func TestListDeliverable(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo model.Repository) {
		ctx := context.Background()
		funded := uniqueID(t, "+254700000012")
		broke := uniqueID(t, "+254700000013")
		noInterest := uniqueID(t, "+254700000014")

		repo.UpsertUser(ctx, funded, model.UserFields{Interest: ptr("Sales & Marketing")})
		repo.AdjustBalance(ctx, funded, 3, model.ReasonTopUp, "")
		repo.UpsertUser(ctx, broke, model.UserFields{Interest: ptr("Data Entry")})
		repo.AdjustBalance(ctx, noInterest, 3, model.ReasonTopUp, "")

		users, err := repo.ListDeliverable(ctx)
		if err != nil {
			t.Fatalf("ListDeliverable: %v", err)
		}
		seen := map[string]bool{}
		for _, u := range users {
			seen[u.ChannelID] = true
		}
		if !seen[funded] || seen[broke] || seen[noInterest] {
			t.Errorf("ListDeliverable = %v", users)
		}
	})
}

func TestStatsCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AdjustBalance(ctx, "+254700000015", 2, model.ReasonTopUp, "")
	s.ClaimJob(ctx, "+254700000015", "job-1")
	s.CreditPayment(ctx, model.Payment{TransactionID: "T9", ChannelID: "+254700000016", Credits: 1, AmountMinor: 1000})
	s.LogAdvisory(ctx, "+254700000015", "cv tips?", "keep it short", model.AdvisoryAnswered)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := model.Stats{Users: 2, FundedUsers: 2, JobsSent: 1, Payments: 1, AdvisoryLogged: 1}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
}

func TestSQLiteReopenKeepsState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if _, _, err := s.CreditPayment(ctx, model.Payment{TransactionID: "T1", ChannelID: "+254700000017", Credits: 2, AmountMinor: 2000}); err != nil {
		t.Fatalf("CreditPayment: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	u, err := s.GetUser(ctx, "+254700000017")
	if err != nil || u.Balance != 2 {
		t.Fatalf("after reopen = (%+v, %v)", u, err)
	}
	_, applied, err := s.CreditPayment(ctx, model.Payment{TransactionID: "T1", ChannelID: "+254700000017", Credits: 2, AmountMinor: 2000})
	if err != nil || applied {
		t.Errorf("replay after reopen applied=%v err=%v", applied, err)
	}
}

func TestMemoryStoreAuditTrail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.AdjustBalance(ctx, "+254700000018", 1, model.ReasonTopUp, "")
	s.ClaimJob(ctx, "+254700000018", "job-1")

	txs := s.Transactions()
	if len(txs) != 2 {
		t.Fatalf("len(Transactions) = %d, want 2", len(txs))
	}
	if txs[1].Reason != model.ReasonDispatch || txs[1].Reference != "job-1" || txs[1].Delta != -1 {
		t.Errorf("dispatch transaction = %+v", txs[1])
	}
}
