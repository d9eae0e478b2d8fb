package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/ajirawise/internal/model"
)

// Ensure MemoryStore implements model.Repository.
var _ model.Repository = (*MemoryStore)(nil)

// MemoryStore is an in-process repository used by dry runs, the local chat
// console and tests. A single mutex makes every call atomic.
type MemoryStore struct {
	mu           sync.Mutex
	users        map[string]model.UserProfile
	sent         map[string]map[string]time.Time
	payments     map[string]model.Payment
	transactions []model.CreditTransaction
	advisories   int
	now          func() time.Time
}

// NewMemoryStore returns an empty in-memory repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]model.UserProfile),
		sent:     make(map[string]map[string]time.Time),
		payments: make(map[string]model.Payment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetUser(_ context.Context, channelID string) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[channelID]
	if !ok {
		return model.UserProfile{}, model.ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, channelID string, fields model.UserFields) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.ensureUser(channelID)
	if fields.Interest != nil {
		u.Interest = *fields.Interest
	}
	if fields.PendingMenu != nil {
		u.PendingMenu = *fields.PendingMenu
	}
	u.UpdatedAt = s.now()
	s.users[channelID] = u
	return u, nil
}

func (s *MemoryStore) AdjustBalance(_ context.Context, channelID string, delta int, reason model.CreditReason, reference string) (model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if delta == 0 {
		u, ok := s.users[channelID]
		if !ok {
			return model.UserProfile{}, model.ErrNotFound
		}
		return u, nil
	}
	if delta > 0 {
		s.ensureUser(channelID)
	}
	return s.applyDelta(channelID, delta, reason, reference)
}

func (s *MemoryStore) RecordSentIfAbsent(_ context.Context, channelID, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(channelID, jobID), nil
}

func (s *MemoryStore) ClaimJob(_ context.Context, channelID, jobID string) (model.UserProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[channelID]
	if !ok {
		return model.UserProfile{}, false, model.ErrNotFound
	}
	if s.sent[channelID] != nil {
		if _, dup := s.sent[channelID][jobID]; dup {
			return u, false, nil
		}
	}
	if u.Balance < 1 {
		return model.UserProfile{}, false, model.ErrInsufficientBalance
	}
	s.record(channelID, jobID)
	u, err := s.applyDelta(channelID, -1, model.ReasonDispatch, jobID)
	if err != nil {
		return model.UserProfile{}, false, err
	}
	return u, true, nil
}

func (s *MemoryStore) CreditPayment(_ context.Context, p model.Payment) (model.UserProfile, bool, error) {
	if err := validatePayment(p); err != nil {
		return model.UserProfile{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.ensureUser(p.ChannelID)
	if _, dup := s.payments[p.TransactionID]; dup {
		return u, false, nil
	}
	s.payments[p.TransactionID] = p
	u, err := s.applyDelta(p.ChannelID, p.Credits, model.ReasonPayment, p.TransactionID)
	if err != nil {
		return model.UserProfile{}, false, err
	}
	return u, true, nil
}

func (s *MemoryStore) ListDeliverable(_ context.Context) ([]model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []model.UserProfile
	for _, u := range s.users {
		if u.Interest != "" && u.Balance > 0 {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ChannelID < users[j].ChannelID })
	return users, nil
}

func (s *MemoryStore) LogAdvisory(_ context.Context, _, _, _ string, _ model.AdvisoryKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advisories++
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := model.Stats{
		Users:          len(s.users),
		Payments:       len(s.payments),
		AdvisoryLogged: s.advisories,
	}
	for _, u := range s.users {
		if u.Balance > 0 {
			st.FundedUsers++
		}
	}
	for _, jobs := range s.sent {
		st.JobsSent += len(jobs)
	}
	return st, nil
}

// Transactions returns a copy of the credit audit trail.
func (s *MemoryStore) Transactions() []model.CreditTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CreditTransaction(nil), s.transactions...)
}

func (s *MemoryStore) Close() error { return nil }

// ensureUser must be called with mu held.
func (s *MemoryStore) ensureUser(channelID string) model.UserProfile {
	u, ok := s.users[channelID]
	if !ok {
		now := s.now()
		u = model.UserProfile{ChannelID: channelID, PendingMenu: model.MenuNone, CreatedAt: now, UpdatedAt: now}
		s.users[channelID] = u
	}
	return u
}

// record must be called with mu held.
func (s *MemoryStore) record(channelID, jobID string) bool {
	jobs := s.sent[channelID]
	if jobs == nil {
		jobs = make(map[string]time.Time)
		s.sent[channelID] = jobs
	}
	if _, ok := jobs[jobID]; ok {
		return false
	}
	jobs[jobID] = s.now()
	return true
}

// applyDelta must be called with mu held.
func (s *MemoryStore) applyDelta(channelID string, delta int, reason model.CreditReason, reference string) (model.UserProfile, error) {
	u, ok := s.users[channelID]
	if !ok || u.Balance+delta < 0 {
		return model.UserProfile{}, model.ErrInsufficientBalance
	}
	now := s.now()
	u.Balance += delta
	u.UpdatedAt = now
	s.users[channelID] = u
	s.transactions = append(s.transactions, model.CreditTransaction{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Delta:     delta,
		Reason:    reason,
		Reference: reference,
		CreatedAt: now,
	})
	return u, nil
}
