package model

import (
	"context"
	"fmt"
	"time"
)

// MenuState tracks where a user is in the guided flow.
type MenuState string

const (
	MenuNone                 MenuState = "NONE"
	MenuAwaitingInterest     MenuState = "AWAITING_INTEREST"
	MenuAwaitingCreditAmount MenuState = "AWAITING_CREDIT_AMOUNT"
)

// Valid reports whether s is one of the known menu states.
func (s MenuState) Valid() bool {
	switch s {
	case MenuNone, MenuAwaitingInterest, MenuAwaitingCreditAmount:
		return true
	}
	return false
}

// Stage is derived from interest and balance; it is never stored.
type Stage string

const (
	StageNew                   Stage = "NEW"
	StageHasNoInterest         Stage = "HAS_NO_INTEREST"
	StageHasInterestNoCredit   Stage = "HAS_INTEREST_NO_CREDIT"
	StageHasInterestWithCredit Stage = "HAS_INTEREST_WITH_CREDIT"
)

// UserProfile is the persisted per-channel conversational state.
type UserProfile struct {
	ChannelID   string
	Interest    string // canonical catalog category, empty when unset
	Balance     int
	PendingMenu MenuState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUserProfile validates the fields and returns a profile.
func NewUserProfile(channelID, interest string, balance int, pending MenuState) (UserProfile, error) {
	if channelID == "" {
		return UserProfile{}, fmt.Errorf("user profile: empty channel id")
	}
	if balance < 0 {
		return UserProfile{}, fmt.Errorf("user profile %s: negative balance %d", channelID, balance)
	}
	if pending == "" {
		pending = MenuNone
	}
	if !pending.Valid() {
		return UserProfile{}, fmt.Errorf("user profile %s: unknown menu state %q", channelID, pending)
	}
	return UserProfile{
		ChannelID:   channelID,
		Interest:    interest,
		Balance:     balance,
		PendingMenu: pending,
	}, nil
}

// StageOf derives the conversational stage. A nil profile is a first contact.
func StageOf(u *UserProfile) Stage {
	switch {
	case u == nil:
		return StageNew
	case u.Interest == "":
		return StageHasNoInterest
	case u.Balance <= 0:
		return StageHasInterestNoCredit
	default:
		return StageHasInterestWithCredit
	}
}

// UserFields is a partial update for UpsertUser; nil fields are left as is.
type UserFields struct {
	Interest    *string
	PendingMenu *MenuState
}

// CreditReason attributes a balance mutation to exactly one cause.
type CreditReason string

const (
	ReasonTopUp    CreditReason = "topup"
	ReasonPayment  CreditReason = "payment"
	ReasonDispatch CreditReason = "dispatch"
)

// CreditTransaction is one audited balance mutation.
type CreditTransaction struct {
	ID        string
	ChannelID string
	Delta     int
	Reason    CreditReason
	Reference string // job id or payment transaction id
	CreatedAt time.Time
}

// Payment is an external payment confirmation already converted to credits.
type Payment struct {
	TransactionID string
	ChannelID     string
	Credits       int
	AmountMinor   int64 // amount paid in cents
}

// AdvisoryKind tags a logged advisory interaction.
type AdvisoryKind string

const (
	AdvisoryAnswered AdvisoryKind = "answered"
	AdvisoryFallback AdvisoryKind = "fallback"
)

// Stats is the admin overview of the store.
type Stats struct {
	Users          int
	FundedUsers    int
	JobsSent       int
	Payments       int
	AdvisoryLogged int
}

// Repository exclusively owns persisted state. Every mutating call is atomic.
type Repository interface {
	// GetUser returns ErrNotFound for an unknown channel.
	GetUser(ctx context.Context, channelID string) (UserProfile, error)
	// UpsertUser creates the user when missing and applies the non-nil fields.
	UpsertUser(ctx context.Context, channelID string, fields UserFields) (UserProfile, error)
	// AdjustBalance applies delta, failing with ErrInsufficientBalance when the
	// result would be negative. Unknown users are created for positive deltas.
	AdjustBalance(ctx context.Context, channelID string, delta int, reason CreditReason, reference string) (UserProfile, error)
	// RecordSentIfAbsent returns true when the ledger row was newly inserted.
	RecordSentIfAbsent(ctx context.Context, channelID, jobID string) (bool, error)
	// ClaimJob records the ledger row and debits one credit in a single
	// transaction. claimed is false (no debit) when the row already existed.
	ClaimJob(ctx context.Context, channelID, jobID string) (profile UserProfile, claimed bool, err error)
	// CreditPayment applies a payment once per TransactionID.
	CreditPayment(ctx context.Context, p Payment) (profile UserProfile, applied bool, err error)
	// ListDeliverable returns users with an interest and a positive balance.
	ListDeliverable(ctx context.Context) ([]UserProfile, error)
	LogAdvisory(ctx context.Context, channelID, question, answer string, kind AdvisoryKind) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// AdvisoryQuestion is a free-text question with the asker's context.
type AdvisoryQuestion struct {
	Text     string
	Interest string
	Balance  int
}

// Advisor answers career questions. Failures are reported as ErrUnavailable.
type Advisor interface {
	Ask(ctx context.Context, q AdvisoryQuestion) (string, error)
}
