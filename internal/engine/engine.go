// Package engine interprets one inbound chat message against the sender's
// persisted profile. Engine.Handle is a pure function of (profile, text);
// Service wires it to the repository, the delivery protocol and the advisor.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/model"
)

// CreditMode selects the single top-up mechanism of a deployment.
type CreditMode string

const (
	// CreditsInstant lets a user self-credit 1..30 by sending a number.
	CreditsInstant CreditMode = "instant"
	// CreditsMpesa credits only on a confirmed M-Pesa payment.
	CreditsMpesa CreditMode = "mpesa"
)

// Intent is the classified purpose of a message.
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentSelectCategory Intent = "select_category"
	IntentTopUp          Intent = "top_up"
	IntentJobs           Intent = "jobs"
	IntentBalance        Intent = "balance"
	IntentAdvisory       Intent = "advisory"
	IntentUnknown        Intent = "unknown"
)

var (
	greetingWords = wordSet("hi", "hello", "help", "menu", "start", "/start", "/help")
	jobsWords     = wordSet("jobs", "job", "job alert", "job alerts", "work", "/jobs")
	balanceWords  = wordSet("balance", "credits", "account", "/balance")
)

// Mutation is the state change a decision asks the service to persist.
// Nil fields are left unchanged.
type Mutation struct {
	Interest    *string
	PendingMenu *model.MenuState
	Credit      int // top-up delta, always attributed to model.ReasonTopUp
}

// Empty reports whether the mutation changes nothing.
func (m Mutation) Empty() bool {
	return m.Interest == nil && m.PendingMenu == nil && m.Credit == 0
}

// Decision is the outcome of one message.
type Decision struct {
	Intent   Intent
	Reply    string
	Mutation Mutation
	// Deliver asks the service to run the job delivery protocol; Reply is
	// then replaced by the delivery summary.
	Deliver bool
	// Advise asks the service to forward Question to the advisor; Reply is
	// the fallback used when the advisor fails.
	Advise   bool
	Question string
	// Invalid is set for corrective replies to malformed input.
	Invalid *model.ValidationError
}

// Options configures an Engine.
type Options struct {
	Mode         CreditMode
	MinTopUp     int
	MaxTopUp     int
	Paybill      string
	KESPerCredit int
	// Advisory enables rule 6 (free text forwarded to the advisor).
	Advisory bool
}

// Engine holds configuration only; it keeps no state between calls.
type Engine struct {
	opts    Options
	replies Replies
}

// New returns an engine. Zero top-up bounds default to 1..30.
func New(opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = CreditsInstant
	}
	if opts.MinTopUp <= 0 {
		opts.MinTopUp = 1
	}
	if opts.MaxTopUp < opts.MinTopUp {
		opts.MaxTopUp = 30
	}
	if opts.KESPerCredit <= 0 {
		opts.KESPerCredit = 1
	}
	return &Engine{opts: opts, replies: Replies{opts: opts}}
}

// Replies returns the reply renderer bound to the engine's options.
func (e *Engine) Replies() Replies { return e.replies }

// Handle classifies text for user (nil on first contact) and returns the
// reply and mutation. Rules are evaluated in priority order; the first match wins.
func (e *Engine) Handle(user *model.UserProfile, text string) Decision {
	msg := normalize(text)
	profile := model.UserProfile{PendingMenu: model.MenuNone}
	if user != nil {
		profile = *user
	}

	// 1. Greeting or help.
	if greetingWords[msg] {
		return Decision{
			Intent:   IntentGreeting,
			Reply:    e.replies.Menu(user),
			Mutation: Mutation{PendingMenu: menuPtr(model.MenuAwaitingInterest)},
		}
	}

	// 2. Category selection, exact or through the synonym table.
	if category, ok := catalog.Normalize(msg); ok {
		pending := model.MenuNone
		if profile.Balance <= 0 {
			pending = model.MenuAwaitingCreditAmount
		}
		return Decision{
			Intent:   IntentSelectCategory,
			Reply:    e.replies.CategorySet(user, category),
			Mutation: Mutation{Interest: &category, PendingMenu: menuPtr(pending)},
		}
	}

	// 3. Bare integer top-up. Signed numbers are top-up attempts too and get
	// the range error.
	if isInteger(msg) {
		return e.topUp(user, profile, msg)
	}

	// 4. Job request.
	if jobsWords[msg] {
		switch {
		case profile.Interest == "":
			return Decision{Intent: IntentJobs, Reply: e.replies.InterestFirst()}
		case profile.Balance <= 0:
			return Decision{Intent: IntentJobs, Reply: e.replies.NoCredits()}
		}
		return Decision{Intent: IntentJobs, Deliver: true}
	}

	// 5. Balance.
	if balanceWords[msg] {
		return Decision{Intent: IntentBalance, Reply: e.replies.Balance(user)}
	}

	// 6. Free text for the advisor; the fallback is rule 7's reply.
	if e.opts.Advisory && msg != "" {
		return Decision{
			Intent:   IntentAdvisory,
			Reply:    e.replies.Unrecognized(),
			Advise:   true,
			Question: strings.TrimSpace(text),
		}
	}

	// 7. Unrecognized.
	return Decision{Intent: IntentUnknown, Reply: e.replies.Unrecognized()}
}

func (e *Engine) topUp(user *model.UserProfile, profile model.UserProfile, msg string) Decision {
	if e.opts.Mode == CreditsMpesa {
		return Decision{
			Intent:  IntentTopUp,
			Reply:   e.replies.PayInstructions(profile.ChannelID),
			Invalid: &model.ValidationError{Field: "amount", Message: "self top-up is disabled, pay via M-Pesa"},
		}
	}

	n, err := strconv.Atoi(msg)
	if err != nil || n < e.opts.MinTopUp || n > e.opts.MaxTopUp {
		return Decision{
			Intent: IntentTopUp,
			Reply:  e.replies.RangeError(),
			Invalid: &model.ValidationError{
				Field:   "amount",
				Message: fmt.Sprintf("must be between %d and %d", e.opts.MinTopUp, e.opts.MaxTopUp),
			},
		}
	}
	if user == nil || profile.Interest == "" {
		return Decision{
			Intent:  IntentTopUp,
			Reply:   e.replies.InterestFirst(),
			Invalid: &model.ValidationError{Field: "interest", Message: "set a job interest before adding credits"},
		}
	}

	after := profile
	after.Balance += n
	return Decision{
		Intent:   IntentTopUp,
		Reply:    e.replies.ToppedUp(n, after),
		Mutation: Mutation{Credit: n, PendingMenu: menuPtr(model.MenuNone)},
	}
}

// normalize trims, lower-cases and collapses inner whitespace.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// isInteger reports whether s is an optionally signed run of digits. Values
// too large for an int still count.
func isInteger(s string) bool {
	if len(s) > 1 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	return isDigits(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func menuPtr(s model.MenuState) *model.MenuState { return &s }
