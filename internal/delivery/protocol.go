// Package delivery implements the credit-gated job delivery protocol: pick
// new candidate postings for a user, claim each one in the ledger together
// with a one-credit debit, then hand it to the outbound channel.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/ajirawise/internal/model"
)

// DefaultCap bounds the jobs sent per invocation when none is configured.
const DefaultCap = 5

// Trigger tells the protocol who asked for the delivery. It only changes
// the message wording.
type Trigger int

const (
	TriggerChat Trigger = iota
	TriggerScheduled
)

// Outcome summarizes a delivery for the reply text.
type Outcome int

const (
	// OutcomeDelivered means at least one job was sent.
	OutcomeDelivered Outcome = iota
	// OutcomeNoInterest means the user has no category set.
	OutcomeNoInterest
	// OutcomeNoCredit means the balance was zero before or during the run.
	OutcomeNoCredit
	// OutcomeSourceEmpty means the job source returned no candidates.
	OutcomeSourceEmpty
	// OutcomeAllSent means every candidate was already in the user's ledger.
	OutcomeAllSent
)

// Result reports one delivery run.
type Result struct {
	Outcome    Outcome
	Sent       []model.JobPosting
	Candidates int
	Balance    int // balance after the run
}

// Protocol owns the delivery pipeline for one user at a time:
// fetch → walk in order → claim (ledger insert + debit) → send.
type Protocol struct {
	source       model.JobSource
	repo         model.Repository
	sender       model.Sender
	perRun       int
	fetchTimeout time.Duration
	logger       *slog.Logger

	writer        AlertWriter
	writerTimeout time.Duration
}

// NewProtocol creates a protocol sending at most perRun jobs per invocation.
// fetchTimeout bounds the job source call; zero means no extra bound.
func NewProtocol(
	source model.JobSource,
	repo model.Repository,
	sender model.Sender,
	perRun int,
	fetchTimeout time.Duration,
	logger *slog.Logger,
) *Protocol {
	if perRun <= 0 {
		perRun = DefaultCap
	}
	return &Protocol{
		source:       source,
		repo:         repo,
		sender:       sender,
		perRun:       perRun,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// WithCap returns a copy of the protocol with a different per-invocation cap.
func (p *Protocol) WithCap(perRun int) *Protocol {
	cp := *p
	if perRun > 0 {
		cp.perRun = perRun
	}
	return &cp
}

// WithSender returns a copy of the protocol sending through s.
func (p *Protocol) WithSender(s model.Sender) *Protocol {
	cp := *p
	cp.sender = s
	return &cp
}

// Cap returns the per-invocation bound.
func (p *Protocol) Cap() int { return p.perRun }

// Deliver sends up to min(cap, balance) postings the user has never received.
// The balance decreases by exactly the number of jobs claimed; when no new
// job is found nothing is mutated.
//
// A job is claimed before it is sent. If the send fails the claim stands and
// Deliver returns the partial result with the error.
func (p *Protocol) Deliver(ctx context.Context, user model.UserProfile, trigger Trigger) (Result, error) {
	res := Result{Balance: user.Balance}
	if user.Interest == "" {
		res.Outcome = OutcomeNoInterest
		return res, nil
	}
	if user.Balance <= 0 {
		res.Outcome = OutcomeNoCredit
		return res, nil
	}

	limit := min(p.perRun, user.Balance)
	candidates := p.fetch(ctx, user.Interest)
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		res.Outcome = OutcomeSourceEmpty
		p.logDone(user, res)
		return res, nil
	}

	for _, job := range candidates {
		if len(res.Sent) >= limit || res.Balance <= 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if job.ID == "" {
			job = job.WithFingerprint()
		}

		profile, claimed, err := p.repo.ClaimJob(ctx, user.ChannelID, job.ID)
		switch {
		case errors.Is(err, model.ErrInsufficientBalance):
			p.logger.Error("credit claim rejected, balance exhausted",
				"channel", user.ChannelID,
				"job_id", job.ID,
				"sent", len(res.Sent),
			)
			res.Balance = 0
			res.Outcome = outcomeOf(res, OutcomeNoCredit)
			return res, nil
		case err != nil:
			res.Outcome = outcomeOf(res, OutcomeAllSent)
			return res, fmt.Errorf("delivering to %s: claiming %s: %w", user.ChannelID, job.ID, err)
		case !claimed:
			p.logger.Debug("job already sent, skipping", "channel", user.ChannelID, "job_id", job.ID)
			continue
		}

		res.Balance = profile.Balance
		res.Sent = append(res.Sent, job)

		text := p.render(ctx, job, user.Interest, profile.Balance, trigger)
		if err := p.sender.Send(ctx, user.ChannelID, text); err != nil {
			res.Outcome = OutcomeDelivered
			return res, fmt.Errorf("delivering to %s: sending %s: %w", user.ChannelID, job.ID, err)
		}
	}

	res.Outcome = outcomeOf(res, OutcomeAllSent)
	p.logDone(user, res)
	return res, nil
}

func (p *Protocol) fetch(ctx context.Context, category string) []model.JobPosting {
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}
	return p.source.FetchCandidates(ctx, category)
}

func (p *Protocol) logDone(user model.UserProfile, res Result) {
	p.logger.Info("delivery complete",
		"channel", user.ChannelID,
		"interest", user.Interest,
		"candidates", res.Candidates,
		"sent", len(res.Sent),
		"balance", res.Balance,
	)
}

// outcomeOf reports OutcomeDelivered when anything was sent, otherwise fallback.
func outcomeOf(res Result, fallback Outcome) Outcome {
	if len(res.Sent) > 0 {
		return OutcomeDelivered
	}
	return fallback
}
