package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amishk599/ajirawise/internal/delivery"
	"github.com/amishk599/ajirawise/internal/model"
)

// Service runs one inbound message end to end: load the profile, decide,
// persist the mutation, then deliver jobs or consult the advisor when the
// decision asks for it. Nothing is cached between calls.
type Service struct {
	engine   *Engine
	repo     model.Repository
	protocol *delivery.Protocol
	advisor  model.Advisor
	sender   model.Sender
	logger   *slog.Logger
}

// NewService wires the engine to its collaborators. advisor may be nil.
func NewService(
	engine *Engine,
	repo model.Repository,
	protocol *delivery.Protocol,
	advisor model.Advisor,
	sender model.Sender,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:   engine,
		repo:     repo,
		protocol: protocol,
		advisor:  advisor,
		sender:   sender,
		logger:   logger,
	}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine { return s.engine }

// HandleMessage returns the ordered replies for one inbound message. Job
// alerts are sent by the delivery protocol before the closing reply is
// returned. A non-nil error is a storage failure; the replies then hold a
// generic apology so the transport always has something to send.
func (s *Service) HandleMessage(ctx context.Context, channelID, text string) ([]string, error) {
	replies := s.engine.Replies()
	if channelID == "" {
		return nil, &model.ValidationError{Field: "channel_id", Message: "empty"}
	}

	var current *model.UserProfile
	user, err := s.repo.GetUser(ctx, channelID)
	switch {
	case err == nil:
		current = &user
	case errors.Is(err, model.ErrNotFound):
	default:
		return []string{replies.InternalError()}, fmt.Errorf("handling message from %s: %w", channelID, err)
	}

	d := s.engine.Handle(current, text)
	if d.Invalid != nil {
		s.logger.Debug("corrective reply", "channel", channelID, "intent", d.Intent, "reason", d.Invalid.Error())
	}

	profile, err := s.persist(ctx, channelID, current, d.Mutation)
	if err != nil {
		return []string{replies.InternalError()}, fmt.Errorf("handling message from %s: %w", channelID, err)
	}

	switch {
	case d.Deliver:
		res, err := s.protocol.Deliver(ctx, profile, delivery.TriggerChat)
		if err != nil {
			s.logger.Error("delivery failed", "channel", channelID, "sent", len(res.Sent), "error", err)
			if len(res.Sent) == 0 {
				return []string{replies.InternalError()}, nil
			}
		}
		return []string{replies.Delivered(res, profile.Interest)}, nil

	case d.Advise:
		return []string{s.advise(ctx, profile, d)}, nil

	case d.Mutation.Credit > 0:
		return []string{replies.ToppedUp(d.Mutation.Credit, profile)}, nil
	}

	s.logger.Debug("message handled", "channel", channelID, "intent", d.Intent)
	return []string{d.Reply}, nil
}

// Reply handles the message and sends every reply through the sender.
func (s *Service) Reply(ctx context.Context, channelID, text string) error {
	replies, err := s.HandleMessage(ctx, channelID, text)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		s.logger.Error("message handling failed", "channel", channelID, "error", err)
	}
	for _, r := range replies {
		if err := s.sender.Send(ctx, channelID, r); err != nil {
			return fmt.Errorf("replying to %s: %w", channelID, err)
		}
	}
	return nil
}

// persist applies the mutation and returns the resulting profile. A first
// contact with nothing to persist yields a transient default profile.
func (s *Service) persist(ctx context.Context, channelID string, current *model.UserProfile, m Mutation) (model.UserProfile, error) {
	profile := model.UserProfile{ChannelID: channelID, PendingMenu: model.MenuNone}
	if current != nil {
		profile = *current
	}
	if m.Empty() {
		return profile, nil
	}

	// The credit goes first: if it fails, the pending menu still asks for an
	// amount and the user can simply retry.
	var err error
	if m.Credit > 0 {
		profile, err = s.repo.AdjustBalance(ctx, channelID, m.Credit, model.ReasonTopUp, "chat")
		if err != nil {
			return model.UserProfile{}, fmt.Errorf("adding %d credits: %w", m.Credit, err)
		}
	}
	if m.Interest != nil || m.PendingMenu != nil {
		profile, err = s.repo.UpsertUser(ctx, channelID, model.UserFields{Interest: m.Interest, PendingMenu: m.PendingMenu})
		if err != nil {
			return model.UserProfile{}, fmt.Errorf("saving profile: %w", err)
		}
	}
	return profile, nil
}

// advise asks the advisor and falls back to d.Reply on any failure. Every
// interaction is logged; advisor failures never escape.
func (s *Service) advise(ctx context.Context, profile model.UserProfile, d Decision) string {
	if s.advisor == nil {
		return d.Reply
	}

	answer, err := s.advisor.Ask(ctx, model.AdvisoryQuestion{
		Text:     d.Question,
		Interest: profile.Interest,
		Balance:  profile.Balance,
	})
	kind := model.AdvisoryAnswered
	if err != nil {
		s.logger.Warn("advisor unavailable, using fallback", "channel", profile.ChannelID, "error", err)
		answer, kind = d.Reply, model.AdvisoryFallback
	}

	if err := s.repo.LogAdvisory(ctx, profile.ChannelID, d.Question, answer, kind); err != nil {
		s.logger.Warn("logging advisory interaction failed", "channel", profile.ChannelID, "error", err)
	}
	return answer
}
