// Package payment credits balances from M-Pesa C2B confirmations and
// registers the callback URLs with Daraja.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/notifier"
)

// MaxAmountKES is the largest single C2B payment accepted.
const MaxAmountKES = 250000

// Confirmation is the C2B confirmation body Daraja posts to the callback URL.
type Confirmation struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID" validate:"required,alphanum,max=32"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount" validate:"required,numeric,max=12"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber" validate:"max=64"`
	OrgAccountBalance string `json:"OrgAccountBalance"`
	MSISDN            string `json:"MSISDN" validate:"required,min=9,max=15"`
	FirstName         string `json:"FirstName"`
}

// Ack is the body Daraja expects in response to validation and confirmation calls.
type Ack struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Accept acknowledges a callback.
func Accept(desc string) Ack { return Ack{ResultCode: "0", ResultDesc: desc} }

// Reject refuses a callback.
func Reject(desc string) Ack { return Ack{ResultCode: "1", ResultDesc: desc} }

// Result reports a processed confirmation.
type Result struct {
	ChannelID string
	Credits   int
	Applied   bool // false for a replayed transaction id
	Balance   int
}

// Service turns confirmations into credits. Each transaction id is
// credited at most once; replays are acknowledged without effect.
type Service struct {
	repo         model.Repository
	sender       model.Sender
	kesPerCredit int
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewService creates a payment service. kesPerCredit below 1 is treated as 1.
func NewService(repo model.Repository, sender model.Sender, kesPerCredit int, logger *slog.Logger) *Service {
	if kesPerCredit < 1 {
		kesPerCredit = 1
	}
	return &Service{
		repo:         repo,
		sender:       sender,
		kesPerCredit: kesPerCredit,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Confirm validates the confirmation, credits the payer once and notifies them.
// Malformed payloads return *model.ValidationError.
func (s *Service) Confirm(ctx context.Context, c Confirmation) (Result, error) {
	if err := s.validate.Struct(c); err != nil {
		return Result{}, validationError(err)
	}

	amount, err := strconv.ParseFloat(c.TransAmount, 64)
	if err != nil || amount <= 0 {
		return Result{}, &model.ValidationError{Field: "TransAmount", Message: fmt.Sprintf("invalid amount %q", c.TransAmount)}
	}
	if amount > MaxAmountKES {
		return Result{}, &model.ValidationError{
			Field:   "TransAmount",
			Message: fmt.Sprintf("amount %s exceeds KES %d", c.TransAmount, MaxAmountKES),
		}
	}
	cents := int64(math.Round(amount * 100))
	credits := int(cents / int64(s.kesPerCredit*100))
	if credits < 1 {
		return Result{}, &model.ValidationError{
			Field:   "TransAmount",
			Message: fmt.Sprintf("KES %s buys no credits (KES %d per credit)", c.TransAmount, s.kesPerCredit),
		}
	}

	channelID := notifier.NormalizePhone(c.MSISDN)
	profile, applied, err := s.repo.CreditPayment(ctx, model.Payment{
		TransactionID: c.TransID,
		ChannelID:     channelID,
		Credits:       credits,
		AmountMinor:   cents,
	})
	if err != nil {
		return Result{}, fmt.Errorf("crediting payment %s: %w", c.TransID, err)
	}

	res := Result{ChannelID: channelID, Credits: credits, Applied: applied, Balance: profile.Balance}
	if !applied {
		s.logger.Info("duplicate payment confirmation ignored", "trans_id", c.TransID, "channel", channelID)
		return res, nil
	}

	s.logger.Info("payment credited",
		"trans_id", c.TransID,
		"channel", channelID,
		"amount", c.TransAmount,
		"credits", credits,
		"balance", profile.Balance,
	)
	if err := s.sender.Send(ctx, channelID, confirmationMessage(credits, profile)); err != nil {
		s.logger.Warn("payment confirmation message failed", "channel", channelID, "error", err)
	}
	return res, nil
}

func confirmationMessage(credits int, profile model.UserProfile) string {
	next := "Send *jobs* to receive alerts!"
	if profile.Interest == "" {
		next = "Send *hi* to choose your job interest."
	}
	return fmt.Sprintf("✅ *Payment Confirmed!*\n\n💰 %d job alert credits added to your account.\n💳 Total Balance: *%d* credits\n\n%s",
		credits, profile.Balance, next)
}

// validationError reports the first failing field.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return &model.ValidationError{Field: ve[0].Field(), Message: "failed " + ve[0].Tag()}
	}
	return &model.ValidationError{Field: "payload", Message: err.Error()}
}
