package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by GetUser for an unknown channel.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance means a debit would drive the balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnavailable wraps any advisory or source failure (timeout, rate limit, error).
	ErrUnavailable = errors.New("adapter unavailable")
	// ErrStorageConflict marks a duplicate ledger or payment row.
	ErrStorageConflict = errors.New("storage conflict")
)

// ValidationError is malformed or out-of-range user input. Message is shown to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unavailable wraps err so errors.Is(err, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
