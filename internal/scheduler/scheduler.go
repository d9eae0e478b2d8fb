// Package scheduler pushes job alerts to every funded user on a cron interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/delivery"
	"github.com/amishk599/ajirawise/internal/model"
)

// Summary reports one delivery cycle.
type Summary struct {
	Users   int  // users considered
	Sent    int  // job alerts sent
	Failed  int  // users whose delivery returned an error
	Skipped bool // another cycle was still running
}

// Scheduler owns the alert loop: a cron entry fires RunOnce on the interval,
// and each cycle walks the deliverable users sequentially.
type Scheduler struct {
	repo     model.Repository
	protocol *delivery.Protocol
	interval time.Duration
	pause    time.Duration
	logger   *slog.Logger

	mu sync.Mutex // held for the duration of a cycle
}

// NewScheduler creates a scheduler. protocol should already carry the
// per-user cap for scheduled alerts; pause is the delay between users.
func NewScheduler(repo model.Repository, protocol *delivery.Protocol, interval, pause time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		protocol: protocol,
		interval: interval,
		pause:    pause,
		logger:   logger,
	}
}

// Run registers the cron entry, runs one immediate cycle, then blocks until
// ctx is cancelled. It returns nil on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLogger(cronLogger{s.logger}))
	spec := "@every " + s.interval.String()
	if _, err := c.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduling %q: %w", spec, err)
	}

	s.logger.Info("starting scheduler",
		"spec", spec,
		"max_per_user", s.protocol.Cap(),
	)
	c.Start()

	// Run one immediate cycle so users do not wait for the first tick.
	s.RunOnce(ctx)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("shutting down scheduler")
	return nil
}

// RunOnce delivers to every user with an interest and a positive balance.
// Overlapping cycles are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	return s.cycle(ctx, "")
}

// Broadcast runs one cycle restricted to users interested in category.
func (s *Scheduler) Broadcast(ctx context.Context, category string) (Summary, error) {
	canonical, ok := catalog.Normalize(category)
	if !ok {
		return Summary{}, &model.ValidationError{Field: "interest", Message: fmt.Sprintf("%q is not a job category", category)}
	}
	return s.cycle(ctx, canonical)
}

func (s *Scheduler) cycle(ctx context.Context, interest string) (Summary, error) {
	if !s.mu.TryLock() {
		s.logger.Warn("previous alert cycle still running, skipping")
		return Summary{Skipped: true}, nil
	}
	defer s.mu.Unlock()

	start := time.Now()
	users, err := s.repo.ListDeliverable(ctx)
	if err != nil {
		s.logger.Error("listing deliverable users failed", "error", err)
		return Summary{}, fmt.Errorf("alert cycle: %w", err)
	}

	var sum Summary
	for _, u := range users {
		if interest != "" && u.Interest != interest {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if sum.Users > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return sum, nil
			case <-time.After(s.pause):
			}
		}

		sum.Users++
		res, err := s.protocol.Deliver(ctx, u, delivery.TriggerScheduled)
		sum.Sent += len(res.Sent)
		if err != nil {
			sum.Failed++
			s.logger.Error("scheduled delivery failed",
				"channel", u.ChannelID,
				"interest", u.Interest,
				"error", err,
			)
		}
	}

	s.logger.Info("alert cycle complete",
		"interest", interest,
		"users", sum.Users,
		"sent", sum.Sent,
		"failed", sum.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return sum, nil
}

// cronLogger adapts slog to cron.Logger. Routine cron chatter goes to DEBUG.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
