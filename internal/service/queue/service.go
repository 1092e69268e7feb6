// Package queue implements the tick engine and queue administration on top
// of the blob-backed queue document. All callers (HTTP handlers, the cron
// scheduler, the CLI loop) go through this service; safety comes entirely
// from the store's conditional writes, so any number of processes may run
// it concurrently.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"runqueue/internal/domain"
)

// Limits bounds the engine's retry and drain behaviour.
type Limits struct {
	// MaxLaunchAttempts is the launch attempt budget per entry. A
	// retryable failure on the final attempt moves the entry to FAILED.
	MaxLaunchAttempts int
	// MaxConflictRetries bounds reload-and-retry cycles on write conflicts
	// within a single operation.
	MaxConflictRetries int
	// MaxDrainTicks is the default tick bound for DrainToEmpty.
	MaxDrainTicks int
	// StaleAfter is how old a LAUNCHING entry's last transition must be
	// before Status reports it as stale.
	StaleAfter time.Duration
	// LaunchTimeout bounds one launch call against the backend.
	LaunchTimeout time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.MaxLaunchAttempts <= 0 {
		l.MaxLaunchAttempts = 3
	}
	if l.MaxConflictRetries <= 0 {
		l.MaxConflictRetries = 5
	}
	if l.MaxDrainTicks <= 0 {
		l.MaxDrainTicks = 100
	}
	if l.StaleAfter <= 0 {
		l.StaleAfter = 30 * time.Minute
	}
	if l.LaunchTimeout <= 0 {
		l.LaunchTimeout = 5 * time.Minute
	}
	return l
}

// Service advances queues. It holds no document state across calls: every
// operation is a fresh load / conditional-write cycle against the store.
type Service struct {
	store    domain.QueueStore
	launcher domain.Launcher
	limits   Limits
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a queue service.
func NewService(store domain.QueueStore, launcher domain.Launcher, limits Limits, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		launcher: launcher,
		limits:   limits.withDefaults(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// updateDocument runs one bounded load/mutate/conditional-write cycle. The
// mutate callback sees a freshly loaded document on every retry, so a lost
// race never reapplies a decision made against stale state.
func (s *Service) updateDocument(ctx context.Context, name string, mutate func(doc *domain.QueueDocument, now time.Time) error) (*domain.QueueDocument, error) {
	for attempt := 0; attempt <= s.limits.MaxConflictRetries; attempt++ {
		doc, gen, err := s.store.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		if err := mutate(doc, s.now()); err != nil {
			return nil, err
		}
		if _, err := s.store.Save(ctx, name, doc, gen); err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				s.logger.Debug("write conflict, reloading", "queue", name, "attempt", attempt+1)
				continue
			}
			return nil, err
		}
		return doc, nil
	}
	return nil, domain.ErrConflict("queue %s: conflict retries exhausted", name)
}
