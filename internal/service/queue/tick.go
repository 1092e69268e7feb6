package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"runqueue/internal/domain"
)

// Tick outcome reasons.
const (
	ReasonLaunched          = "launched"
	ReasonLaunchFailed      = "launch-failed"
	ReasonPaused            = "paused"
	ReasonEmpty             = "empty"
	ReasonConflictExhausted = "conflict-exhausted"
)

// TickResult reports what one tick did. Entry is the claimed entry after its
// outcome was persisted (RUNNING on success, PENDING or FAILED on launch
// failure), or nil when nothing was claimed.
type TickResult struct {
	Reason string           `json:"reason"`
	Entry  *domain.JobEntry `json:"entry,omitempty"`
}

// Tick advances the queue by at most one entry: it claims the oldest
// PENDING entry with a durable LAUNCHING write, launches it, and persists
// the outcome with a second conditional-write cycle. A lost claim race is
// retried against freshly loaded state, bounded by MaxConflictRetries; when
// the bound is hit nothing was launched and the caller gets
// conflict-exhausted.
func (s *Service) Tick(ctx context.Context, name string) (TickResult, error) {
	logger := s.logger.With("queue", name)

	for attempt := 0; attempt <= s.limits.MaxConflictRetries; attempt++ {
		doc, gen, err := s.store.Load(ctx, name)
		if err != nil {
			return TickResult{}, err
		}
		if !doc.Running {
			return TickResult{Reason: ReasonPaused}, nil
		}
		entry := doc.NextPending()
		if entry == nil {
			return TickResult{Reason: ReasonEmpty}, nil
		}
		if err := entry.MarkLaunching(s.now()); err != nil {
			return TickResult{}, err
		}

		// The claim write. Once it succeeds the entry is durably
		// LAUNCHING and no concurrent tick can pick it: they all reload
		// before selecting.
		if _, err := s.store.Save(ctx, name, doc, gen); err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				logger.Debug("claim lost to concurrent tick, reloading", "entry", entry.ID, "attempt", attempt+1)
				continue
			}
			return TickResult{}, err
		}

		return s.launchClaimed(ctx, name, entry.ID, entry.Params)
	}

	logger.Info("tick gave up after repeated write conflicts")
	return TickResult{Reason: ReasonConflictExhausted}, nil
}

// launchClaimed performs the launch call for an entry this tick just claimed
// and persists the resulting transition. The outcome write uses a fresh
// load/conditional-write cycle: the launch call may have taken arbitrary
// time, and only the surrounding document state can race; no other tick
// competes for this entry while it is LAUNCHING.
func (s *Service) launchClaimed(ctx context.Context, name, entryID string, params map[string]string) (TickResult, error) {
	logger := s.logger.With("queue", name, "entry", entryID)

	lctx, cancel := context.WithTimeout(ctx, s.limits.LaunchTimeout)
	executionRef, launchErr := s.launcher.Launch(lctx, entryID, params)
	cancel()

	entry, err := s.recordOutcome(ctx, name, entryID, executionRef, launchErr)
	if err != nil {
		return TickResult{}, err
	}

	switch entry.Status {
	case domain.StatusRunning:
		logger.Info("entry launched", "execution_ref", entry.ExecutionRef, "attempts", entry.Attempts)
		return TickResult{Reason: ReasonLaunched, Entry: entry}, nil
	case domain.StatusPending:
		logger.Warn("launch failed, entry returned to pending", "attempts", entry.Attempts, "error", entry.LastError)
	case domain.StatusFailed:
		logger.Error("launch failed terminally", "attempts", entry.Attempts, "error", entry.LastError)
	default:
		logger.Warn("entry left launch in unexpected state", "status", entry.Status)
	}
	return TickResult{Reason: ReasonLaunchFailed, Entry: entry}, nil
}

// recordOutcome persists the post-launch transition for a claimed entry,
// retrying write conflicts against fresh loads with the same bound as the
// claim. Losing the outcome of a launch that actually went out would wedge
// the entry, so exhaustion here is surfaced loudly with the execution ref.
func (s *Service) recordOutcome(ctx context.Context, name, entryID, executionRef string, launchErr error) (*domain.JobEntry, error) {
	var result *domain.JobEntry

	_, err := s.updateDocument(ctx, name, func(doc *domain.QueueDocument, now time.Time) error {
		entry := doc.Entry(entryID)
		if entry == nil {
			return domain.ErrValidation("queue %s: claimed entry %s vanished from document", name, entryID)
		}
		result = entry

		// An administrator may have cancelled the entry while the
		// launch call was in flight. Never resurrect it, but keep a
		// successful launch's execution ref durable for reconciliation.
		if entry.Status != domain.StatusLaunching {
			if launchErr == nil && executionRef != "" {
				entry.ExecutionRef = executionRef
				entry.UpdatedAt = now
				s.logger.Warn("entry left LAUNCHING during launch call, recording execution ref only",
					"queue", name, "entry", entryID, "status", entry.Status, "execution_ref", executionRef)
			}
			return nil
		}

		if launchErr == nil {
			return entry.MarkRunning(executionRef, now)
		}

		var lerr *domain.LaunchError
		retryable := true
		message := launchErr.Error()
		if errors.As(launchErr, &lerr) {
			retryable = lerr.Retryable
		}
		switch {
		case !retryable:
			return entry.MarkFailed(message, now)
		case entry.Attempts >= s.limits.MaxLaunchAttempts:
			return entry.MarkFailed(fmt.Sprintf("%s (attempt budget of %d exhausted)", message, s.limits.MaxLaunchAttempts), now)
		default:
			return entry.ReturnToPending(message, now)
		}
	})
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) && launchErr == nil {
			// The launch side effect exists but its outcome could not
			// be written. The entry stays LAUNCHING and will show up
			// as stale; give the operator the ref to reconcile with.
			return nil, domain.ErrStorageUnavailable(err,
				"queue %s: launched entry %s as %s but could not record the outcome", name, entryID, executionRef)
		}
		return nil, err
	}
	return result, nil
}
