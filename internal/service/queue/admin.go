package queue

import (
	"context"
	"time"

	"runqueue/internal/domain"
)

// QueueStatus is the read-only status summary of one queue.
type QueueStatus struct {
	Name       string         `json:"name"`
	Running    bool           `json:"running"`
	Generation int64          `json:"generation"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Stale      []StaleEntry   `json:"stale,omitempty"`
}

// StaleEntry flags a LAUNCHING entry whose last transition is suspiciously
// old, wedged by a crash between the claim write and the outcome write.
type StaleEntry struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ExecutionRef string    `json:"executionRef,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Status loads the queue and reports counts per state without mutating
// anything.
func (s *Service) Status(ctx context.Context, name string) (*QueueStatus, error) {
	doc, gen, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	status := &QueueStatus{
		Name:       doc.Name,
		Running:    doc.Running,
		Generation: gen,
		Total:      len(doc.Entries),
		Counts:     doc.CountByStatus(),
	}
	for _, e := range doc.StaleEntries(s.now(), s.limits.StaleAfter) {
		status.Stale = append(status.Stale, StaleEntry{
			ID:           e.ID,
			Status:       e.Status,
			ExecutionRef: e.ExecutionRef,
			UpdatedAt:    e.UpdatedAt,
		})
	}
	return status, nil
}

// Pause stops ticks from claiming entries until Resume. In-flight launches
// are unaffected; a paused queue only makes Tick a no-op.
func (s *Service) Pause(ctx context.Context, name string) error {
	return s.setRunning(ctx, name, false)
}

// Resume re-enables ticking.
func (s *Service) Resume(ctx context.Context, name string) error {
	return s.setRunning(ctx, name, true)
}

func (s *Service) setRunning(ctx context.Context, name string, running bool) error {
	_, err := s.updateDocument(ctx, name, func(doc *domain.QueueDocument, now time.Time) error {
		doc.Running = running
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("queue running flag updated", "queue", name, "running", running)
	return nil
}

// Cancel moves a non-terminal entry to CANCELLED.
func (s *Service) Cancel(ctx context.Context, name, entryID string) (*domain.JobEntry, error) {
	var cancelled *domain.JobEntry
	_, err := s.updateDocument(ctx, name, func(doc *domain.QueueDocument, now time.Time) error {
		entry := doc.Entry(entryID)
		if entry == nil {
			return domain.ErrNotFound("queue %s has no entry %s", name, entryID)
		}
		cancelled = entry
		return entry.MarkCancelled(now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entry cancelled", "queue", name, "entry", entryID)
	return cancelled, nil
}

// RequeueStale is the explicit recovery path for entries wedged in
// LAUNCHING past the staleness threshold: it returns them to PENDING so a
// later tick can try again. It is never run automatically; the wedged
// launch may actually be running, and the operator decides.
func (s *Service) RequeueStale(ctx context.Context, name string) ([]string, error) {
	var requeued []string
	_, err := s.updateDocument(ctx, name, func(doc *domain.QueueDocument, now time.Time) error {
		requeued = requeued[:0]
		for _, e := range doc.StaleEntries(now, s.limits.StaleAfter) {
			if err := e.ReturnToPending("requeued by operator after stale claim", now); err != nil {
				return err
			}
			requeued = append(requeued, e.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(requeued) > 0 {
		s.logger.Info("requeued stale entries", "queue", name, "entries", requeued)
	}
	return requeued, nil
}

// DrainResult reports what a drain loop did.
type DrainResult struct {
	Ticks      int    `json:"ticks"`
	Launched   int    `json:"launched"`
	LastReason string `json:"lastReason"`
}

// DrainToEmpty calls Tick repeatedly until the queue reports empty or
// maxTicks is reached (0 means the configured default). It stops immediately
// on paused or conflict-exhausted and surfaces that reason; launch failures
// do not stop the loop; their retries and the attempt budget are already
// accounted in the document.
func (s *Service) DrainToEmpty(ctx context.Context, name string, maxTicks int) (DrainResult, error) {
	if maxTicks <= 0 {
		maxTicks = s.limits.MaxDrainTicks
	}

	var res DrainResult
	for res.Ticks < maxTicks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tick, err := s.Tick(ctx, name)
		if err != nil {
			return res, err
		}
		res.Ticks++
		res.LastReason = tick.Reason

		switch tick.Reason {
		case ReasonLaunched:
			res.Launched++
		case ReasonEmpty, ReasonPaused, ReasonConflictExhausted:
			return res, nil
		}
	}
	return res, nil
}
