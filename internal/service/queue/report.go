package queue

import (
	"context"
	"time"

	"runqueue/internal/domain"
)

// Report accepts an external completion notice for a RUNNING entry and moves
// it to SUCCEEDED or FAILED. The engine never polls the backend for this;
// the training job (or whoever watches it) reports in through this boundary,
// using the same load/conditional-write cycle as every other mutator.
func (s *Service) Report(ctx context.Context, name, entryID string, succeeded bool, message string) (*domain.JobEntry, error) {
	var reported *domain.JobEntry
	_, err := s.updateDocument(ctx, name, func(doc *domain.QueueDocument, now time.Time) error {
		entry := doc.Entry(entryID)
		if entry == nil {
			return domain.ErrNotFound("queue %s has no entry %s", name, entryID)
		}
		reported = entry
		if succeeded {
			return entry.MarkSucceeded(now)
		}
		if message == "" {
			message = "reported failed by job runner"
		}
		return entry.MarkFailed(message, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("completion reported", "queue", name, "entry", entryID, "succeeded", succeeded)
	return reported, nil
}
