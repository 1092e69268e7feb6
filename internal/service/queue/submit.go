package queue

import (
	"context"
	"time"

	"runqueue/internal/domain"
)

// InitQueue creates a new, empty, running queue document. It is the only
// operation that writes without a prior load: the create precondition
// (object must not exist) plays the role of the generation match. Everything
// else treats a missing document as fatal.
func (s *Service) InitQueue(ctx context.Context, name string) (*domain.QueueDocument, error) {
	doc := domain.NewQueueDocument(name)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.Create(ctx, name, doc); err != nil {
		return nil, err
	}
	s.logger.Info("queue created", "queue", name)
	return doc, nil
}

// Submit appends one PENDING entry per param set, in order, under the same
// conditional-write discipline as every other mutator; concurrent
// submitters or ticks cannot be clobbered, only raced and retried.
func (s *Service) Submit(ctx context.Context, name string, paramSets []map[string]string) ([]*domain.JobEntry, error) {
	if len(paramSets) == 0 {
		return nil, domain.ErrValidation("at least one param set is required")
	}

	// IDs are assigned once, outside the retry loop, so a conflict retry
	// appends the same entries rather than new ones.
	ids := make([]string, len(paramSets))
	for i := range paramSets {
		ids[i] = domain.NewID()
	}

	var added []*domain.JobEntry
	_, err := s.updateDocument(ctx, name, func(doc *domain.QueueDocument, now time.Time) error {
		added = added[:0]
		for i, params := range paramSets {
			e, err := doc.Append(ids[i], params, now)
			if err != nil {
				return err
			}
			added = append(added, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entries submitted", "queue", name, "count", len(added))
	return added, nil
}
