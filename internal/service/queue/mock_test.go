package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"runqueue/internal/domain"
	"runqueue/internal/store"
	"runqueue/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Type aliases for convenience; keeps test code short.
type mockStore = testutil.MockQueueStore
type mockLauncher = testutil.MockLauncher

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestService(st domain.QueueStore, l domain.Launcher, limits Limits) *Service {
	return NewService(st, l, limits, discardLogger())
}

// okLauncher always succeeds, returning a ref derived from the entry ID.
func okLauncher() *mockLauncher {
	return &mockLauncher{
		LaunchFn: func(_ context.Context, entryID string, _ map[string]string) (string, error) {
			return "projects/p/locations/r/customJobs/" + entryID, nil
		},
	}
}

// failLauncher always fails with the given classification.
func failLauncher(retryable bool, message string) *mockLauncher {
	return &mockLauncher{
		LaunchFn: func(context.Context, string, map[string]string) (string, error) {
			return "", domain.ErrLaunch(retryable, "%s", message)
		},
	}
}

func entryID(i int) string {
	return fmt.Sprintf("pend-%02d", i)
}

// seedQueue creates a running queue with entries pend-00..pend-(n-1) in a
// fresh memory store.
func seedQueue(t *testing.T, n int) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	doc := domain.NewQueueDocument("bench")
	for i := 0; i < n; i++ {
		_, err := doc.Append(entryID(i), map[string]string{"run": entryID(i)}, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	_, err := st.Create(context.Background(), "bench", doc)
	require.NoError(t, err)
	return st
}

// loadDoc reads the current document state for assertions.
func loadDoc(t *testing.T, st domain.QueueStore) *domain.QueueDocument {
	t.Helper()
	doc, _, err := st.Load(context.Background(), "bench")
	require.NoError(t, err)
	return doc
}

// conflictingStore wraps an inner store and fails the first failSaves Save
// calls with a conflict, optionally applying a competing writer's mutation
// to the stored document first, simulating another tick winning the race.
type conflictingStore struct {
	domain.QueueStore

	mu        sync.Mutex
	failSaves int
	compete   func(doc *domain.QueueDocument)
}

func (c *conflictingStore) Save(ctx context.Context, name string, doc *domain.QueueDocument, expected domain.Generation) (domain.Generation, error) {
	c.mu.Lock()
	inject := c.failSaves > 0
	if inject {
		c.failSaves--
	}
	compete := c.compete
	c.mu.Unlock()

	if !inject {
		return c.QueueStore.Save(ctx, name, doc, expected)
	}
	if compete != nil {
		current, gen, err := c.QueueStore.Load(ctx, name)
		if err != nil {
			return 0, err
		}
		compete(current)
		if _, err := c.QueueStore.Save(ctx, name, current, gen); err != nil {
			return 0, err
		}
	}
	return 0, domain.ErrConflict("queue %s: injected conflict", name)
}
