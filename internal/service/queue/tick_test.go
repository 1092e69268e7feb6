package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runqueue/internal/domain"
)

func TestTick_LaunchesOldestPendingFIFO(t *testing.T) {
	ctx := context.Background()
	st := seedQueue(t, 2)
	launcher := okLauncher()
	svc := newTestService(st, launcher, Limits{})

	// First tick claims and launches entry 0; entry 1 stays PENDING.
	res, err := svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, ReasonLaunched, res.Reason)
	require.NotNil(t, res.Entry)
	assert.Equal(t, entryID(0), res.Entry.ID)
	assert.Equal(t, domain.StatusRunning, res.Entry.Status)
	assert.NotEmpty(t, res.Entry.ExecutionRef)
	assert.Equal(t, 1, res.Entry.Attempts)

	doc := loadDoc(t, st)
	assert.Equal(t, domain.StatusRunning, doc.Entries[0].Status)
	assert.Equal(t, domain.StatusPending, doc.Entries[1].Status)

	// Second tick launches entry 1.
	res, err = svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, ReasonLaunched, res.Reason)
	assert.Equal(t, entryID(1), res.Entry.ID)

	// Nothing pending left.
	res, err = svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, ReasonEmpty, res.Reason)
	assert.Nil(t, res.Entry)

	assert.Len(t, launcher.Calls, 2, "exactly one launch request per entry")
}

func TestTick_PausedIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := seedQueue(t, 1)
	launcher := okLauncher()
	svc := newTestService(st, launcher, Limits{})
	require.NoError(t, svc.Pause(ctx, "bench"))

	for i := 0; i < 3; i++ {
		res, err := svc.Tick(ctx, "bench")
		require.NoError(t, err)
		assert.Equal(t, ReasonPaused, res.Reason)
	}

	doc := loadDoc(t, st)
	assert.Equal(t, domain.StatusPending, doc.Entries[0].Status)
	assert.Equal(t, 0, doc.Entries[0].Attempts)
	assert.Empty(t, launcher.Calls, "no launch side effect while paused")
}

func TestTick_NonRetryableFailure(t *testing.T) {
	ctx := context.Background()
	st := seedQueue(t, 1)
	svc := newTestService(st, failLauncher(false, "job definition not found"), Limits{MaxLaunchAttempts: 3})

	res, err := svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, ReasonLaunchFailed, res.Reason)
	require.NotNil(t, res.Entry)
	assert.Equal(t, domain.StatusFailed, res.Entry.Status)
	assert.Equal(t, 1, res.Entry.Attempts)
	assert.Contains(t, res.Entry.LastError, "job definition not found")
	assert.Empty(t, res.Entry.ExecutionRef)
}

func TestTick_RetryableFailureExhaustsAttemptBudget(t *testing.T) {
	ctx := context.Background()
	st := seedQueue(t, 1)
	launcher := failLauncher(true, "backend unavailable")
	svc := newTestService(st, launcher, Limits{MaxLaunchAttempts: 3})

	// Attempts 1 and 2: retryable failure puts the entry back to PENDING.
	for i := 1; i <= 2; i++ {
		res, err := svc.Tick(ctx, "bench")
		require.NoError(t, err)
		assert.Equal(t, ReasonLaunchFailed, res.Reason)
		assert.Equal(t, domain.StatusPending, res.Entry.Status)
		assert.Equal(t, i, res.Entry.Attempts)
		assert.Contains(t, res.Entry.LastError, "backend unavailable")
	}

	// Attempt 3 exhausts the budget: FAILED, exactly 3 launch calls.
	res, err := svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Entry.Status)
	assert.Equal(t, 3, res.Entry.Attempts)
	assert.Contains(t, res.Entry.LastError, "attempt budget")
	assert.Equal(t, 3, launcher.CallsFor(entryID(0)))

	// Terminal: further ticks see an empty pool.
	res, err = svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, ReasonEmpty, res.Reason)
	assert.Equal(t, 3, launcher.CallsFor(entryID(0)), "no launch after FAILED")
}

func TestTick_MissingQueueIsFatal(t *testing.T) {
	st := seedQueue(t, 0)
	svc := newTestService(st, okLauncher(), Limits{})

	_, err := svc.Tick(context.Background(), "absent")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestTick_ClaimConflictPicksNextFreshEntry(t *testing.T) {
	ctx := context.Background()
	inner := seedQueue(t, 2)

	// The competing tick claims entry 0 and wins; our claim write loses
	// and must reload, then select entry 1, never entry 0 again.
	st := &conflictingStore{
		QueueStore: inner,
		failSaves:  1,
		compete: func(doc *domain.QueueDocument) {
			_ = doc.Entries[0].MarkLaunching(t0)
		},
	}
	launcher := okLauncher()
	svc := newTestService(st, launcher, Limits{})

	res, err := svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, ReasonLaunched, res.Reason)
	assert.Equal(t, entryID(1), res.Entry.ID)

	doc := loadDoc(t, inner)
	assert.Equal(t, domain.StatusLaunching, doc.Entries[0].Status, "competitor's claim untouched")
	assert.Equal(t, domain.StatusRunning, doc.Entries[1].Status)
	assert.Equal(t, 0, launcher.CallsFor(entryID(0)), "lost claim never launches")
}

func TestTick_ConflictExhaustedLaunchesNothing(t *testing.T) {
	ctx := context.Background()
	st := &conflictingStore{
		QueueStore: seedQueue(t, 1),
		failSaves:  1 << 20, // every save loses
	}
	launcher := okLauncher()
	svc := newTestService(st, launcher, Limits{MaxConflictRetries: 3})

	res, err := svc.Tick(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, ReasonConflictExhausted, res.Reason)
	assert.Nil(t, res.Entry)
	assert.Empty(t, launcher.Calls, "no launch side effect occurred")
}

func TestTick_OutcomeWriteConflictAfterLaunchSurfaces(t *testing.T) {
	ctx := context.Background()
	inner := seedQueue(t, 1)

	// Let the claim write through, then fail every outcome write.
	claimDone := false
	st := &hookStore{QueueStore: inner, beforeSave: func() bool {
		if !claimDone {
			claimDone = true
			return false
		}
		return true
	}}
	svc := newTestService(st, okLauncher(), Limits{MaxConflictRetries: 2})

	_, err := svc.Tick(ctx, "bench")
	var unavailable *domain.StorageUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Message, "could not record the outcome")

	// The entry is wedged in LAUNCHING: detectable, not auto-healed.
	doc := loadDoc(t, inner)
	assert.Equal(t, domain.StatusLaunching, doc.Entries[0].Status)
}

func TestTick_CancelledDuringLaunchKeepsExecutionRef(t *testing.T) {
	ctx := context.Background()
	st := seedQueue(t, 1)

	var svc *Service
	launcher := &mockLauncher{
		LaunchFn: func(_ context.Context, entryID string, _ map[string]string) (string, error) {
			// An administrator cancels the entry while the backend
			// call is in flight.
			_, err := svc.Cancel(ctx, "bench", entryID)
			require.NoError(t, err)
			return "projects/p/jobs/42", nil
		},
	}
	svc = newTestService(st, launcher, Limits{})

	res, err := svc.Tick(ctx, "bench")
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, domain.StatusCancelled, res.Entry.Status, "cancel is never overridden")
	assert.Equal(t, "projects/p/jobs/42", res.Entry.ExecutionRef, "the real launch stays reconcilable")
}

// hookStore lets a test decide per Save call whether to inject a conflict.
type hookStore struct {
	domain.QueueStore

	mu         sync.Mutex
	beforeSave func() bool
}

func (h *hookStore) Save(ctx context.Context, name string, doc *domain.QueueDocument, expected domain.Generation) (domain.Generation, error) {
	h.mu.Lock()
	conflict := h.beforeSave()
	h.mu.Unlock()
	if conflict {
		return 0, domain.ErrConflict("queue %s: injected conflict", name)
	}
	return h.QueueStore.Save(ctx, name, doc, expected)
}

func TestTick_ConcurrentTicksNeverDoubleClaim(t *testing.T) {
	ctx := context.Background()
	const entries = 12
	const workers = 4

	st := seedQueue(t, entries)
	launcher := okLauncher()
	// Generous conflict budget: contention is the point of this test.
	svc := newTestService(st, launcher, Limits{MaxConflictRetries: 200})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				res, err := svc.Tick(ctx, "bench")
				if err != nil {
					t.Errorf("tick: %v", err)
					return
				}
				if res.Reason == ReasonEmpty {
					return
				}
			}
		}()
	}
	wg.Wait()

	doc := loadDoc(t, st)
	refs := make(map[string]bool)
	for i, e := range doc.Entries {
		assert.Equal(t, domain.StatusRunning, e.Status, "entry %d", i)
		assert.Equal(t, 1, e.Attempts, "entry %d claimed exactly once", i)
		assert.False(t, refs[e.ExecutionRef], "execution ref %s assigned twice", e.ExecutionRef)
		refs[e.ExecutionRef] = true
		assert.Equal(t, 1, launcher.CallsFor(e.ID), "entry %s launched exactly once", e.ID)
	}
	assert.Len(t, launcher.Calls, entries)
}
