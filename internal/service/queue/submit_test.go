package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runqueue/internal/domain"
	"runqueue/internal/store"
)

func TestInitQueue(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(st, okLauncher(), Limits{})

	doc, err := svc.InitQueue(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, "bench", doc.Name)
	assert.True(t, doc.Running)
	assert.Empty(t, doc.Entries)

	got, gen, err := st.Load(ctx, "bench")
	require.NoError(t, err)
	assert.Equal(t, domain.Generation(1), gen)
	assert.Equal(t, domain.CurrentSchemaVersion, got.SchemaVersion)

	// A second init must not clobber the existing document.
	_, err = svc.InitQueue(ctx, "bench")
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestSubmit_AppendsInOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(st, okLauncher(), Limits{})
	_, err := svc.InitQueue(ctx, "bench")
	require.NoError(t, err)

	added, err := svc.Submit(ctx, "bench", []map[string]string{
		{"lr": "0.01"},
		{"lr": "0.001"},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.NotEqual(t, added[0].ID, added[1].ID)

	doc := loadDoc(t, st)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, added[0].ID, doc.Entries[0].ID)
	assert.Equal(t, "0.01", doc.Entries[0].Params["lr"])
	assert.Equal(t, "0.001", doc.Entries[1].Params["lr"])
	for _, e := range doc.Entries {
		assert.Equal(t, domain.StatusPending, e.Status)
		assert.Equal(t, 0, e.Attempts)
	}
}

func TestSubmit_EmptyBatchRejected(t *testing.T) {
	st := seedQueue(t, 0)
	svc := newTestService(st, okLauncher(), Limits{})

	_, err := svc.Submit(context.Background(), "bench", nil)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestSubmit_MissingQueueIsFatal(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, okLauncher(), Limits{})

	_, err := svc.Submit(context.Background(), "absent", []map[string]string{{"lr": "0.01"}})
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSubmit_ConflictRetryKeepsSameIDs(t *testing.T) {
	ctx := context.Background()
	inner := seedQueue(t, 1)

	// A tick wins the race on the first save; the retried submit must append
	// the same entries, not a fresh batch.
	st := &conflictingStore{
		QueueStore: inner,
		failSaves:  1,
		compete: func(doc *domain.QueueDocument) {
			_ = doc.Entries[0].MarkLaunching(t0)
		},
	}
	svc := newTestService(st, okLauncher(), Limits{})

	added, err := svc.Submit(ctx, "bench", []map[string]string{{"lr": "0.01"}})
	require.NoError(t, err)
	require.Len(t, added, 1)

	doc := loadDoc(t, inner)
	require.Len(t, doc.Entries, 2, "exactly one entry appended despite the retry")
	assert.Equal(t, added[0].ID, doc.Entries[1].ID)
	assert.Equal(t, domain.StatusLaunching, doc.Entries[0].Status, "competitor's claim survives")
}
