// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"

	"runqueue/internal/domain"
)

// === Queue Store Mock ===

// MockQueueStore implements domain.QueueStore for testing.
type MockQueueStore struct {
	LoadFn   func(ctx context.Context, name string) (*domain.QueueDocument, domain.Generation, error)
	SaveFn   func(ctx context.Context, name string, doc *domain.QueueDocument, expected domain.Generation) (domain.Generation, error)
	CreateFn func(ctx context.Context, name string, doc *domain.QueueDocument) (domain.Generation, error)

	mu        sync.Mutex
	LoadCalls int
	SaveCalls int
}

// Load implements the interface method for testing.
func (m *MockQueueStore) Load(ctx context.Context, name string) (*domain.QueueDocument, domain.Generation, error) {
	m.mu.Lock()
	m.LoadCalls++
	m.mu.Unlock()
	if m.LoadFn != nil {
		return m.LoadFn(ctx, name)
	}
	panic("unexpected call to MockQueueStore.Load")
}

// Save implements the interface method for testing.
func (m *MockQueueStore) Save(ctx context.Context, name string, doc *domain.QueueDocument, expected domain.Generation) (domain.Generation, error) {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()
	if m.SaveFn != nil {
		return m.SaveFn(ctx, name, doc, expected)
	}
	panic("unexpected call to MockQueueStore.Save")
}

// Create implements the interface method for testing.
func (m *MockQueueStore) Create(ctx context.Context, name string, doc *domain.QueueDocument) (domain.Generation, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, name, doc)
	}
	panic("unexpected call to MockQueueStore.Create")
}

var _ domain.QueueStore = (*MockQueueStore)(nil)

// === Launcher Mock ===

// LaunchCall records one launch request made against the mock.
type LaunchCall struct {
	EntryID string
	Params  map[string]string
}

// MockLauncher implements domain.Launcher for testing and collects every
// call for assertions about launch counts and duplication.
type MockLauncher struct {
	LaunchFn func(ctx context.Context, entryID string, params map[string]string) (string, error)

	mu    sync.Mutex
	Calls []LaunchCall
}

// Launch implements the interface method for testing.
func (m *MockLauncher) Launch(ctx context.Context, entryID string, params map[string]string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, LaunchCall{EntryID: entryID, Params: params})
	m.mu.Unlock()
	if m.LaunchFn != nil {
		return m.LaunchFn(ctx, entryID, params)
	}
	panic("unexpected call to MockLauncher.Launch")
}

// CallsFor returns how many launch calls were made for the given entry.
func (m *MockLauncher) CallsFor(entryID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.EntryID == entryID {
			n++
		}
	}
	return n
}

var _ domain.Launcher = (*MockLauncher)(nil)
