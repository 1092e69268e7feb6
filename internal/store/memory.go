package store

import (
	"context"
	"sync"

	"runqueue/internal/domain"
)

// Compile-time check: MemoryStore implements the store port.
var _ domain.QueueStore = (*MemoryStore)(nil)

// MemoryStore is an in-process queue store with the same conditional-write
// contract as the GCS adapter: documents are held as serialized bytes and
// every write bumps a per-queue generation counter. It backs dev mode and
// the concurrency tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
	gens map[string]domain.Generation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		gens: make(map[string]domain.Generation),
	}
}

// Load decodes the stored bytes, so the byte-exact round-trip discipline of
// the real adapter holds here too.
func (s *MemoryStore) Load(ctx context.Context, name string) (*domain.QueueDocument, domain.Generation, error) {
	s.mu.Lock()
	data, ok := s.docs[name]
	gen := s.gens[name]
	s.mu.Unlock()

	if !ok {
		return nil, 0, domain.ErrNotFound("queue %s not found", name)
	}
	doc, err := domain.DecodeDocument(data)
	if err != nil {
		return nil, 0, err
	}
	return doc, gen, nil
}

// Save replaces the document when the generation still matches expected.
func (s *MemoryStore) Save(ctx context.Context, name string, doc *domain.QueueDocument, expected domain.Generation) (domain.Generation, error) {
	data, err := domain.EncodeDocument(doc)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[name]; !ok {
		return 0, domain.ErrNotFound("queue %s not found", name)
	}
	if s.gens[name] != expected {
		return 0, domain.ErrConflict("queue %s: generation %d no longer current", name, expected)
	}
	s.docs[name] = data
	s.gens[name]++
	return s.gens[name], nil
}

// Create writes a new document, failing when one already exists.
func (s *MemoryStore) Create(ctx context.Context, name string, doc *domain.QueueDocument) (domain.Generation, error) {
	data, err := domain.EncodeDocument(doc)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[name]; ok {
		return 0, domain.ErrConflict("queue %s already exists", name)
	}
	s.docs[name] = data
	s.gens[name] = 1
	return 1, nil
}
