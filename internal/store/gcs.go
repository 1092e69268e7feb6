// Package store provides queue document stores implementing the
// domain.QueueStore port. The GCS store is the production adapter; every
// write replaces the whole object body under a generation precondition.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"runqueue/internal/domain"
)

// Compile-time check: GCSStore implements the store port.
var _ domain.QueueStore = (*GCSStore)(nil)

// GCSStore keeps each queue document as a single JSON object in a bucket and
// uses object generations as the optimistic-concurrency token. It performs
// no retries; conflict retry policy belongs to the tick engine.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a store rooted at gs://bucket/prefix. Credentials come
// from the environment (application default credentials) unless overridden
// via opts.
func NewGCSStore(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// ObjectPath returns the object key holding the named queue's document.
func (s *GCSStore) ObjectPath(name string) string {
	return path.Join(s.prefix, name+".json")
}

// Load reads the document bytes and the object generation they were read at.
func (s *GCSStore) Load(ctx context.Context, name string) (*domain.QueueDocument, domain.Generation, error) {
	obj := s.client.Bucket(s.bucket).Object(s.ObjectPath(name))
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, 0, domain.ErrNotFound("queue %s not found at gs://%s/%s", name, s.bucket, s.ObjectPath(name))
		}
		return nil, 0, domain.ErrStorageUnavailable(err, "read queue %s: %v", name, err)
	}
	defer r.Close() //nolint:errcheck

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, domain.ErrStorageUnavailable(err, "read queue %s body: %v", name, err)
	}

	doc, err := domain.DecodeDocument(data)
	if err != nil {
		return nil, 0, err
	}
	return doc, r.Attrs.Generation, nil
}

// Save replaces the object body, requiring the stored generation to still
// match expected.
func (s *GCSStore) Save(ctx context.Context, name string, doc *domain.QueueDocument, expected domain.Generation) (domain.Generation, error) {
	return s.write(ctx, name, doc, storage.Conditions{GenerationMatch: expected})
}

// Create writes a new object, failing when one already exists.
func (s *GCSStore) Create(ctx context.Context, name string, doc *domain.QueueDocument) (domain.Generation, error) {
	return s.write(ctx, name, doc, storage.Conditions{DoesNotExist: true})
}

func (s *GCSStore) write(ctx context.Context, name string, doc *domain.QueueDocument, cond storage.Conditions) (domain.Generation, error) {
	data, err := domain.EncodeDocument(doc)
	if err != nil {
		return 0, err
	}

	w := s.client.Bucket(s.bucket).Object(s.ObjectPath(name)).If(cond).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return 0, classifyWriteError(err, name)
	}
	if err := w.Close(); err != nil {
		return 0, classifyWriteError(err, name)
	}
	return w.Attrs().Generation, nil
}

// classifyWriteError distinguishes a lost precondition race from a generic
// storage failure. GCS reports a failed generation precondition as HTTP 412.
func classifyWriteError(err error, name string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return domain.ErrConflict("queue %s: concurrent write won the generation precondition", name)
	}
	return domain.ErrStorageUnavailable(err, "write queue %s: %v", name, err)
}
