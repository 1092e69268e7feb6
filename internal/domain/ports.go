package domain

import "context"

// Generation is the opaque optimistic-concurrency token the blob store
// returns on read and requires unchanged on write. For GCS this is the
// object generation number.
type Generation = int64

// QueueStore is the port for the blob-backed queue document. It performs no
// retries of its own; conflict retry policy belongs to the tick engine.
type QueueStore interface {
	// Load reads the current document and its generation token.
	// Fails with *NotFoundError when no document exists.
	Load(ctx context.Context, name string) (*QueueDocument, Generation, error)

	// Save conditionally replaces the whole document body. Fails with
	// *ConflictError when the stored generation no longer matches
	// expected, and *StorageUnavailableError on transport errors.
	Save(ctx context.Context, name string, doc *QueueDocument, expected Generation) (Generation, error)

	// Create writes a new document, failing with *ConflictError when one
	// already exists.
	Create(ctx context.Context, name string, doc *QueueDocument) (Generation, error)
}

// Launcher is the port for the external batch execution backend. Exactly one
// job start request is issued per call; the launcher never retries. Failures
// are reported as *LaunchError with a retryable classification.
type Launcher interface {
	Launch(ctx context.Context, entryID string, params map[string]string) (string, error)
}
