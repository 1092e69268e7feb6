package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry status constants.
const (
	StatusPending   = "PENDING"
	StatusLaunching = "LAUNCHING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// CurrentSchemaVersion is the document shape this build reads and writes.
// Version 0 documents (written before the field existed) are migrated on load.
const CurrentSchemaVersion = 1

// validStatuses enumerates every legal entry status.
var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusLaunching: true,
	StatusRunning:   true,
	StatusSucceeded: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// TerminalStatus reports whether status is terminal: such entries never
// transition again.
func TerminalStatus(status string) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCancelled
}

// JobEntry is one unit of work: a single training run to be launched.
type JobEntry struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Params       map[string]string `json:"params"`
	ExecutionRef string            `json:"executionRef,omitempty"`
	Attempts     int               `json:"attempts"`
	LastError    string            `json:"lastError,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Terminal reports whether the entry is in a terminal state.
func (e *JobEntry) Terminal() bool { return TerminalStatus(e.Status) }

// MarkLaunching claims a PENDING entry for a launch attempt.
// Increments the attempt counter.
func (e *JobEntry) MarkLaunching(now time.Time) error {
	if e.Status != StatusPending {
		return ErrValidation("entry %s: cannot claim from %s", e.ID, e.Status)
	}
	e.Status = StatusLaunching
	e.Attempts++
	e.UpdatedAt = now
	return nil
}

// MarkRunning records a successful launch and its execution reference.
func (e *JobEntry) MarkRunning(executionRef string, now time.Time) error {
	if e.Status != StatusLaunching {
		return ErrValidation("entry %s: cannot record launch from %s", e.ID, e.Status)
	}
	if executionRef == "" {
		return ErrValidation("entry %s: empty execution reference", e.ID)
	}
	e.Status = StatusRunning
	e.ExecutionRef = executionRef
	e.LastError = ""
	e.UpdatedAt = now
	return nil
}

// ReturnToPending puts a LAUNCHING entry back into the pool after a
// retryable launch failure. The entry keeps its original position, so FIFO
// order by insertion is preserved.
func (e *JobEntry) ReturnToPending(message string, now time.Time) error {
	if e.Status != StatusLaunching {
		return ErrValidation("entry %s: cannot return to pending from %s", e.ID, e.Status)
	}
	e.Status = StatusPending
	e.LastError = message
	e.UpdatedAt = now
	return nil
}

// MarkFailed moves a LAUNCHING or RUNNING entry to FAILED.
func (e *JobEntry) MarkFailed(message string, now time.Time) error {
	if e.Status != StatusLaunching && e.Status != StatusRunning {
		return ErrValidation("entry %s: cannot fail from %s", e.ID, e.Status)
	}
	e.Status = StatusFailed
	e.LastError = message
	e.UpdatedAt = now
	return nil
}

// MarkSucceeded moves a RUNNING entry to SUCCEEDED on external completion
// notice.
func (e *JobEntry) MarkSucceeded(now time.Time) error {
	if e.Status != StatusRunning {
		return ErrValidation("entry %s: cannot succeed from %s", e.ID, e.Status)
	}
	e.Status = StatusSucceeded
	e.LastError = ""
	e.UpdatedAt = now
	return nil
}

// MarkCancelled moves any non-terminal entry to CANCELLED.
func (e *JobEntry) MarkCancelled(now time.Time) error {
	if e.Terminal() {
		return ErrValidation("entry %s: cannot cancel terminal state %s", e.ID, e.Status)
	}
	e.Status = StatusCancelled
	e.UpdatedAt = now
	return nil
}

// QueueDocument is the full state of one named queue. It is the single
// shared resource: every mutation is a whole-document conditional write.
// The storage generation is carried alongside the document by the store
// adapter, never serialized into the body.
type QueueDocument struct {
	Name          string      `json:"name"`
	SchemaVersion int         `json:"schemaVersion"`
	Running       bool        `json:"running"`
	Entries       []*JobEntry `json:"entries"`
}

// NewQueueDocument creates an empty, running queue document.
func NewQueueDocument(name string) *QueueDocument {
	return &QueueDocument{
		Name:          name,
		SchemaVersion: CurrentSchemaVersion,
		Running:       true,
	}
}

// Entry returns the entry with the given ID, or nil.
func (d *QueueDocument) Entry(id string) *JobEntry {
	for _, e := range d.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// NextPending returns the oldest PENDING entry by insertion order, or nil.
// Entries are never reordered, so a scan in slice order is FIFO.
func (d *QueueDocument) NextPending() *JobEntry {
	for _, e := range d.Entries {
		if e.Status == StatusPending {
			return e
		}
	}
	return nil
}

// Append adds a new PENDING entry with the given ID and params to the back
// of the queue.
func (d *QueueDocument) Append(id string, params map[string]string, now time.Time) (*JobEntry, error) {
	if id == "" {
		return nil, ErrValidation("entry id is required")
	}
	if d.Entry(id) != nil {
		return nil, ErrValidation("entry %s already exists in queue %s", id, d.Name)
	}
	e := &JobEntry{
		ID:        id,
		Status:    StatusPending,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.Entries = append(d.Entries, e)
	return e, nil
}

// CountByStatus returns the number of entries per status.
func (d *QueueDocument) CountByStatus() map[string]int {
	counts := make(map[string]int)
	for _, e := range d.Entries {
		counts[e.Status]++
	}
	return counts
}

// StaleEntries returns LAUNCHING entries whose claim is older than olderThan:
// entries wedged by a crash between the claim write and the outcome write.
// PENDING entries are merely waiting and RUNNING entries legitimately take
// hours, so neither counts as stale.
func (d *QueueDocument) StaleEntries(now time.Time, olderThan time.Duration) []*JobEntry {
	var stale []*JobEntry
	for _, e := range d.Entries {
		if e.Status != StatusLaunching {
			continue
		}
		if now.Sub(e.UpdatedAt) > olderThan {
			stale = append(stale, e)
		}
	}
	return stale
}

// Validate checks structural document invariants: name present, statuses
// legal, IDs unique. Several entries may be LAUNCHING at once, one per
// concurrent tick, but any single claim write transitions exactly one.
func (d *QueueDocument) Validate() error {
	if d.Name == "" {
		return ErrValidation("queue name is required")
	}
	seen := make(map[string]bool, len(d.Entries))
	for _, e := range d.Entries {
		if e.ID == "" {
			return ErrValidation("queue %s: entry with empty id", d.Name)
		}
		if seen[e.ID] {
			return ErrValidation("queue %s: duplicate entry id %s", d.Name, e.ID)
		}
		seen[e.ID] = true
		if !validStatuses[e.Status] {
			return ErrValidation("queue %s: entry %s has unknown status %q", d.Name, e.ID, e.Status)
		}
	}
	return nil
}

// EncodeDocument serializes the document body for storage.
func EncodeDocument(d *QueueDocument) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode queue document %s: %w", d.Name, err)
	}
	return data, nil
}

// DecodeDocument deserializes a stored document body, migrating older schema
// versions forward. Documents written by a newer build are rejected.
func DecodeDocument(data []byte) (*QueueDocument, error) {
	var d QueueDocument
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, ErrValidation("decode queue document: %v", err)
	}
	switch {
	case d.SchemaVersion > CurrentSchemaVersion:
		return nil, ErrValidation("queue %s: schema version %d is newer than supported %d",
			d.Name, d.SchemaVersion, CurrentSchemaVersion)
	case d.SchemaVersion < CurrentSchemaVersion:
		// v0 documents predate the schemaVersion field; the entry and
		// document shapes are otherwise identical.
		d.SchemaVersion = CurrentSchemaVersion
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
