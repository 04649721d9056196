// Package checkpoint provides persistent checkpoint storage for crash recovery.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists checkpoints for crash recovery.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a run at a specific node.
	// Overwrites if a checkpoint for (runID, nodeID) already exists.
	Save(ctx context.Context, runID, nodeID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if the checkpoint doesn't exist.
	Load(ctx context.Context, runID, nodeID string) ([]byte, error)

	// List returns all checkpoints for a run, ordered by sequence.
	// Returns an empty slice (not an error) if the run has no checkpoints.
	List(ctx context.Context, runID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if the checkpoint doesn't exist.
	Delete(ctx context.Context, runID, nodeID string) error

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if the run has no checkpoints.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	RunID     string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
