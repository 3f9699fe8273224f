package relay

import (
	"context"
	"time"
)

// Checkpoint is the persisted progress of a session: the last chunk
// delivered to the caller and the text accumulated up to it.
type Checkpoint struct {
	SessionID string
	LastSeq   int // -1 when no chunk was delivered
	Text      string
	UpdatedAt time.Time

	// Fingerprint is Request.Fingerprint of the request that produced Text.
	// Checkpoints of a different request are discarded, not resumed.
	Fingerprint string
}

// CheckpointStore persists checkpoints so a restarted process can resume a
// session from its last acknowledged chunk.
type CheckpointStore interface {
	// SaveCheckpoint creates or replaces the checkpoint for cp.SessionID.
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	// LoadCheckpoint returns ErrCheckpointNotFound when none exists.
	LoadCheckpoint(ctx context.Context, sessionID string) (Checkpoint, error)
	// DeleteCheckpoint is a no-op when none exists.
	DeleteCheckpoint(ctx context.Context, sessionID string) error
}
