package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is a test double for relay.CheckpointStore.
// Set the function fields for the methods you need.
type CheckpointStore struct {
	SaveCheckpointFn   func(ctx context.Context, cp relay.Checkpoint) error
	LoadCheckpointFn   func(ctx context.Context, sessionID string) (relay.Checkpoint, error)
	DeleteCheckpointFn func(ctx context.Context, sessionID string) error
}

// SaveCheckpoint delegates to SaveCheckpointFn.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp relay.Checkpoint) error {
	return s.SaveCheckpointFn(ctx, cp)
}

// LoadCheckpoint delegates to LoadCheckpointFn.
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, sessionID string) (relay.Checkpoint, error) {
	return s.LoadCheckpointFn(ctx, sessionID)
}

// DeleteCheckpoint delegates to DeleteCheckpointFn.
func (s *CheckpointStore) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	return s.DeleteCheckpointFn(ctx, sessionID)
}
