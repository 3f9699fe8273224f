// Package json implements [relay.CheckpointStore] as one JSON file per
// session in a directory.
package json

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/relay"
)

// envelope is the v1 wire format for a persisted checkpoint.
type envelope struct {
	Version     int       `json:"version"`
	SessionID   string    `json:"session_id"`
	LastSeq     int       `json:"last_seq"`
	Text        string    `json:"text"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MarshalCheckpoint serializes a Checkpoint to JSON in v1 envelope format.
func MarshalCheckpoint(cp relay.Checkpoint) ([]byte, error) {
	return json.MarshalIndent(envelope{
		Version:     1,
		SessionID:   cp.SessionID,
		LastSeq:     cp.LastSeq,
		Text:        cp.Text,
		Fingerprint: cp.Fingerprint,
		UpdatedAt:   cp.UpdatedAt,
	}, "", "  ")
}

// UnmarshalCheckpoint deserializes a Checkpoint from JSON in v1 envelope
// format.
func UnmarshalCheckpoint(data []byte) (relay.Checkpoint, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return relay.Checkpoint{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return relay.Checkpoint{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	return relay.Checkpoint{
		SessionID:   env.SessionID,
		LastSeq:     env.LastSeq,
		Text:        env.Text,
		Fingerprint: env.Fingerprint,
		UpdatedAt:   env.UpdatedAt,
	}, nil
}

// Interface compliance check.
var _ relay.CheckpointStore = (*Store)(nil)

// Store keeps checkpoints under a directory. File names are the base64url
// encoding of the session id, so any id maps to a single safe file name.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file that holds the checkpoint for sessionID.
func (s *Store) Path(sessionID string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(sessionID))+".json")
}

// SaveCheckpoint writes cp atomically, replacing any previous checkpoint
// for the session.
func (s *Store) SaveCheckpoint(_ context.Context, cp relay.Checkpoint) error {
	data, err := MarshalCheckpoint(cp)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	path := s.Path(cp.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the checkpoint for sessionID. It returns an error
// wrapping relay.ErrCheckpointNotFound when none exists.
func (s *Store) LoadCheckpoint(_ context.Context, sessionID string) (relay.Checkpoint, error) {
	data, err := os.ReadFile(s.Path(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return relay.Checkpoint{}, fmt.Errorf("session %q: %w", sessionID, relay.ErrCheckpointNotFound)
	}
	if err != nil {
		return relay.Checkpoint{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalCheckpoint(data)
}

// DeleteCheckpoint removes the checkpoint for sessionID. Missing
// checkpoints are not an error.
func (s *Store) DeleteCheckpoint(_ context.Context, sessionID string) error {
	err := os.Remove(s.Path(sessionID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}
