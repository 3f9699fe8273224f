// Package sqlite implements [relay.CheckpointStore] on an embedded SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/relay"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Interface compliance check.
var _ relay.CheckpointStore = (*Store)(nil)

// Store keeps one row per session in the checkpoints table.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path. Parent directories are
// created as needed and the schema is created if missing.
func Open(path string) (*Store, error) {
	logger := slog.Default().With("component", "checkpoints")

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL lets readers proceed while a session saves.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.Debug("checkpoint store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			session_id TEXT PRIMARY KEY,
			last_seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			fingerprint TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

// migrate adds columns missing from databases created by older versions.
// SQLite has no ADD COLUMN IF NOT EXISTS, so each column is checked first.
func (s *Store) migrate() error {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('checkpoints') WHERE name = 'fingerprint'`).Scan(&exists)
	if err == nil {
		return nil
	}
	if _, err := s.db.Exec(`ALTER TABLE checkpoints ADD COLUMN fingerprint TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("adding fingerprint column: %w", err)
	}
	s.logger.Info("applied migration", "column", "fingerprint", "table", "checkpoints")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCheckpoint inserts or replaces the checkpoint for cp.SessionID.
func (s *Store) SaveCheckpoint(ctx context.Context, cp relay.Checkpoint) error {
	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (session_id, last_seq, text, fingerprint, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_seq = excluded.last_seq,
			text = excluded.text,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at
	`, cp.SessionID, cp.LastSeq, cp.Text, cp.Fingerprint, updated.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the checkpoint for sessionID or an error wrapping
// relay.ErrCheckpointNotFound.
func (s *Store) LoadCheckpoint(ctx context.Context, sessionID string) (relay.Checkpoint, error) {
	cp := relay.Checkpoint{SessionID: sessionID}
	var updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_seq, text, fingerprint, updated_at FROM checkpoints WHERE session_id = ?
	`, sessionID).Scan(&cp.LastSeq, &cp.Text, &cp.Fingerprint, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return relay.Checkpoint{}, fmt.Errorf("session %q: %w", sessionID, relay.ErrCheckpointNotFound)
	}
	if err != nil {
		return relay.Checkpoint{}, fmt.Errorf("loading checkpoint: %w", err)
	}
	cp.UpdatedAt, err = time.Parse(timeFormat, updated)
	if err != nil {
		return relay.Checkpoint{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return cp, nil
}

// DeleteCheckpoint removes the checkpoint for sessionID if present.
func (s *Store) DeleteCheckpoint(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	return nil
}

// Prune deletes checkpoints last updated before cutoff and returns how many
// were removed. Failed sessions keep their checkpoint until pruned.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE updated_at < ?`,
		cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("pruning checkpoints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning checkpoints: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned checkpoints", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
