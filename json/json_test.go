package json_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := relayjson.NewStore(filepath.Join(t.TempDir(), "checkpoints"))
	cp := relay.Checkpoint{
		SessionID:   "sess-1",
		LastSeq:     4,
		Text:        "Hello, wor",
		Fingerprint: "f1",
		UpdatedAt:   time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.SaveCheckpoint(ctx, cp))
	got, err := store.LoadCheckpoint(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, cp, got)

	cp.LastSeq = 6
	cp.Text = "Hello, world!"
	require.NoError(t, store.SaveCheckpoint(ctx, cp))
	got, err = store.LoadCheckpoint(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.LastSeq)
	assert.Equal(t, "Hello, world!", got.Text)

	require.NoError(t, store.DeleteCheckpoint(ctx, "sess-1"))
	_, err = store.LoadCheckpoint(ctx, "sess-1")
	assert.ErrorIs(t, err, relay.ErrCheckpointNotFound)
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()
	store := relayjson.NewStore(t.TempDir())
	_, err := store.LoadCheckpoint(context.Background(), "nope")
	assert.ErrorIs(t, err, relay.ErrCheckpointNotFound)
}

func TestStore_DeleteMissing(t *testing.T) {
	t.Parallel()
	store := relayjson.NewStore(t.TempDir())
	assert.NoError(t, store.DeleteCheckpoint(context.Background(), "nope"))
}

func TestStore_UnsafeSessionIDStaysInDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := relayjson.NewStore(dir)
	id := "../../etc/passwd"

	require.NoError(t, store.SaveCheckpoint(context.Background(), relay.Checkpoint{SessionID: id, LastSeq: -1}))
	assert.Equal(t, dir, filepath.Dir(store.Path(id)))
	got, err := store.LoadCheckpoint(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.SessionID)
}

func TestStore_NoTempFileLeft(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := relayjson.NewStore(dir)
	require.NoError(t, store.SaveCheckpoint(context.Background(), relay.Checkpoint{SessionID: "s", LastSeq: 0, Text: "a"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestUnmarshalCheckpoint_Errors(t *testing.T) {
	t.Parallel()
	_, err := relayjson.UnmarshalCheckpoint([]byte(`not json`))
	assert.Error(t, err)

	_, err = relayjson.UnmarshalCheckpoint([]byte(`{"version":2,"session_id":"s"}`))
	assert.ErrorContains(t, err, "unsupported envelope version")
}

func TestMarshalCheckpoint_Format(t *testing.T) {
	t.Parallel()
	data, err := relayjson.MarshalCheckpoint(relay.Checkpoint{
		SessionID: "s",
		LastSeq:   1,
		Text:      "ab",
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"session_id":"s","last_seq":1,"text":"ab","updated_at":"2026-01-01T00:00:00Z"}`, string(data))
}
