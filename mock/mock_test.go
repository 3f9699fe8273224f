package mock_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_Open(t *testing.T) {
	t.Parallel()
	t.Run("delegates to OpenFn", func(t *testing.T) {
		t.Parallel()
		var src mock.Source
		tr := mock.Transport{
			OpenFn: func(ctx context.Context, endpoint string, req relay.Request) (relay.Source, error) {
				assert.Equal(t, "https://a.example", endpoint)
				return &src, nil
			},
		}
		got, err := tr.Open(context.Background(), "https://a.example", relay.Request{})
		require.NoError(t, err)
		assert.Equal(t, &src, got)
	})

	t.Run("panics when OpenFn not set", func(t *testing.T) {
		t.Parallel()
		tr := mock.Transport{}
		assert.Panics(t, func() {
			_, _ = tr.Open(context.Background(), "x", relay.Request{})
		})
	})
}

func TestSource_Next(t *testing.T) {
	t.Parallel()
	t.Run("returns EOF", func(t *testing.T) {
		t.Parallel()
		s := mock.Source{
			NextFn: func() (relay.Increment, error) {
				return relay.Increment{}, io.EOF
			},
		}
		_, err := s.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("panics when NextFn not set", func(t *testing.T) {
		t.Parallel()
		s := mock.Source{}
		assert.Panics(t, func() {
			_, _ = s.Next()
		})
	})
}

func TestSource_Close(t *testing.T) {
	t.Parallel()
	t.Run("returns error", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("close error")
		s := mock.Source{CloseFn: func() error { return wantErr }}
		assert.ErrorIs(t, s.Close(), wantErr)
	})

	t.Run("returns nil when CloseFn not set", func(t *testing.T) {
		t.Parallel()
		s := mock.Source{}
		assert.NoError(t, s.Close())
	})
}

func TestCheckpointStore_LoadCheckpoint(t *testing.T) {
	t.Parallel()
	s := mock.CheckpointStore{
		LoadCheckpointFn: func(ctx context.Context, id string) (relay.Checkpoint, error) {
			return relay.Checkpoint{}, relay.ErrCheckpointNotFound
		},
	}
	_, err := s.LoadCheckpoint(context.Background(), "sess-1")
	assert.ErrorIs(t, err, relay.ErrCheckpointNotFound)
}

func TestTelemetry_NilSafe(t *testing.T) {
	t.Parallel()
	tel := mock.Telemetry{}
	assert.NotPanics(t, func() {
		tel.RecordRetry(context.Background(), relay.RetryRecord{})
		tel.RecordOutcome(context.Background(), relay.OutcomeRecord{})
	})
}
