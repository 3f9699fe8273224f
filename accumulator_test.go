package relay_test

import (
	"sync"
	"testing"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestAccumulator(t *testing.T) {
	t.Parallel()

	t.Run("concatenates chunks in order", func(t *testing.T) {
		t.Parallel()
		var a relay.Accumulator
		a.Ingest(relay.EventChunk{Seq: 0, Delta: "Hel"})
		a.Ingest(relay.EventChunk{Seq: 1, Delta: "lo"})
		assert.Equal(t, "Hello", a.Snapshot())
		assert.False(t, a.IsComplete())
	})

	t.Run("ignores duplicates", func(t *testing.T) {
		t.Parallel()
		var a relay.Accumulator
		a.Ingest(relay.EventChunk{Seq: 0, Delta: "a"})
		a.Ingest(relay.EventChunk{Seq: 0, Delta: "x"})
		a.Ingest(relay.EventChunk{Seq: 1, Delta: "b"})
		assert.Equal(t, "ab", a.Snapshot())
	})

	t.Run("stops at first gap", func(t *testing.T) {
		t.Parallel()
		var a relay.Accumulator
		a.Ingest(relay.EventChunk{Seq: 0, Delta: "a"})
		a.Ingest(relay.EventChunk{Seq: 2, Delta: "c"})
		assert.Equal(t, "a", a.Snapshot())

		a.Ingest(relay.EventChunk{Seq: 1, Delta: "b"})
		assert.Equal(t, "abc", a.Snapshot())
	})

	t.Run("ignores non-chunk events", func(t *testing.T) {
		t.Parallel()
		var a relay.Accumulator
		a.Ingest(relay.EventHeartbeat{})
		a.Ingest(relay.EventError{Kind: relay.ErrorKindTransient, Retryable: true})
		assert.Empty(t, a.Snapshot())
		assert.False(t, a.IsComplete())
	})

	t.Run("complete sets flag", func(t *testing.T) {
		t.Parallel()
		var a relay.Accumulator
		a.Ingest(relay.EventChunk{Seq: 0, Delta: "a"})
		a.Ingest(relay.EventComplete{TotalChunks: 1})
		assert.True(t, a.IsComplete())
		assert.Equal(t, "a", a.Snapshot())
	})

	t.Run("restore continues after checkpoint", func(t *testing.T) {
		t.Parallel()
		var a relay.Accumulator
		a.Ingest(relay.EventChunk{Seq: 0, Delta: "stale"})
		a.Restore("abc", 2)
		a.Ingest(relay.EventChunk{Seq: 1, Delta: "ignored"})
		a.Ingest(relay.EventChunk{Seq: 3, Delta: "d"})
		assert.Equal(t, "abcd", a.Snapshot())
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		t.Parallel()
		var a relay.Accumulator
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.Ingest(relay.EventChunk{Seq: i, Delta: "x"})
				_ = a.Snapshot()
			}()
		}
		wg.Wait()
		assert.Len(t, a.Snapshot(), 50)
	})
}
