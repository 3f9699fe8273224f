package relay

import (
	"strings"
	"sync"
)

// Accumulator stitches chunk events into text. Chunks are keyed by sequence
// number, so duplicates are ignored and out-of-order delivery is tolerated;
// Snapshot stops at the first missing sequence number.
//
// The zero value is ready to use and expects the first chunk at sequence 0.
// It is safe for concurrent use.
type Accumulator struct {
	mu       sync.Mutex
	start    int
	prefix   string
	chunks   map[int]string
	complete bool
}

// Restore seeds the accumulator with text already delivered up to and
// including lastSeq, as recorded in a Checkpoint. Buffered chunks at or
// below lastSeq are dropped.
func (a *Accumulator) Restore(text string, lastSeq int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefix = text
	a.start = lastSeq + 1
	for seq := range a.chunks {
		if seq < a.start {
			delete(a.chunks, seq)
		}
	}
}

// Ingest records e. Only chunk and complete events change state.
func (a *Accumulator) Ingest(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev := e.(type) {
	case EventChunk:
		if ev.Seq < a.start {
			return
		}
		if a.chunks == nil {
			a.chunks = make(map[int]string)
		}
		if _, ok := a.chunks[ev.Seq]; ok {
			return
		}
		a.chunks[ev.Seq] = ev.Delta
	case EventComplete:
		a.complete = true
	}
}

// Snapshot returns the text of all contiguous chunks from the start.
func (a *Accumulator) Snapshot() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var b strings.Builder
	b.WriteString(a.prefix)
	for seq := a.start; ; seq++ {
		delta, ok := a.chunks[seq]
		if !ok {
			break
		}
		b.WriteString(delta)
	}
	return b.String()
}

// IsComplete reports whether a complete event was ingested.
func (a *Accumulator) IsComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.complete
}
