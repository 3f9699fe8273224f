package relay

import "time"

// Event is a sealed interface representing one item of a session's event
// sequence. The unexported marker method prevents external implementations.
//
// A sequence always ends with exactly one terminal event: EventComplete or
// an EventError whose Retryable field is false.
type Event interface {
	event()
}

// Citation attributes a span of generated text to a source.
type Citation struct {
	URI        string
	Title      string
	License    string
	StartIndex int
	EndIndex   int
}

// EventChunk is a normalized, sequence-numbered text increment.
type EventChunk struct {
	Seq       int
	Delta     string
	Citations []Citation
}

func (EventChunk) event() {}

// EventHeartbeat is a synthetic liveness signal emitted while the stream is
// idle. It is never sourced from the provider.
type EventHeartbeat struct {
	Time time.Time
}

func (EventHeartbeat) event() {}

// EventError reports a failure. Retryable errors are informational: the
// session keeps going. A non-retryable error is terminal.
type EventError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Attempt   int // cumulative attempt number; 0 when no retry was made
}

func (EventError) event() {}

// EventComplete ends a successful session.
type EventComplete struct {
	TotalChunks  int
	FinishReason FinishReason
}

func (EventComplete) event() {}

// IsTerminal reports whether e ends the sequence.
func IsTerminal(e Event) bool {
	switch ev := e.(type) {
	case EventComplete:
		return true
	case EventError:
		return !ev.Retryable
	default:
		return false
	}
}

// Interface compliance checks.
var (
	_ Event = EventChunk{}
	_ Event = EventHeartbeat{}
	_ Event = EventError{}
	_ Event = EventComplete{}
)
