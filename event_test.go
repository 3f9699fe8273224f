package relay_test

import (
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		event relay.Event
		want  bool
	}{
		{"chunk", relay.EventChunk{Seq: 0, Delta: "hi"}, false},
		{"heartbeat", relay.EventHeartbeat{Time: time.Now()}, false},
		{"retryable error", relay.EventError{Kind: relay.ErrorKindTransient, Retryable: true, Attempt: 1}, false},
		{"fatal error", relay.EventError{Kind: relay.ErrorKindConnect}, true},
		{"complete", relay.EventComplete{TotalChunks: 2, FinishReason: relay.FinishStop}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, relay.IsTerminal(tt.event))
		})
	}
}

func TestEventTypeSwitch_Exhaustive(t *testing.T) {
	t.Parallel()
	events := []relay.Event{
		relay.EventChunk{Seq: 0, Delta: "hello"},
		relay.EventHeartbeat{Time: time.Now()},
		relay.EventError{Kind: relay.ErrorKindTransient, Retryable: true},
		relay.EventComplete{TotalChunks: 1},
	}
	assert.Len(t, events, 4, "update slice and switch when adding new Event types")
	for _, e := range events {
		switch e.(type) {
		case relay.EventChunk:
		case relay.EventHeartbeat:
		case relay.EventError:
		case relay.EventComplete:
		default:
			t.Errorf("unhandled event type: %T", e)
		}
	}
}
