package relay_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/stretchr/testify/assert"
)

func TestLogTelemetry(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	tel := relay.LogTelemetry{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	tel.RecordRetry(context.Background(), relay.RetryRecord{
		SessionID:  "sess-1",
		Endpoint:   "https://a",
		Transition: relay.TransitionReconnecting,
		Attempt:    2,
		Delay:      1500 * time.Millisecond,
		DelayMS:    1500,
		ErrorKind:  relay.ErrorKindTransient,
	})
	tel.RecordOutcome(context.Background(), relay.OutcomeRecord{
		SessionID:   "sess-1",
		TotalChunks: 7,
		DurationMS:  42,
		Outcome:     relay.OutcomeCompleted,
	})

	out := buf.String()
	assert.Contains(t, out, `msg="stream retry"`)
	assert.Contains(t, out, "transition=reconnecting")
	assert.Contains(t, out, "delay_ms=1500")
	assert.Contains(t, out, `msg="stream outcome"`)
	assert.Contains(t, out, "total_chunks=7")
	assert.Contains(t, out, "outcome=completed")
}
