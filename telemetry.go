package relay

import (
	"context"
	"log/slog"
	"time"
)

// Transition names the state a RetryRecord was emitted for.
type Transition string

const (
	TransitionReconnecting Transition = "reconnecting"
	TransitionFailingOver  Transition = "failing_over"
)

// Outcome is the final state of a session.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// RetryRecord is emitted on every reconnect and failover.
type RetryRecord struct {
	SessionID  string        `json:"session_id"`
	Endpoint   string        `json:"endpoint"`
	Transition Transition    `json:"transition"`
	Attempt    int           `json:"attempt_number"`
	Delay      time.Duration `json:"-"`
	DelayMS    int64         `json:"delay_ms"`
	ErrorKind  ErrorKind     `json:"error_kind"`
}

// OutcomeRecord is emitted once when a session terminates.
type OutcomeRecord struct {
	SessionID   string        `json:"session_id"`
	TotalChunks int           `json:"total_chunks"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	Outcome     Outcome       `json:"outcome"`

	// Retries counts reconnects across all endpoints; RetryDelay is the
	// backoff slept before them.
	Retries      int           `json:"retries"`
	RetryDelay   time.Duration `json:"-"`
	RetryDelayMS int64         `json:"retry_delay_ms"`
}

// Telemetry receives retry and latency records. Implementations must not
// block the session for long; failures are theirs to handle.
type Telemetry interface {
	RecordRetry(ctx context.Context, r RetryRecord)
	RecordOutcome(ctx context.Context, r OutcomeRecord)
}

// LogTelemetry writes records to a slog.Logger. It is the client default.
type LogTelemetry struct {
	Logger *slog.Logger
}

// Interface compliance check.
var _ Telemetry = LogTelemetry{}

// RecordRetry logs r at Info level.
func (t LogTelemetry) RecordRetry(ctx context.Context, r RetryRecord) {
	t.Logger.LogAttrs(ctx, slog.LevelInfo, "stream retry",
		slog.String("session_id", r.SessionID),
		slog.String("endpoint", r.Endpoint),
		slog.String("transition", string(r.Transition)),
		slog.Int("attempt", r.Attempt),
		slog.Int64("delay_ms", r.DelayMS),
		slog.String("error_kind", string(r.ErrorKind)),
	)
}

// RecordOutcome logs r at Info level.
func (t LogTelemetry) RecordOutcome(ctx context.Context, r OutcomeRecord) {
	t.Logger.LogAttrs(ctx, slog.LevelInfo, "stream outcome",
		slog.String("session_id", r.SessionID),
		slog.Int("total_chunks", r.TotalChunks),
		slog.Int64("duration_ms", r.DurationMS),
		slog.String("outcome", string(r.Outcome)),
		slog.Int("retries", r.Retries),
		slog.Int64("retry_delay_ms", r.RetryDelayMS),
	)
}
