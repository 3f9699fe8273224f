package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// errAbandoned signals that the consumer stopped pulling events.
var errAbandoned = errors.New("stream abandoned")

// sessionState is mutated only by the session goroutine.
type sessionState struct {
	endpoint      int // index into session.endpoints
	attempts      int // reconnects made at the current endpoint
	totalAttempts int // reconnects made across all endpoints
	nextSeq       int
	retryDelay    time.Duration // accumulated backoff slept so far
}

// session drives one logical stream through endpoint selection, connect,
// streaming, reconnect and failover. It owns the Source it opens and closes
// it on every exit path.
type session struct {
	id          string
	fingerprint string
	cfg         Config
	req         Request
	endpoints   []string
	transports  func(endpoint string) Transport
	store       CheckpointStore // nil disables checkpoints
	telemetry   Telemetry
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
	rand        func() float64
	heartbeat   *heartbeatMonitor // nil when heartbeats are disabled

	state  sessionState
	text   strings.Builder
	finish FinishReason
}

// resume continues numbering and text from a stored checkpoint.
func (s *session) resume(cp Checkpoint) {
	s.state.nextSeq = cp.LastSeq + 1
	s.text.Reset()
	s.text.WriteString(cp.Text)
}

// run drives the session until it terminates and returns the terminal
// event, or nil when the consumer abandoned the stream. Non-terminal events
// go through emit, which returns false once the consumer is gone.
func (s *session) run(ctx context.Context, emit func(Event) bool) Event {
	start := time.Now()
	term := s.loop(ctx, emit)

	rec := OutcomeRecord{
		SessionID:   s.id,
		TotalChunks: s.state.nextSeq,
		Duration:    time.Since(start),
		Outcome:     OutcomeCompleted,
		Retries:     s.state.totalAttempts,
		RetryDelay:  s.state.retryDelay,
	}
	rec.DurationMS = rec.Duration.Milliseconds()
	rec.RetryDelayMS = rec.RetryDelay.Milliseconds()

	switch ev := term.(type) {
	case nil:
		rec.Outcome = OutcomeCanceled
		s.logger.Debug("stream abandoned", "session_id", s.id, "chunks", s.state.nextSeq)
	case EventComplete:
		s.deleteCheckpoint(ctx)
		s.logger.Debug("stream completed", "session_id", s.id, "chunks", ev.TotalChunks, "finish_reason", ev.FinishReason)
	case EventError:
		rec.Outcome = OutcomeFailed
		if ev.Kind == ErrorKindCanceled {
			rec.Outcome = OutcomeCanceled
		}
		s.logger.Error("stream failed", "session_id", s.id, "kind", ev.Kind, "attempts", s.state.totalAttempts,
			"retry_delay", s.state.retryDelay, "error", ev.Message)
	}
	s.telemetry.RecordOutcome(context.WithoutCancel(ctx), rec)
	return term
}

func (s *session) loop(ctx context.Context, emit func(Event) bool) Event {
	var lastErr error
	for s.state.endpoint < len(s.endpoints) {
		endpoint := s.endpoints[s.state.endpoint]
		err := s.attempt(ctx, endpoint, emit)
		switch {
		case err == nil:
			return EventComplete{TotalChunks: s.state.nextSeq, FinishReason: s.finishReason()}
		case errors.Is(err, errAbandoned):
			return nil
		case ctx.Err() != nil:
			return s.fatal(ErrorKindCanceled, ctx.Err().Error())
		case errors.Is(err, ErrMalformedIncrement):
			return s.fatal(ErrorKindMalformedIncrement, err.Error())
		case errors.Is(err, ErrConfig):
			return s.fatal(ErrorKindConfig, err.Error())
		case errors.Is(err, ErrConnect):
			lastErr = err
			s.failover(ctx, endpoint, err)
			continue
		}

		lastErr = err
		if s.state.attempts >= s.cfg.MaxRetryAttempts {
			s.failover(ctx, endpoint, err)
			continue
		}
		if err := s.reconnect(ctx, endpoint, err, emit); err != nil {
			if errors.Is(err, errAbandoned) {
				return nil
			}
			return s.fatal(ErrorKindCanceled, err.Error())
		}
	}

	if lastErr == nil {
		return s.fatal(ErrorKindRetryBudgetExhausted, "no endpoints configured")
	}
	if errors.Is(lastErr, ErrConnect) {
		return s.fatal(ErrorKindConnect, fmt.Sprintf("all %d endpoints failed, last: %v", len(s.endpoints), lastErr))
	}
	return s.fatal(ErrorKindRetryBudgetExhausted, fmt.Sprintf("%d reconnects across %d endpoints, last: %v",
		s.state.totalAttempts, len(s.endpoints), lastErr))
}

// attempt opens endpoint and forwards increments as chunks until the source
// ends. It returns nil on a clean end of stream.
func (s *session) attempt(ctx context.Context, endpoint string, emit func(Event) bool) (err error) {
	req := s.req
	req.Partial = s.text.String()

	src, err := s.transports(endpoint).Open(ctx, endpoint, req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			s.logger.Debug("closing source", "session_id", s.id, "endpoint", endpoint, "error", cerr)
		}
	}()

	for {
		inc, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if inc.FinishReason != "" {
			s.finish = inc.FinishReason
		}
		if inc.Text == "" && len(inc.Citations) == 0 {
			continue
		}
		if s.heartbeat != nil {
			s.heartbeat.touch()
		}
		ev := EventChunk{Seq: s.state.nextSeq, Delta: inc.Text, Citations: inc.Citations}
		if !emit(ev) {
			return errAbandoned
		}
		s.state.nextSeq++
		s.text.WriteString(inc.Text)
	}
}

// reconnect sleeps for the backoff delay of the current attempt and reports
// the retry. The next loop iteration reconnects to the same endpoint.
func (s *session) reconnect(ctx context.Context, endpoint string, cause error, emit func(Event) bool) error {
	delay := s.cfg.jitter(s.cfg.Backoff(s.state.attempts), s.rand())
	attempt := s.state.totalAttempts + 1

	s.saveCheckpoint(ctx)
	s.telemetry.RecordRetry(ctx, RetryRecord{
		SessionID:  s.id,
		Endpoint:   endpoint,
		Transition: TransitionReconnecting,
		Attempt:    attempt,
		Delay:      delay,
		DelayMS:    delay.Milliseconds(),
		ErrorKind:  KindOf(cause),
	})
	s.logger.Warn("reconnecting", "session_id", s.id, "endpoint", endpoint,
		"attempt", attempt, "delay", delay, "error", cause)

	if err := s.sleep(ctx, delay); err != nil {
		return err
	}
	s.state.attempts++
	s.state.totalAttempts++
	s.state.retryDelay += delay

	if !emit(EventError{Kind: KindOf(cause), Message: cause.Error(), Retryable: true, Attempt: attempt}) {
		return errAbandoned
	}
	return nil
}

// failover advances to the next endpoint without delay. The per-endpoint
// attempt counter resets; the cumulative one does not.
func (s *session) failover(ctx context.Context, endpoint string, cause error) {
	s.state.endpoint++
	s.state.attempts = 0
	if s.state.endpoint >= len(s.endpoints) {
		return
	}
	next := s.endpoints[s.state.endpoint]
	s.telemetry.RecordRetry(ctx, RetryRecord{
		SessionID:  s.id,
		Endpoint:   next,
		Transition: TransitionFailingOver,
		Attempt:    s.state.totalAttempts,
		ErrorKind:  KindOf(cause),
	})
	s.logger.Warn("failing over", "session_id", s.id, "from", endpoint, "to", next, "error", cause)
}

func (s *session) fatal(kind ErrorKind, msg string) EventError {
	return EventError{Kind: kind, Message: msg, Retryable: false, Attempt: s.state.totalAttempts}
}

func (s *session) finishReason() FinishReason {
	if s.finish == "" {
		return FinishStop
	}
	return s.finish
}

func (s *session) saveCheckpoint(ctx context.Context) {
	if s.store == nil {
		return
	}
	cp := Checkpoint{
		SessionID:   s.id,
		LastSeq:     s.state.nextSeq - 1,
		Text:        s.text.String(),
		UpdatedAt:   time.Now().UTC(),
		Fingerprint: s.fingerprint,
	}
	if err := s.store.SaveCheckpoint(ctx, cp); err != nil {
		s.logger.Warn("saving checkpoint", "session_id", s.id, "error", err)
	}
}

func (s *session) deleteCheckpoint(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.DeleteCheckpoint(ctx, s.id); err != nil {
		s.logger.Warn("deleting checkpoint", "session_id", s.id, "error", err)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
