// Package nats implements [relay.Telemetry] by publishing records as JSON
// messages on NATS subjects.
//
// Retry records go to <prefix>.retry and outcome records to
// <prefix>.outcome. Publishing is fire-and-forget; failures are logged and
// never reach the session.
package nats

import (
	"context"
	"log/slog"

	"github.com/fwojciec/relay"
	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "relay.telemetry"

// Publisher is the subset of *nats.Conn used by Telemetry.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Interface compliance checks.
var (
	_ Publisher       = (*natsgo.Conn)(nil)
	_ relay.Telemetry = (*Telemetry)(nil)
)

// Telemetry publishes retry and outcome records.
type Telemetry struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// Option configures a [Telemetry].
type Option func(*Telemetry)

// WithSubjectPrefix sets the subject prefix. Default is relay.telemetry.
func WithSubjectPrefix(prefix string) Option {
	return func(t *Telemetry) { t.prefix = prefix }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Telemetry) { t.logger = l }
}

// New creates a [Telemetry] publishing through pub.
func New(pub Publisher, opts ...Option) *Telemetry {
	t := &Telemetry{
		pub:    pub,
		prefix: DefaultSubjectPrefix,
	}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.Default().With("component", "telemetry")
	}
	return t
}

// Connect dials the NATS server at url with the client name and
// compression enabled.
func Connect(url string, opts ...natsgo.Option) (*natsgo.Conn, error) {
	opts = append([]natsgo.Option{natsgo.Name("relay"), natsgo.Compression(true)}, opts...)
	return natsgo.Connect(url, opts...)
}

// RetrySubject returns the subject retry records are published on.
func (t *Telemetry) RetrySubject() string { return t.prefix + ".retry" }

// OutcomeSubject returns the subject outcome records are published on.
func (t *Telemetry) OutcomeSubject() string { return t.prefix + ".outcome" }

// RecordRetry publishes r on the retry subject.
func (t *Telemetry) RecordRetry(ctx context.Context, r relay.RetryRecord) {
	t.publish(ctx, t.RetrySubject(), r.SessionID, r)
}

// RecordOutcome publishes r on the outcome subject.
func (t *Telemetry) RecordOutcome(ctx context.Context, r relay.OutcomeRecord) {
	t.publish(ctx, t.OutcomeSubject(), r.SessionID, r)
}

func (t *Telemetry) publish(ctx context.Context, subject, sessionID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		t.logger.WarnContext(ctx, "encoding telemetry record", "session_id", sessionID, "error", err)
		return
	}
	if err := t.pub.Publish(subject, data); err != nil {
		t.logger.WarnContext(ctx, "publishing telemetry record", "session_id", sessionID, "subject", subject, "error", err)
	}
}
