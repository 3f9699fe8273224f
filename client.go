package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Client opens resilient streaming sessions. A Client is safe for
// concurrent use; every call to Stream runs an independent session.
type Client struct {
	transport Transport
	endpoints map[string]Transport
	store     CheckpointStore
	telemetry Telemetry
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	rand      func() float64
	newID     func() string
}

// Option configures a [Client].
type Option func(*Client)

// WithLogger sets the logger. Default is slog.Default() scoped to the
// "relay" component.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCheckpointStore persists session progress before every reconnect and
// resumes sessions that have a stored checkpoint.
func WithCheckpointStore(s CheckpointStore) Option {
	return func(c *Client) { c.store = s }
}

// WithTelemetry sets the telemetry sink. Default logs records through the
// client logger.
func WithTelemetry(t Telemetry) Option {
	return func(c *Client) { c.telemetry = t }
}

// WithEndpointTransport routes endpoint through t instead of the client's
// default transport.
func WithEndpointTransport(endpoint string, t Transport) Option {
	return func(c *Client) { c.endpoints[endpoint] = t }
}

// NewClient creates a [Client] whose sessions connect through transport.
// transport may be nil when every endpoint has its own transport.
func NewClient(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		endpoints: make(map[string]Transport),
		sleep:     sleepContext,
		rand:      rand.Float64,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "relay")
	}
	if c.telemetry == nil {
		c.telemetry = LogTelemetry{Logger: c.logger}
	}
	return c
}

// Stream validates req and cfg and starts a session. Validation failures
// return an error wrapping ErrConfig before any network attempt; every
// later failure is reported as an event on the returned Stream.
//
// Cancelling ctx ends the session with a fatal canceled error event.
func (c *Client) Stream(ctx context.Context, req Request, cfg Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = cfg.Model
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	endpoints := cfg.Endpoints()
	for _, ep := range endpoints {
		if c.transportFor(ep) == nil {
			return nil, fmt.Errorf("no transport for endpoint %q: %w", ep, ErrConfig)
		}
	}
	if req.SessionID == "" {
		req.SessionID = c.newID()
	}
	fingerprint := req.Fingerprint()

	sess := &session{
		id:          req.SessionID,
		fingerprint: fingerprint,
		cfg:         cfg,
		req:         req,
		endpoints:   endpoints,
		transports:  c.transportFor,
		store:       c.store,
		telemetry:   c.telemetry,
		logger:      c.logger,
		sleep:       c.sleep,
		rand:        c.rand,
	}
	if cfg.HeartbeatInterval > 0 {
		sess.heartbeat = newHeartbeatMonitor(cfg.HeartbeatInterval, cfg.HeartbeatIdleThreshold)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := newStream(req.SessionID, cancel)

	if c.store != nil {
		cp, err := c.store.LoadCheckpoint(ctx, req.SessionID)
		switch {
		case err == nil && cp.Fingerprint == fingerprint:
			sess.resume(cp)
			s.acc.Restore(cp.Text, cp.LastSeq)
			c.logger.Info("resuming session", "session_id", req.SessionID, "last_seq", cp.LastSeq)
		case err == nil:
			// Same id, different prompt: the stored text does not belong here.
			c.logger.Info("discarding checkpoint of a different request", "session_id", req.SessionID)
			if err := c.store.DeleteCheckpoint(ctx, req.SessionID); err != nil {
				c.logger.Warn("deleting checkpoint", "session_id", req.SessionID, "error", err)
			}
		case !errors.Is(err, ErrCheckpointNotFound):
			c.logger.Warn("loading checkpoint", "session_id", req.SessionID, "error", err)
		}
	}

	go s.produce(runCtx, sess)
	return s, nil
}

func (c *Client) transportFor(endpoint string) Transport {
	if t, ok := c.endpoints[endpoint]; ok {
		return t
	}
	return c.transport
}
