package relay

import (
	"context"
	"time"
)

// WithSleep replaces the backoff sleep.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = f }
}

// WithRand replaces the jitter source.
func WithRand(f func() float64) Option {
	return func(c *Client) { c.rand = f }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(f func() string) Option {
	return func(c *Client) { c.newID = f }
}

// Jitter exposes Config.jitter.
func Jitter(c Config, d time.Duration, u float64) time.Duration {
	return c.jitter(d, u)
}
