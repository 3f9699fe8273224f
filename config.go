package relay

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Default values applied by DefaultConfig.
const (
	DefaultMaxRetryAttempts       = 3
	DefaultBaseBackoff            = time.Second
	DefaultBackoffMultiplier      = 2.0
	DefaultMaxBackoff             = 30 * time.Second
	DefaultJitterFraction         = 0.1
	DefaultHeartbeatInterval      = 10 * time.Second
	DefaultHeartbeatIdleThreshold = 20 * time.Second
)

// Config is the per-session streaming configuration. Build it once per
// request and do not mutate it afterwards.
type Config struct {
	Model             string
	PrimaryEndpoint   string
	FallbackEndpoints []string

	// MaxRetryAttempts bounds reconnects against a single endpoint.
	MaxRetryAttempts  int
	BaseBackoff       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	JitterFraction    float64 // in [0, 1]

	// HeartbeatInterval of zero disables heartbeats.
	HeartbeatInterval      time.Duration
	HeartbeatIdleThreshold time.Duration
}

// DefaultConfig returns a Config for model and primary with every other
// field set to its default.
func DefaultConfig(model, primary string) Config {
	return Config{
		Model:                  model,
		PrimaryEndpoint:        primary,
		MaxRetryAttempts:       DefaultMaxRetryAttempts,
		BaseBackoff:            DefaultBaseBackoff,
		BackoffMultiplier:      DefaultBackoffMultiplier,
		MaxBackoff:             DefaultMaxBackoff,
		JitterFraction:         DefaultJitterFraction,
		HeartbeatInterval:      DefaultHeartbeatInterval,
		HeartbeatIdleThreshold: DefaultHeartbeatIdleThreshold,
	}
}

// Endpoints returns the primary endpoint followed by the fallbacks in
// declared order.
func (c Config) Endpoints() []string {
	out := make([]string, 0, 1+len(c.FallbackEndpoints))
	out = append(out, c.PrimaryEndpoint)
	return append(out, c.FallbackEndpoints...)
}

// Validate checks the invariants of Config.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required: %w", ErrConfig)
	}
	if c.PrimaryEndpoint == "" {
		return fmt.Errorf("primary endpoint is required: %w", ErrConfig)
	}
	for i, ep := range c.FallbackEndpoints {
		if ep == "" {
			return fmt.Errorf("fallback endpoint %d is empty: %w", i, ErrConfig)
		}
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max retry attempts must be non-negative, got %d: %w", c.MaxRetryAttempts, ErrConfig)
	}
	if c.BaseBackoff < 0 {
		return fmt.Errorf("base backoff must be non-negative, got %s: %w", c.BaseBackoff, ErrConfig)
	}
	if !(c.BackoffMultiplier > 1) {
		return fmt.Errorf("backoff multiplier must be > 1, got %g: %w", c.BackoffMultiplier, ErrConfig)
	}
	if c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("max backoff %s is below base backoff %s: %w", c.MaxBackoff, c.BaseBackoff, ErrConfig)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return fmt.Errorf("jitter fraction must be in [0, 1], got %g: %w", c.JitterFraction, ErrConfig)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat interval must be non-negative, got %s: %w", c.HeartbeatInterval, ErrConfig)
	}
	if c.HeartbeatIdleThreshold <= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat idle threshold %s must exceed interval %s: %w",
			c.HeartbeatIdleThreshold, c.HeartbeatInterval, ErrConfig)
	}
	return nil
}

// Backoff returns the delay before reconnect attempt n (0-indexed) at one
// endpoint, before jitter: min(base × multiplier^n, max).
func (c Config) Backoff(n int) time.Duration {
	d := float64(c.BaseBackoff) * math.Pow(c.BackoffMultiplier, float64(n))
	if math.IsInf(d, 0) || math.IsNaN(d) || d >= float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

// jitter spreads d uniformly within ±JitterFraction of itself. u must be
// drawn from [0, 1).
func (c Config) jitter(d time.Duration, u float64) time.Duration {
	if c.JitterFraction == 0 || d == 0 {
		return d
	}
	j := float64(d) * (1 + c.JitterFraction*(2*u-1))
	switch {
	case j < 0:
		return 0
	case j >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(j)
}

// Environment variables recognized by WithEnv.
const (
	EnvModel             = "GEMINI_MODEL"
	EnvEndpoint          = "GEMINI_STREAM_ENDPOINT"
	EnvFallbackEndpoints = "GEMINI_FALLBACK_ENDPOINTS"
	EnvMaxRetries        = "GEMINI_MAX_RETRIES"
	EnvBackoffBase       = "GEMINI_BACKOFF_BASE"
	EnvBackoffMax        = "GEMINI_BACKOFF_MAX"
	EnvBackoffMultiplier = "GEMINI_BACKOFF_MULTIPLIER"
	EnvBackoffJitter     = "GEMINI_BACKOFF_JITTER"
	EnvHeartbeatInterval = "GEMINI_HEARTBEAT_INTERVAL"
	EnvHeartbeatIdle     = "GEMINI_HEARTBEAT_IDLE"
)

// WithEnv returns a copy of c with overrides taken from getenv. Unset or
// empty variables leave the field untouched. Durations accept Go duration
// strings ("1.5s") or plain seconds ("1.5").
func (c Config) WithEnv(getenv func(string) string) (Config, error) {
	if v := getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := getenv(EnvEndpoint); v != "" {
		c.PrimaryEndpoint = v
	}
	if v := getenv(EnvFallbackEndpoints); v != "" {
		c.FallbackEndpoints = SplitCSV(v)
	}
	if v := getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w: %w", EnvMaxRetries, ErrConfig, err)
		}
		c.MaxRetryAttempts = n
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{EnvBackoffMultiplier, &c.BackoffMultiplier},
		{EnvBackoffJitter, &c.JitterFraction},
	} {
		v := getenv(f.name)
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, fmt.Errorf("%s: %w: %w", f.name, ErrConfig, err)
		}
		*f.dst = x
	}
	for _, f := range []struct {
		name string
		dst  *time.Duration
	}{
		{EnvBackoffBase, &c.BaseBackoff},
		{EnvBackoffMax, &c.MaxBackoff},
		{EnvHeartbeatInterval, &c.HeartbeatInterval},
		{EnvHeartbeatIdle, &c.HeartbeatIdleThreshold},
	} {
		v := getenv(f.name)
		if v == "" {
			continue
		}
		d, err := ParseSeconds(v)
		if err != nil {
			return c, fmt.Errorf("%s: %w: %w", f.name, ErrConfig, err)
		}
		*f.dst = d
	}
	return c, nil
}

// ParseSeconds parses a Go duration string or a plain number of seconds.
func ParseSeconds(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// SplitCSV splits a comma-separated list, dropping blank entries.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
