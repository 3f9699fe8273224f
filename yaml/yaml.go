// Package yaml loads relay settings from a YAML file.
//
// ${VAR} references are expanded before parsing. Duration fields are read as
// strings and parsed afterwards, accepting Go duration syntax or plain
// seconds.
package yaml

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/fwojciec/relay"
	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportGemini = "gemini"
	TransportSSE    = "sse"
)

// Store kinds.
const (
	StoreNone   = ""
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Settings is the complete settings file.
type Settings struct {
	Stream    StreamSettings    `yaml:"stream"`
	Transport TransportSettings `yaml:"transport"`
	Store     StoreSettings     `yaml:"store"`
	Telemetry TelemetrySettings `yaml:"telemetry"`
	Logging   LoggingSettings   `yaml:"logging"`
}

// StreamSettings overlays relay.Config. Unset fields keep the base value.
type StreamSettings struct {
	Model             string   `yaml:"model"`
	PrimaryEndpoint   string   `yaml:"primary_endpoint"`
	FallbackEndpoints []string `yaml:"fallback_endpoints"`
	MaxRetryAttempts  *int     `yaml:"max_retry_attempts"`
	BackoffMultiplier *float64 `yaml:"backoff_multiplier"`
	JitterFraction    *float64 `yaml:"jitter_fraction"`

	BaseBackoff            time.Duration `yaml:"-"`
	MaxBackoff             time.Duration `yaml:"-"`
	HeartbeatInterval      time.Duration `yaml:"-"`
	HeartbeatIdleThreshold time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	BaseBackoffRaw            string `yaml:"base_backoff"`
	MaxBackoffRaw             string `yaml:"max_backoff"`
	HeartbeatIntervalRaw      string `yaml:"heartbeat_interval"`
	HeartbeatIdleThresholdRaw string `yaml:"heartbeat_idle_threshold"`
}

// TransportSettings selects and configures the transport.
type TransportSettings struct {
	Kind   string `yaml:"kind"`
	APIKey string `yaml:"api_key"`

	// Timeout bounds the wait for response headers; 0 means no limit.
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// StoreSettings selects the checkpoint store.
type StoreSettings struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`

	// PruneAfter drops sqlite checkpoints older than this at startup.
	PruneAfter    time.Duration `yaml:"-"`
	PruneAfterRaw string        `yaml:"prune_after"`
}

// TelemetrySettings configures NATS telemetry. An empty URL disables it.
type TelemetrySettings struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// LoggingSettings configures the command logger.
type LoggingSettings struct {
	Level string `yaml:"level"`
}

// Load reads the settings file at path, expanding ${VAR} references through
// getenv.
func Load(path string, getenv func(string) string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	return Parse(data, getenv)
}

// Parse parses settings from data.
func Parse(data []byte, getenv func(string) string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data), getenv)), &s); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w: %w", relay.ErrConfig, err)
	}
	if err := parseDurations(&s); err != nil {
		return nil, fmt.Errorf("parsing durations: %w: %w", relay.ErrConfig, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding values.
// Unset variables expand to an empty string.
func expandEnvVars(s string, getenv func(string) string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks the enumerated fields. Stream fields are validated by
// relay.Config once applied.
func (s *Settings) Validate() error {
	switch s.Transport.Kind {
	case "", TransportGemini, TransportSSE:
	default:
		return fmt.Errorf("transport.kind %q must be %q or %q: %w", s.Transport.Kind, TransportGemini, TransportSSE, relay.ErrConfig)
	}
	switch s.Store.Kind {
	case StoreNone:
	case StoreJSON, StoreSQLite:
		if s.Store.Path == "" {
			return fmt.Errorf("store.path is required for %s store: %w", s.Store.Kind, relay.ErrConfig)
		}
	default:
		return fmt.Errorf("store.kind %q must be %q or %q: %w", s.Store.Kind, StoreJSON, StoreSQLite, relay.ErrConfig)
	}
	return nil
}

// Apply overlays the stream settings onto base.
func (s *Settings) Apply(base relay.Config) relay.Config {
	st := s.Stream
	if st.Model != "" {
		base.Model = st.Model
	}
	if st.PrimaryEndpoint != "" {
		base.PrimaryEndpoint = st.PrimaryEndpoint
	}
	if st.FallbackEndpoints != nil {
		base.FallbackEndpoints = st.FallbackEndpoints
	}
	if st.MaxRetryAttempts != nil {
		base.MaxRetryAttempts = *st.MaxRetryAttempts
	}
	if st.BackoffMultiplier != nil {
		base.BackoffMultiplier = *st.BackoffMultiplier
	}
	if st.JitterFraction != nil {
		base.JitterFraction = *st.JitterFraction
	}
	if st.BaseBackoffRaw != "" {
		base.BaseBackoff = st.BaseBackoff
	}
	if st.MaxBackoffRaw != "" {
		base.MaxBackoff = st.MaxBackoff
	}
	if st.HeartbeatIntervalRaw != "" {
		base.HeartbeatInterval = st.HeartbeatInterval
	}
	if st.HeartbeatIdleThresholdRaw != "" {
		base.HeartbeatIdleThreshold = st.HeartbeatIdleThreshold
	}
	return base
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(s *Settings) error {
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"stream.base_backoff", s.Stream.BaseBackoffRaw, &s.Stream.BaseBackoff},
		{"stream.max_backoff", s.Stream.MaxBackoffRaw, &s.Stream.MaxBackoff},
		{"stream.heartbeat_interval", s.Stream.HeartbeatIntervalRaw, &s.Stream.HeartbeatInterval},
		{"stream.heartbeat_idle_threshold", s.Stream.HeartbeatIdleThresholdRaw, &s.Stream.HeartbeatIdleThreshold},
		{"transport.timeout", s.Transport.TimeoutRaw, &s.Transport.Timeout},
		{"store.prune_after", s.Store.PruneAfterRaw, &s.Store.PruneAfter},
	} {
		if f.raw == "" {
			continue
		}
		d, err := relay.ParseSeconds(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
