// Command relay streams a model response through a resilient session,
// writing text to stdout and heartbeats, retries and failures to stderr.
//
// Usage:
//
//	GEMINI_API_KEY=gk-... relay [flags] [prompt]
//	echo "prompt" | relay [flags]
//
// Flags:
//
//	-config string      Path to a YAML settings file
//	-model string       Model ID (default gemini-2.5-flash)
//	-endpoint string    Primary endpoint base URL
//	-fallback string    Comma-separated fallback endpoint base URLs
//	-transport string   Transport: gemini, sse (default gemini)
//	-session string     Session id; reusing one resumes from its checkpoint
//	-store string       Checkpoint store: json, sqlite (default none)
//	-checkpoint string  Checkpoint directory (json) or database file (sqlite)
//	-nats-url string    Publish telemetry to this NATS server
//	-system string      System instruction
//	-api-key string     API key (overrides GEMINI_API_KEY)
//	-log-level string   debug, info, warn, error (default warn)
//
// A .env file in the working directory is loaded before flags are read.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fwojciec/relay"
	relaynats "github.com/fwojciec/relay/nats"
	relayyaml "github.com/fwojciec/relay/yaml"
	"github.com/joho/godotenv"
)

const (
	defaultModel    = "gemini-2.5-flash"
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	envAPIKey       = "GEMINI_API_KEY"
)

func main() {
	// A missing .env is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

// options holds parsed flags.
type options struct {
	configPath string
	model      string
	endpoint   string
	fallback   string
	transport  string
	session    string
	store      string
	checkpoint string
	natsURL    string
	system     string
	apiKey     string
	logLevel   string
	prompt     string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to a YAML settings file")
	fs.StringVar(&o.model, "model", "", "Model ID")
	fs.StringVar(&o.endpoint, "endpoint", "", "Primary endpoint base URL")
	fs.StringVar(&o.fallback, "fallback", "", "Comma-separated fallback endpoint base URLs")
	fs.StringVar(&o.transport, "transport", "", "Transport: gemini, sse")
	fs.StringVar(&o.session, "session", "", "Session id; reusing one resumes from its checkpoint")
	fs.StringVar(&o.store, "store", "", "Checkpoint store: json, sqlite")
	fs.StringVar(&o.checkpoint, "checkpoint", "", "Checkpoint directory (json) or database file (sqlite)")
	fs.StringVar(&o.natsURL, "nats-url", "", "Publish telemetry to this NATS server")
	fs.StringVar(&o.system, "system", "", "System instruction")
	fs.StringVar(&o.apiKey, "api-key", "", "API key (overrides "+envAPIKey+")")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.prompt = strings.Join(fs.Args(), " ")
	return o, nil
}

func run(ctx context.Context, args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	settings := &relayyaml.Settings{}
	if opts.configPath != "" {
		if settings, err = relayyaml.Load(opts.configPath, getenv); err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
	}

	level, err := parseLevel(firstNonEmpty(opts.logLevel, settings.Logging.Level))
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(stderr, level))

	cfg, err := resolveConfig(opts, settings, getenv)
	if err != nil {
		return err
	}

	transport, err := resolveTransport(
		firstNonEmpty(opts.transport, settings.Transport.Kind),
		firstNonEmpty(opts.apiKey, settings.Transport.APIKey, getenv(envAPIKey)),
		settings.Transport.Timeout,
	)
	if err != nil {
		return err
	}

	clientOpts := []relay.Option{relay.WithLogger(slog.Default().With("component", "relay"))}

	storeKind := firstNonEmpty(opts.store, settings.Store.Kind)
	storePath := firstNonEmpty(opts.checkpoint, settings.Store.Path)
	store, closeStore, err := openStore(ctx, storeKind, storePath, settings.Store.PruneAfter)
	if err != nil {
		return err
	}
	defer closeStore()
	if store != nil {
		clientOpts = append(clientOpts, relay.WithCheckpointStore(store))
	}

	if url := firstNonEmpty(opts.natsURL, settings.Telemetry.NATSURL); url != "" {
		conn, err := relaynats.Connect(url)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer conn.Drain()
		var natsOpts []relaynats.Option
		if settings.Telemetry.Subject != "" {
			natsOpts = append(natsOpts, relaynats.WithSubjectPrefix(settings.Telemetry.Subject))
		}
		clientOpts = append(clientOpts, relay.WithTelemetry(relaynats.New(conn, natsOpts...)))
	}

	prompt, err := readPrompt(opts.prompt, stdin)
	if err != nil {
		return err
	}

	client := relay.NewClient(transport, clientOpts...)
	s, err := client.Stream(ctx, relay.Request{
		SessionID:         opts.session,
		SystemInstruction: opts.system,
		Messages:          []relay.Message{{Role: relay.RoleUser, Text: prompt}},
	}, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	return render(s, stdout, stderr)
}

// resolveConfig layers defaults, the settings file, environment overrides
// and flags, in that order.
func resolveConfig(opts options, settings *relayyaml.Settings, getenv func(string) string) (relay.Config, error) {
	cfg := settings.Apply(relay.DefaultConfig(defaultModel, defaultEndpoint))
	cfg, err := cfg.WithEnv(getenv)
	if err != nil {
		return relay.Config{}, err
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.endpoint != "" {
		cfg.PrimaryEndpoint = opts.endpoint
	}
	if opts.fallback != "" {
		cfg.FallbackEndpoints = relay.SplitCSV(opts.fallback)
	}
	return cfg, cfg.Validate()
}

// readPrompt returns arg, or all of stdin when arg is empty.
func readPrompt(arg string, stdin io.Reader) (string, error) {
	if arg != "" {
		return arg, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt: pass it as an argument or on stdin")
	}
	return prompt, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
