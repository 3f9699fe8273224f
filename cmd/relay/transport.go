package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/gemini"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/fwojciec/relay/sqlite"
	"github.com/fwojciec/relay/sse"
	relayyaml "github.com/fwojciec/relay/yaml"
)

// resolveTransport constructs the transport. All env var values are passed
// in as parameters; env is only read in main().
func resolveTransport(kind, apiKey string, timeout time.Duration) (relay.Transport, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set (use -api-key flag or environment variable)", envAPIKey)
	}
	hc := httpClient(timeout)
	switch kind {
	case "", relayyaml.TransportGemini:
		return gemini.New(apiKey, gemini.WithHTTPClient(hc)), nil
	case relayyaml.TransportSSE:
		return sse.New(apiKey, sse.WithHTTPClient(hc)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q: must be %q or %q", kind, relayyaml.TransportGemini, relayyaml.TransportSSE)
	}
}

// httpClient bounds the wait for response headers only; a whole-request
// timeout would cut long streams.
func httpClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: tr}
}

// openStore opens the configured checkpoint store. The returned close
// function is always safe to call.
func openStore(ctx context.Context, kind, path string, pruneAfter time.Duration) (relay.CheckpointStore, func(), error) {
	noop := func() {}
	switch kind {
	case relayyaml.StoreNone:
		return nil, noop, nil
	case relayyaml.StoreJSON:
		if path == "" {
			return nil, noop, fmt.Errorf("json store needs -checkpoint directory")
		}
		return relayjson.NewStore(path), noop, nil
	case relayyaml.StoreSQLite:
		if path == "" {
			return nil, noop, fmt.Errorf("sqlite store needs -checkpoint database path")
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, noop, fmt.Errorf("open checkpoint store: %w", err)
		}
		if pruneAfter > 0 {
			if _, err := s.Prune(ctx, time.Now().Add(-pruneAfter)); err != nil {
				s.Close()
				return nil, noop, err
			}
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store %q: must be %q or %q", kind, relayyaml.StoreJSON, relayyaml.StoreSQLite)
	}
}
