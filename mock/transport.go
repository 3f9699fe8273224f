// Package mock provides test doubles for relay interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.Transport = (*Transport)(nil)
	_ relay.Source    = (*Source)(nil)
)

// Transport is a test double for relay.Transport.
// Set OpenFn before calling Open.
type Transport struct {
	OpenFn func(ctx context.Context, endpoint string, req relay.Request) (relay.Source, error)
}

// Open delegates to OpenFn.
func (t *Transport) Open(ctx context.Context, endpoint string, req relay.Request) (relay.Source, error) {
	return t.OpenFn(ctx, endpoint, req)
}

// Source is a test double for relay.Source.
// NextFn panics when nil to catch missing setup. CloseFn is nil-safe
// because the session always closes the sources it opens.
type Source struct {
	NextFn  func() (relay.Increment, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Source) Next() (relay.Increment, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Source) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}
