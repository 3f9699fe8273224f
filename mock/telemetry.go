package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Telemetry = (*Telemetry)(nil)

// Telemetry is a test double for relay.Telemetry. Both methods are nil-safe
// because most tests do not care about telemetry.
type Telemetry struct {
	RecordRetryFn   func(ctx context.Context, r relay.RetryRecord)
	RecordOutcomeFn func(ctx context.Context, r relay.OutcomeRecord)
}

// RecordRetry delegates to RecordRetryFn.
func (t *Telemetry) RecordRetry(ctx context.Context, r relay.RetryRecord) {
	if t.RecordRetryFn != nil {
		t.RecordRetryFn(ctx, r)
	}
}

// RecordOutcome delegates to RecordOutcomeFn.
func (t *Telemetry) RecordOutcome(ctx context.Context, r relay.OutcomeRecord) {
	if t.RecordOutcomeFn != nil {
		t.RecordOutcomeFn(ctx, r)
	}
}
