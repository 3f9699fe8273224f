package relay

import "context"

// Transport is a strategy interface over one provider or region.
//
// Open connects to endpoint and returns a Source of raw increments. It must
// fail before yielding anything, with an error wrapping ErrConnect, when the
// endpoint is unreachable or rejects the request; the session fails over on
// those errors instead of retrying. Other Open errors are retried with
// backoff against the same endpoint.
//
// ctx governs the returned Source: once ctx is done, a pending Next must
// return promptly.
type Transport interface {
	Open(ctx context.Context, endpoint string, req Request) (Source, error)
}

// Source is a lazy, finite sequence of increments holding one network
// resource. Next returns io.EOF on a clean end of stream. Errors from Next
// after at least one increment are mid-stream failures; they wrap
// ErrMalformedIncrement when the provider sent unparseable data and are
// otherwise treated as transient.
//
// Close releases the resource. The session calls it exactly once, from the
// goroutine that calls Next.
type Source interface {
	Next() (Increment, error)
	Close() error
}

// Increment is one unit of provider output before normalization. An
// increment with empty Text and no Citations carries only metadata and does
// not produce a chunk.
type Increment struct {
	Text         string
	Citations    []Citation
	FinishReason FinishReason // set when the provider reports one
}
