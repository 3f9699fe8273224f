package relay

import (
	"context"
	"io"
	"iter"
	"sync"
)

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving events.
	StreamStateComplete                     // The complete event was delivered.
	StreamStateFailed                       // A fatal error event was delivered.
	StreamStateClosed                       // Close() called before a terminal event.
)

// Stream is the consumer side of one session. It uses a pull-based
// iterator pattern: each Next blocks until the session produces the next
// event, so the session never runs ahead of the consumer.
//
// After the terminal event Next returns io.EOF. A Stream is single-use and
// not safe for concurrent Next calls; Close may be called from any
// goroutine. Callers must Close the stream (typically with defer) unless
// they drain it to io.EOF; Close releases the transport and stops the
// heartbeat timer before returning.
type Stream struct {
	id     string
	events chan Event
	closed chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	acc    Accumulator

	mu    sync.Mutex
	state StreamState
}

func newStream(id string, cancel context.CancelFunc) *Stream {
	return &Stream{
		id:     id,
		events: make(chan Event),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// SessionID returns the correlation id of the session.
func (s *Stream) SessionID() string {
	return s.id
}

// Next returns the next event. It returns io.EOF after the terminal event
// and ErrStreamClosed after Close.
func (s *Stream) Next() (Event, error) {
	switch s.State() {
	case StreamStateComplete, StreamStateFailed:
		return nil, io.EOF
	case StreamStateClosed:
		return nil, ErrStreamClosed
	}

	e, ok := <-s.events
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		select {
		case <-s.closed:
			return nil, ErrStreamClosed
		default:
			return nil, io.EOF
		}
	}
	s.acc.Ingest(e)
	switch {
	case !IsTerminal(e):
		s.state = StreamStateStreaming
	case isComplete(e):
		s.state = StreamStateComplete
	default:
		s.state = StreamStateFailed
	}
	return e, nil
}

// All returns an iterator over the remaining events. Breaking out of the
// loop closes the stream.
func (s *Stream) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		defer s.Close()
		for {
			e, err := s.Next()
			if err != nil {
				return
			}
			if !yield(e) {
				return
			}
		}
	}
}

// State returns the current stream state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the text of the chunks delivered so far, up to the first
// sequence gap.
func (s *Stream) Text() string {
	return s.acc.Snapshot()
}

// Close abandons the stream. It interrupts any pending read or backoff
// sleep and returns once the transport is released.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.cancel()
	})
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StreamStateNew || s.state == StreamStateStreaming {
		s.state = StreamStateClosed
	}
	return nil
}

// send delivers e to the consumer. It returns false once the stream is
// closed.
func (s *Stream) send(e Event) bool {
	select {
	case s.events <- e:
		return true
	case <-s.closed:
		return false
	}
}

// produce runs the session and its heartbeat monitor. The heartbeat stops
// before the terminal event is sent, so nothing follows it.
func (s *Stream) produce(ctx context.Context, sess *session) {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	var wg sync.WaitGroup
	if sess.heartbeat != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.heartbeat.run(hbCtx, func(e Event) bool {
				select {
				case s.events <- e:
					return true
				case <-s.closed:
					return false
				case <-hbCtx.Done():
					return false
				}
			})
		}()
	}

	term := sess.run(ctx, s.send)
	stopHeartbeat()
	wg.Wait()
	if term != nil {
		s.send(term)
	}
}

func isComplete(e Event) bool {
	_, ok := e.(EventComplete)
	return ok
}
