package sse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/tidwall/gjson"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// source implements [relay.Source] by parsing SSE events from an HTTP
// response body.
type source struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	ctx      context.Context
	finished bool // a finish reason was seen
	done     bool
}

// Interface compliance check.
var _ relay.Source = (*source)(nil)

func newSource(ctx context.Context, body io.ReadCloser) *source {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &source{
		body:    body,
		scanner: sc,
		ctx:     ctx,
	}
}

// NewSource reads increments from an already opened SSE body. Exported for
// testing.
func NewSource(ctx context.Context, body io.ReadCloser) relay.Source {
	return newSource(ctx, body)
}

// Next reads the next increment. It returns io.EOF once the stream ends
// after a finish reason; a stream that ends without one was cut off and
// reports a transient error.
func (s *source) Next() (relay.Increment, error) {
	if s.done {
		return relay.Increment{}, io.EOF
	}
	data, err := s.readSSEEvent()
	if err == io.EOF {
		s.done = true
		if !s.finished {
			return relay.Increment{}, fmt.Errorf("sse: unexpected end of stream: %w", relay.ErrTransient)
		}
		return relay.Increment{}, io.EOF
	}
	if err != nil {
		s.done = true
		if s.ctx.Err() != nil {
			return relay.Increment{}, fmt.Errorf("sse: %w", s.ctx.Err())
		}
		return relay.Increment{}, fmt.Errorf("sse: %w: %w", relay.ErrTransient, err)
	}
	inc, err := parseIncrement(data)
	if err != nil {
		s.done = true
		return relay.Increment{}, err
	}
	if inc.FinishReason != "" {
		s.finished = true
	}
	return inc, nil
}

// Close closes the underlying HTTP response body.
func (s *source) Close() error {
	s.done = true
	return s.body.Close()
}

// readSSEEvent reads lines until a complete SSE event is assembled and
// returns its data payload.
func (s *source) readSSEEvent() (string, error) {
	var dataBuf strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			// Empty line signals end of event.
			if dataBuf.Len() > 0 {
				return dataBuf.String(), nil
			}
			continue
		}

		if data, ok := strings.CutPrefix(line, "data:"); ok {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(data, " "))
		}
		// Ignore comments (lines starting with ':') and other fields.
	}

	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	if dataBuf.Len() > 0 {
		return dataBuf.String(), nil
	}
	return "", io.EOF
}

// parseIncrement maps one GenerateContentResponse payload to an increment.
func parseIncrement(data string) (relay.Increment, error) {
	var inc relay.Increment
	if !gjson.Valid(data) {
		return inc, fmt.Errorf("sse: invalid json %q: %w", truncate(data, 64), relay.ErrMalformedIncrement)
	}
	if e := gjson.Get(data, "error"); e.Exists() {
		return inc, fmt.Errorf("sse: stream error %d %s: %s: %w",
			e.Get("code").Int(), e.Get("status").String(), e.Get("message").String(), relay.ErrTransient)
	}
	if r := gjson.Get(data, "promptFeedback.blockReason"); r.Exists() && r.String() != "" {
		inc.FinishReason = relay.FinishSafety
		return inc, nil
	}

	cand := gjson.Get(data, "candidates.0")
	if !cand.Exists() {
		return inc, nil
	}
	parts := cand.Get("content.parts")
	if parts.Exists() && !parts.IsArray() {
		return inc, fmt.Errorf("sse: content.parts is not an array: %w", relay.ErrMalformedIncrement)
	}
	var b strings.Builder
	for _, p := range parts.Array() {
		if p.Get("thought").Bool() {
			continue
		}
		b.WriteString(p.Get("text").String())
	}
	inc.Text = b.String()

	citations := cand.Get("citationMetadata.citationSources")
	if !citations.Exists() {
		citations = cand.Get("citationMetadata.citations")
	}
	for _, c := range citations.Array() {
		inc.Citations = append(inc.Citations, relay.Citation{
			URI:        c.Get("uri").String(),
			Title:      c.Get("title").String(),
			License:    c.Get("license").String(),
			StartIndex: int(c.Get("startIndex").Int()),
			EndIndex:   int(c.Get("endIndex").Int()),
		})
	}

	inc.FinishReason = mapFinishReason(cand.Get("finishReason").String())
	return inc, nil
}

func mapFinishReason(raw string) relay.FinishReason {
	switch raw {
	case "", "FINISH_REASON_UNSPECIFIED":
		return ""
	case "STOP":
		return relay.FinishStop
	case "MAX_TOKENS":
		return relay.FinishLength
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return relay.FinishSafety
	case "RECITATION":
		return relay.FinishRecitation
	default:
		return relay.FinishUnknown
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
