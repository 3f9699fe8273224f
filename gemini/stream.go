package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"strings"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// source implements [relay.Source] by wrapping the genai SDK's streaming
// iterator.
type source struct {
	ctx   context.Context
	pull  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	first *genai.GenerateContentResponse // pulled by NewSource, not yet returned
	done  bool
}

// Interface compliance check.
var _ relay.Source = (*source)(nil)

// NewSource wraps seq and pulls its first response. Errors on the first
// pull are classified as connect or transient failures and the iterator is
// released. Exported for testing.
func NewSource(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) (relay.Source, error) {
	next, stop := iter.Pull2(seq)
	s := &source{ctx: ctx, pull: next, stop: stop}
	resp, err, ok := next()
	switch {
	case !ok:
		s.done = true
	case err != nil:
		stop()
		return nil, classifyOpen(ctx, err)
	default:
		s.first = resp
	}
	return s, nil
}

func (s *source) Next() (relay.Increment, error) {
	if s.first != nil {
		resp := s.first
		s.first = nil
		return convertResponse(resp), nil
	}
	if s.done {
		return relay.Increment{}, io.EOF
	}
	resp, err, ok := s.pull()
	if !ok {
		s.done = true
		return relay.Increment{}, io.EOF
	}
	if err != nil {
		s.done = true
		return relay.Increment{}, classifyStream(s.ctx, err)
	}
	return convertResponse(resp), nil
}

func (s *source) Close() error {
	s.done = true
	s.first = nil
	s.stop()
	return nil
}

// convertResponse flattens the first candidate of resp into an increment.
// Thought parts are not part of the answer text and are skipped.
func convertResponse(resp *genai.GenerateContentResponse) relay.Increment {
	var inc relay.Increment
	if resp == nil {
		return inc
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		inc.FinishReason = relay.FinishSafety
		return inc
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return inc
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			b.WriteString(p.Text)
		}
		inc.Text = b.String()
	}
	if cand.CitationMetadata != nil {
		for _, c := range cand.CitationMetadata.Citations {
			if c == nil {
				continue
			}
			inc.Citations = append(inc.Citations, relay.Citation{
				URI:        c.URI,
				Title:      c.Title,
				License:    c.License,
				StartIndex: int(c.StartIndex),
				EndIndex:   int(c.EndIndex),
			})
		}
	}
	inc.FinishReason = mapFinishReason(cand.FinishReason)
	return inc
}

func mapFinishReason(r genai.FinishReason) relay.FinishReason {
	switch r {
	case "", genai.FinishReasonUnspecified:
		return ""
	case genai.FinishReasonStop:
		return relay.FinishStop
	case genai.FinishReasonMaxTokens:
		return relay.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return relay.FinishSafety
	case genai.FinishReasonRecitation:
		return relay.FinishRecitation
	default:
		return relay.FinishUnknown
	}
}

// classifyOpen maps an error from the first pull onto the relay taxonomy.
func classifyOpen(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if sentinel := relay.StatusError(apiErr.Code); sentinel != nil {
			return fmt.Errorf("gemini: HTTP %d: %w: %w", apiErr.Code, sentinel, err)
		}
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return fmt.Errorf("gemini: %w: %w", relay.ErrConnect, err)
	}
	return fmt.Errorf("gemini: %w: %w", relay.ErrTransient, err)
}

// classifyStream maps a mid-stream error. Once data has flowed every
// failure is worth a reconnect.
func classifyStream(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	return fmt.Errorf("gemini: %w: %w", relay.ErrTransient, err)
}
