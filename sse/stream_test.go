package sse_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s relay.Source) ([]relay.Increment, error) {
	var incs []relay.Increment
	for {
		inc, err := s.Next()
		if err == io.EOF {
			return incs, nil
		}
		if err != nil {
			return incs, err
		}
		incs = append(incs, inc)
	}
}

func sourceFrom(body string) relay.Source {
	return sse.NewSource(context.Background(), io.NopCloser(strings.NewReader(body)))
}

func TestSource_SkipsThoughtsAndJoinsParts(t *testing.T) {
	t.Parallel()
	s := sourceFrom(`data: {"candidates":[{"content":{"parts":[{"text":"hmm","thought":true},{"text":"A"},{"text":"B"}]},"finishReason":"STOP"}]}

`)
	incs, err := collect(s)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	assert.Equal(t, relay.Increment{Text: "AB", FinishReason: relay.FinishStop}, incs[0])
}

func TestSource_IgnoresCommentsAndOtherFields(t *testing.T) {
	t.Parallel()
	s := sourceFrom(": keepalive\nevent: message\nid: 1\ndata: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"x\"}]},\"finishReason\":\"STOP\"}]}\n\n")
	incs, err := collect(s)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	assert.Equal(t, "x", incs[0].Text)
}

func TestSource_MultilineData(t *testing.T) {
	t.Parallel()
	s := sourceFrom("data: {\"candidates\":[{\"content\":\ndata: {\"parts\":[{\"text\":\"x\"}]},\"finishReason\":\"STOP\"}]}\n\n")
	incs, err := collect(s)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	assert.Equal(t, "x", incs[0].Text)
}

func TestSource_Citations(t *testing.T) {
	t.Parallel()
	s := sourceFrom(`data: {"candidates":[{"content":{"parts":[{"text":"q"}]},"citationMetadata":{"citationSources":[{"uri":"https://example.com","license":"MIT","startIndex":1,"endIndex":4}]},"finishReason":"STOP"}]}

`)
	incs, err := collect(s)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	assert.Equal(t, []relay.Citation{{URI: "https://example.com", License: "MIT", StartIndex: 1, EndIndex: 4}}, incs[0].Citations)
}

func TestSource_FinishReasons(t *testing.T) {
	t.Parallel()
	tests := map[string]relay.FinishReason{
		"STOP":       relay.FinishStop,
		"MAX_TOKENS": relay.FinishLength,
		"SAFETY":     relay.FinishSafety,
		"RECITATION": relay.FinishRecitation,
		"OTHER":      relay.FinishUnknown,
	}
	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			s := sourceFrom(`data: {"candidates":[{"finishReason":"` + raw + `"}]}` + "\n\n")
			inc, err := s.Next()
			require.NoError(t, err)
			assert.Equal(t, want, inc.FinishReason)
			assert.Empty(t, inc.Text)
		})
	}
}

func TestSource_BlockedPrompt(t *testing.T) {
	t.Parallel()
	s := sourceFrom(`data: {"promptFeedback":{"blockReason":"SAFETY"}}` + "\n\n")
	incs, err := collect(s)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	assert.Equal(t, relay.Increment{FinishReason: relay.FinishSafety}, incs[0])
}

func TestSource_MalformedJSON(t *testing.T) {
	t.Parallel()
	s := sourceFrom("data: {\"candidates\":[\n\n")
	_, err := s.Next()
	assert.ErrorIs(t, err, relay.ErrMalformedIncrement)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSource_PartsNotArray(t *testing.T) {
	t.Parallel()
	s := sourceFrom(`data: {"candidates":[{"content":{"parts":"oops"}}]}` + "\n\n")
	_, err := s.Next()
	assert.ErrorIs(t, err, relay.ErrMalformedIncrement)
}

func TestSource_InStreamErrorIsTransient(t *testing.T) {
	t.Parallel()
	s := sourceFrom(`data: {"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}` + "\n\n")
	_, err := s.Next()
	assert.ErrorIs(t, err, relay.ErrTransient)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestSource_TruncatedStreamIsTransient(t *testing.T) {
	t.Parallel()
	s := sourceFrom(`data: {"candidates":[{"content":{"parts":[{"text":"half"}]}}]}` + "\n\n")
	incs, err := collect(s)
	require.Len(t, incs, 1)
	assert.ErrorIs(t, err, relay.ErrTransient)
}

func TestSource_ReadErrorIsTransient(t *testing.T) {
	t.Parallel()
	body := io.MultiReader(
		strings.NewReader(`data: {"candidates":[{"content":{"parts":[{"text":"a"}]}}]}`+"\n\n"),
		iotest.ErrReader(errors.New("connection reset by peer")),
	)
	s := sse.NewSource(context.Background(), io.NopCloser(body))
	incs, err := collect(s)
	require.Len(t, incs, 1)
	assert.ErrorIs(t, err, relay.ErrTransient)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestSource_CloseClosesBody(t *testing.T) {
	t.Parallel()
	body := &closeRecorder{Reader: strings.NewReader("")}
	s := sse.NewSource(context.Background(), body)
	require.NoError(t, s.Close())
	assert.True(t, body.closed)

	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF)
}
