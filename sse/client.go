package sse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Interface compliance check.
var _ relay.Transport = (*Transport)(nil)

// Transport implements [relay.Transport] over plain HTTP.
type Transport struct {
	apiKey     string
	apiVersion string
	maxTokens  int
	httpClient *http.Client
}

// Option configures a [Transport].
type Option func(*Transport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Transport) { t.httpClient = hc }
}

// WithAPIVersion sets the API version path segment. Default is v1beta.
func WithAPIVersion(v string) Option {
	return func(t *Transport) { t.apiVersion = v }
}

// WithMaxTokens sets the output token limit used when a request leaves
// MaxTokens at zero. Default is 8192.
func WithMaxTokens(n int) Option {
	return func(t *Transport) { t.maxTokens = n }
}

// New creates a new SSE [Transport] with the given API key and options.
func New(apiKey string, opts ...Option) *Transport {
	t := &Transport{
		apiKey:     apiKey,
		apiVersion: defaultAPIVersion,
		maxTokens:  defaultMaxTokens,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Open posts req to endpoint and returns a Source reading the event stream.
func (t *Transport) Open(ctx context.Context, endpoint string, req relay.Request) (relay.Source, error) {
	body, err := BuildRequestBody(req, t.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("sse: %w: %w", relay.ErrConfig, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url(endpoint, req.Model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sse: %w: %w", relay.ErrConnect, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set(apiKeyHeader, t.apiKey)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyDoError(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	return newSource(ctx, resp.Body), nil
}

func (t *Transport) url(endpoint, model string) string {
	model = strings.TrimPrefix(model, "models/")
	return fmt.Sprintf("%s/%s/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(endpoint, "/"), t.apiVersion, model)
}

// BuildRequestBody encodes req as a generateContent request body. Partial
// text is sent as a trailing model turn. Exported for testing.
func BuildRequestBody(req relay.Request, defaultMax int) ([]byte, error) {
	body := []byte(`{"contents":[]}`)
	var err error
	for _, m := range req.Messages {
		role := "user"
		if m.Role == relay.RoleModel {
			role = "model"
		}
		if body, err = appendContent(body, role, m.Text); err != nil {
			return nil, err
		}
	}
	if req.Partial != "" {
		if body, err = appendContent(body, "model", req.Partial); err != nil {
			return nil, err
		}
	}
	if req.SystemInstruction != "" {
		if body, err = sjson.SetBytes(body, "systemInstruction.parts.0.text", req.SystemInstruction); err != nil {
			return nil, err
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMax
	}
	if body, err = sjson.SetBytes(body, "generationConfig.maxOutputTokens", maxTokens); err != nil {
		return nil, err
	}
	if req.Temperature != nil {
		if body, err = sjson.SetBytes(body, "generationConfig.temperature", *req.Temperature); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func appendContent(body []byte, role, text string) ([]byte, error) {
	return sjson.SetBytes(body, "contents.-1", map[string]any{
		"role":  role,
		"parts": []map[string]string{{"text": text}},
	})
}

// classifyDoError maps a failed HTTP round trip. Nothing was received, so
// unreachable hosts fail over and anything else is retried.
func classifyDoError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("sse: %w", err)
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return fmt.Errorf("sse: %w: %w", relay.ErrConnect, err)
	}
	return fmt.Errorf("sse: %w: %w", relay.ErrTransient, err)
}

func parseHTTPError(resp *http.Response) error {
	sentinel := relay.StatusError(resp.StatusCode)
	if sentinel == nil {
		sentinel = relay.ErrTransient
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sse: HTTP %d (failed to read body: %v): %w", resp.StatusCode, err, sentinel)
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return fmt.Errorf("sse: HTTP %d %s: %s: %w", resp.StatusCode,
			gjson.GetBytes(body, "error.status").String(), msg.String(), sentinel)
	}
	return fmt.Errorf("sse: HTTP %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), sentinel)
}
