package gemini

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Transport = (*Transport)(nil)

// Transport implements [relay.Transport] for the Google Gemini API.
type Transport struct {
	apiKey     string
	httpClient *http.Client
	apiVersion string
	maxTokens  int

	mu      sync.Mutex
	clients map[string]*genai.Client // keyed by endpoint
}

// Option configures a [Transport].
type Option func(*Transport)

// WithHTTPClient sets the HTTP client used for every endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithAPIVersion overrides the SDK's default API version.
func WithAPIVersion(v string) Option {
	return func(t *Transport) { t.apiVersion = v }
}

// WithMaxTokens sets the output token limit used when a request leaves
// MaxTokens at zero. Default is 8192.
func WithMaxTokens(n int) Option {
	return func(t *Transport) { t.maxTokens = n }
}

// New creates a Gemini [Transport] authenticating with apiKey.
func New(apiKey string, opts ...Option) *Transport {
	t := &Transport{
		apiKey:    apiKey,
		maxTokens: defaultMaxTokens,
		clients:   make(map[string]*genai.Client),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Open starts a streaming generation against endpoint. The first response
// is pulled before Open returns so connect failures surface here.
func (t *Transport) Open(ctx context.Context, endpoint string, req relay.Request) (relay.Source, error) {
	gc, err := t.client(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	contents, config := ConvertRequest(req, t.maxTokens)
	return NewSource(ctx, gc.Models.GenerateContentStream(ctx, req.Model, contents, config))
}

func (t *Transport) client(ctx context.Context, endpoint string) (*genai.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gc, ok := t.clients[endpoint]; ok {
		return gc, nil
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     t.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: t.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    endpoint,
			APIVersion: t.apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w: %w", relay.ErrConfig, err)
	}
	t.clients[endpoint] = gc
	return gc, nil
}

// ConvertRequest converts a relay Request to genai contents and config.
// Exported for testing.
func ConvertRequest(req relay.Request, defaultMax int) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		role := userRole
		if m.Role == relay.RoleModel {
			role = modelRole
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	if req.Partial != "" {
		contents = append(contents, &genai.Content{
			Role:  modelRole,
			Parts: []*genai.Part{{Text: req.Partial}},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMax
	}
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}
	if req.Temperature != nil {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}
	return contents, config
}
