// Package gemini implements [relay.Transport] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK. Each endpoint is an API base URL
// with its own lazily created SDK client. Streaming uses the SDK's iter.Seq2
// iterator, wrapped into the pull-based [relay.Source] interface.
package gemini

const (
	defaultMaxTokens = 8192
	modelRole        = "model"
	userRole         = "user"
)
