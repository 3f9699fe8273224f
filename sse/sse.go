// Package sse implements [relay.Transport] for the Gemini REST streaming
// endpoint without the SDK.
//
// Requests are assembled with sjson and posted to
// {endpoint}/v1beta/models/{model}:streamGenerateContent?alt=sse. The
// response is read as a server-sent event stream, one JSON
// GenerateContentResponse per event, and picked apart with gjson.
package sse

const (
	defaultAPIVersion = "v1beta"
	defaultMaxTokens  = 8192
	apiKeyHeader      = "X-Goog-Api-Key"
)
