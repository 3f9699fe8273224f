package relay

// FinishReason indicates why the provider stopped generating.
type FinishReason string

const (
	FinishStop       FinishReason = "stop"
	FinishLength     FinishReason = "length"
	FinishSafety     FinishReason = "safety"
	FinishRecitation FinishReason = "recitation"
	FinishUnknown    FinishReason = "unknown"
)
