package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Message is one turn of the prompt context.
type Message struct {
	Role Role
	Text string
}

// Request carries the prompt context for one streaming session. It is owned
// by the caller and passed by value.
type Request struct {
	// SessionID correlates events, telemetry and checkpoints. The client
	// assigns a random id when empty.
	SessionID string

	Model             string // model ID; empty = Config.Model
	SystemInstruction string
	Messages          []Message
	MaxTokens         int      // 0 = provider default
	Temperature       *float64 // nil = provider default

	// Partial is text already delivered for this session. Transports send it
	// back as a trailing model turn so the provider continues from it instead
	// of starting over. Set by the session on reconnect and resume.
	Partial string
}

// Fingerprint identifies the prompt context of r: model, system
// instruction, messages and generation settings. SessionID and Partial are
// excluded. A checkpoint only resumes a request with the same fingerprint.
func (r Request) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%q %q %d ", r.Model, r.SystemInstruction, r.MaxTokens)
	if r.Temperature != nil {
		fmt.Fprintf(h, "%g", *r.Temperature)
	}
	for _, m := range r.Messages {
		fmt.Fprintf(h, "\n%q %q", m.Role, m.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}
