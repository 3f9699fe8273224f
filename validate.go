package relay

import "fmt"

// Validate checks universal constraints on Request. Transports may apply
// additional provider-specific validation.
func (r Request) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("request has no messages: %w", ErrConfig)
	}
	for i, m := range r.Messages {
		switch m.Role {
		case RoleUser, RoleModel:
		default:
			return fmt.Errorf("message %d has unknown role %q: %w", i, m.Role, ErrConfig)
		}
	}
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 2 {
			return fmt.Errorf("temperature must be in [0, 2], got %g: %w", *r.Temperature, ErrConfig)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d: %w", r.MaxTokens, ErrConfig)
	}
	return nil
}
