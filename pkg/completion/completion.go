package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirel/converse/pkg/transcript"
)

// ErrUnavailable indicates a transport or provider failure. Callers may
// safely retry the originating Ask because no assistant turn was recorded.
var ErrUnavailable = errors.New("completion collaborator unavailable")

// Completer produces an assistant response for a window of conversation
// turns. Implementations wrap a concrete model provider.
type Completer interface {
	// Complete sends the context window and returns the assistant text.
	Complete(ctx context.Context, turns []transcript.Turn, opts Options) (string, error)

	// Provider returns the provider name.
	Provider() string
}

// Options contains per-request parameters passed through to the provider.
// The session imposes no timeout of its own; Timeout is forwarded here.
type Options struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// Profile carries the credentials and provider selection for a completer.
type Profile struct {
	Provider string `json:"provider"` // "anthropic", "openai"
	APIKey   string `json:"api_key"`
}

// Factory creates completers from profiles.
type Factory struct{}

// NewCompleter creates a completer for the profile's provider.
func (f *Factory) NewCompleter(profile Profile) (Completer, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicCompleter(profile.APIKey), nil
	case "openai":
		return NewOpenAICompleter(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}

// unavailable wraps a provider error as ErrUnavailable. The cause stays
// in the chain so callers can still match it, a cancellation in particular.
func unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, provider, err)
}

// IsRetryable reports whether an error is a transient failure that a higher
// layer may retry. The session itself never retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") ||
		strings.Contains(msg, "connection refused") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}

// withTimeout derives a request context when a timeout is configured.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
