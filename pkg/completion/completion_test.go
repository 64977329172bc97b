package completion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_NewCompleter(t *testing.T) {
	factory := &Factory{}

	tests := []struct {
		provider  string
		shouldErr bool
	}{
		{"anthropic", false},
		{"openai", false},
		{"gemini", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			completer, err := factory.NewCompleter(Profile{Provider: tt.provider, APIKey: "sk-test"})
			if tt.shouldErr {
				assert.Error(t, err)
				assert.Nil(t, completer)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.provider, completer.Provider())
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"unavailable sentinel", unavailable("openai", errors.New("boom")), true},
		{"wrapped unavailable", fmt.Errorf("ask: %w", ErrUnavailable), true},
		{"connection reset", errors.New("read tcp: ECONNRESET"), true},
		{"timeout", errors.New("dial: ETIMEDOUT"), true},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("503 Service Unavailable"), true},
		{"bad request", errors.New("400 invalid model"), false},
		{"usage error", errors.New("session has been closed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestUnavailable_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := unavailable("anthropic", cause)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "anthropic")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUnavailable_CancellationStaysMatchable(t *testing.T) {
	err := unavailable("openai", context.Canceled)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}
