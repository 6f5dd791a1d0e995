package http_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	llmhttp "github.com/reviewpilot/reviewpilot/internal/adapter/llm/http"
	"github.com/reviewpilot/reviewpilot/internal/retry"
)

func TestTypeOf_PinnedTypeWins(t *testing.T) {
	// Body text alone would classify as unknown; the pinned type wins.
	err := llmhttp.NewRateLimitError("openai", "please slow down")
	assert.Equal(t, retry.ErrorRateLimit, llmhttp.TypeOf(err))
}

func TestTypeOf_WrappedError(t *testing.T) {
	inner := llmhttp.NewTokenLimitError("openai", "prompt too long")
	wrapped := fmt.Errorf("summarize main.go: %w", inner)
	assert.Equal(t, retry.ErrorTokenLimit, llmhttp.TypeOf(wrapped))
}

func TestTypeOf_FallsBackToClassifier(t *testing.T) {
	err := errors.New("request timed out")
	assert.Equal(t, retry.ErrorTimeout, llmhttp.TypeOf(err))
}

func TestTypeOf_Nil(t *testing.T) {
	assert.Equal(t, retry.ErrorUnknown, llmhttp.TypeOf(nil))
}

func TestError_Is(t *testing.T) {
	err := llmhttp.NewAPIError("openai", "bad request", 400)
	assert.ErrorIs(t, err, &llmhttp.Error{Type: retry.ErrorAPI})
	assert.NotErrorIs(t, err, &llmhttp.Error{Type: retry.ErrorTimeout})
}

func TestTruncateForLogging(t *testing.T) {
	short := "short response"
	assert.Equal(t, short, llmhttp.TruncateForLogging(short))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	got := llmhttp.TruncateForLogging(string(long))
	assert.Contains(t, got, "truncated, total length=500")
	assert.Less(t, len(got), 300)
}

func TestRedactAPIKey(t *testing.T) {
	assert.Equal(t, "", llmhttp.RedactAPIKey(""))
	assert.Equal(t, "****", llmhttp.RedactAPIKey("abcd"))
	assert.Equal(t, "****6789", llmhttp.RedactAPIKey("sk-123456789"))
}
