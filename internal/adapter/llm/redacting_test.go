package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureProvider struct {
	prompt string
}

func (c *captureProvider) Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error) {
	c.prompt = prompt
	return "ok", nil
}

func TestRedactingScrubsPrompt(t *testing.T) {
	capture := &captureProvider{}
	provider := NewRedacting(capture)

	out, err := provider.Chat(context.Background(),
		"diff adds key sk-abcdefghijklmnopqrstuvwxyz123456 to config", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.NotContains(t, capture.prompt, "sk-abcdefghijklmnopqrstuvwxyz123456")
	assert.Contains(t, capture.prompt, "<REDACTED:")
}

func TestBoundForwardsOptions(t *testing.T) {
	capture := &captureProvider{}
	bound := Bound{Provider: capture, Options: ChatOptions{Model: "gpt-4o-mini"}}

	out, err := bound.Chat(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "hello", capture.prompt)
}
