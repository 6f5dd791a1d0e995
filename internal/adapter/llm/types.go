// Package llm provides LLM provider adapters and shared tooling.
package llm

import "context"

// ChatOptions tunes a single chat call.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatProvider is the outbound port to a language model: one prompt in,
// raw text out. Failures must be classifiable by message (see the retry
// package taxonomy).
type ChatProvider interface {
	Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error)
}

// Bound pairs a provider with fixed call options, exposing the
// prompt-only Chat shape the review pipeline consumes.
type Bound struct {
	Provider ChatProvider
	Options  ChatOptions
}

func (b Bound) Chat(ctx context.Context, prompt string) (string, error) {
	return b.Provider.Chat(ctx, prompt, b.Options)
}
