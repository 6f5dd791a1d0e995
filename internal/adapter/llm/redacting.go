package llm

import (
	"context"

	"github.com/reviewpilot/reviewpilot/internal/redaction"
)

// Redacting wraps a provider so every outbound prompt is scrubbed of
// secrets first. Responses pass through untouched.
type Redacting struct {
	inner  ChatProvider
	engine *redaction.Engine
}

// NewRedacting decorates provider with prompt scrubbing.
func NewRedacting(provider ChatProvider) *Redacting {
	return &Redacting{inner: provider, engine: redaction.NewEngine()}
}

func (r *Redacting) Chat(ctx context.Context, prompt string, opts ChatOptions) (string, error) {
	return r.inner.Chat(ctx, r.engine.Scrub(prompt), opts)
}
