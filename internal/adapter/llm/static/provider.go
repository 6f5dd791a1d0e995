// Package static provides a canned chat provider that answers without
// calling any API. It backs --dry-run and orchestrator tests.
package static

import (
	"context"
	"strings"
	"sync"

	"github.com/reviewpilot/reviewpilot/internal/adapter/llm"
)

// Provider implements llm.ChatProvider with fixed responses.
type Provider struct {
	mu        sync.Mutex
	summary   string
	review    string
	prompts   []string
	callCount int
}

// NewProvider constructs a static provider. The review response should
// follow the line-range block grammar so the parser has something real to
// chew on.
func NewProvider() *Provider {
	return &Provider{
		summary: "Mechanical change; no behavioral risk spotted.",
		review:  "1-1:\nStatic note on the first changed line.\n",
	}
}

// SetReviewResponse overrides the canned review text.
func (p *Provider) SetReviewResponse(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.review = text
}

// Chat returns the canned summary for summarize prompts and the canned
// review otherwise, recording the prompt for inspection.
func (p *Provider) Chat(ctx context.Context, prompt string, opts llm.ChatOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	p.callCount++

	if strings.Contains(prompt, "Summarize") {
		return p.summary, nil
	}
	return p.review, nil
}

// CallCount returns how many chat calls were made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

// Prompts returns a copy of all prompts seen so far.
func (p *Provider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.prompts))
	copy(out, p.prompts)
	return out
}
