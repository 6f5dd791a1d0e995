// Package pack decides how much of a file's diff fits a token budget and
// assembles the outbound request body.
package pack

import (
	"strings"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// Request body delimiters. These are part of the prompt contract with the
// model; the response parser relies on the model having seen them.
const (
	NewHunkDelimiter       = "---new_hunk---"
	OldHunkDelimiter       = "---old_hunk---"
	CommentChainsDelimiter = "---comment_chains---"
	EndChangeSection       = "---end_change_section---"
)

// SkipReasonDiffTooLarge is the disposition reported when not even one
// hunk fits the budget. Not an error.
const SkipReasonDiffTooLarge = "diff too large"

// TokenCounter estimates the token cost of a text fragment.
type TokenCounter func(text string) int

// Packer selects and serializes hunks under a token budget.
type Packer struct {
	count TokenCounter
}

// NewPacker creates a packer using the given token counter.
func NewPacker(counter TokenCounter) *Packer {
	return &Packer{count: counter}
}

// CalculateHunksToPack returns how many hunks, in original order, fit
// cumulatively under limit after baseTokens are accounted for. Packing
// stops at the first hunk that would exceed the limit; hunks are never
// reordered or split.
func (p *Packer) CalculateHunksToPack(hunks []domain.RenderedHunk, baseTokens, limit int) int {
	total := baseTokens
	packed := 0
	for _, h := range hunks {
		total += p.count(hunkSection(h))
		if total > limit {
			break
		}
		packed++
	}
	return packed
}

// Pack serializes the first count hunks into the delimited request body.
// A hunk's comment-chain text rides along only while it still fits the
// remaining budget; when it does not, the chain is dropped, not the hunk.
func (p *Packer) Pack(hunks []domain.RenderedHunk, chains map[int]string, count, baseTokens, limit int) string {
	if count > len(hunks) {
		count = len(hunks)
	}

	remaining := limit - baseTokens
	var sb strings.Builder

	for i := 0; i < count; i++ {
		section := hunkSection(hunks[i])
		remaining -= p.count(section)
		sb.WriteString(section)

		if chain, ok := chains[i]; ok && chain != "" {
			chainSection := chainSection(chain)
			if cost := p.count(chainSection); cost <= remaining {
				remaining -= cost
				sb.WriteString(chainSection)
			}
		}

		sb.WriteString(EndChangeSection)
		sb.WriteString("\n")
	}

	return sb.String()
}

func hunkSection(h domain.RenderedHunk) string {
	var sb strings.Builder
	sb.WriteString(NewHunkDelimiter)
	sb.WriteString("\n```\n")
	sb.WriteString(h.NewText)
	sb.WriteString("\n```\n")
	sb.WriteString(OldHunkDelimiter)
	sb.WriteString("\n```\n")
	sb.WriteString(h.OldText)
	sb.WriteString("\n```\n")
	return sb.String()
}

func chainSection(chain string) string {
	var sb strings.Builder
	sb.WriteString(CommentChainsDelimiter)
	sb.WriteString("\n```\n")
	sb.WriteString(chain)
	sb.WriteString("\n```\n")
	return sb.String()
}
