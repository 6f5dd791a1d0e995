package review

import (
	"fmt"
	"strings"
)

// summarizePromptHeader opens a summarize request. The keyword
// "Summarize" doubles as the cue the static provider keys off in tests.
const summarizePromptHeader = `Summarize the following code changes in at most three sentences.
Focus on intent and risk, not mechanics. Do not review line by line.
`

// reviewPromptHeader opens a review request and pins the response grammar
// the parser expects.
const reviewPromptHeader = `You are reviewing a pull request diff. Added and unchanged lines in each
new_hunk section carry "<line>: " prefixes; use those numbers when citing code.

Respond only with review blocks in this exact format, separated by lines
containing three dashes:

<start_line>-<end_line>:
<comment text>
---

Flag real defects: logic errors, race conditions, resource leaks, missing
error handling, security problems. Skip style nits. If a code suggestion
helps, include it in a fenced suggestion block without line-number prefixes.
If nothing warrants a comment, respond with the word LGTM and no blocks.
`

// BuildSummarizePrompt assembles a summarize request for one file.
func BuildSummarizePrompt(filename, fileSummary, packedDiff string) string {
	var sb strings.Builder
	sb.WriteString(summarizePromptHeader)
	fmt.Fprintf(&sb, "\nFile: %s\n\n", filename)
	if fileSummary != "" {
		fmt.Fprintf(&sb, "Prior context: %s\n\n", fileSummary)
	}
	sb.WriteString(packedDiff)
	return sb.String()
}

// BuildReviewPrompt assembles a review request for one file.
func BuildReviewPrompt(filename, fileSummary, packedDiff string) string {
	var sb strings.Builder
	sb.WriteString(reviewPromptHeader)
	fmt.Fprintf(&sb, "\nFile: %s\n", filename)
	if fileSummary != "" {
		fmt.Fprintf(&sb, "Change summary: %s\n", fileSummary)
	}
	sb.WriteString("\n")
	sb.WriteString(packedDiff)
	return sb.String()
}

// PromptBaseTokens measures the token cost of a prompt before any diff
// content is packed into it.
func PromptBaseTokens(counter func(string) int, filename, fileSummary string, reviewing bool) int {
	if reviewing {
		return counter(BuildReviewPrompt(filename, fileSummary, ""))
	}
	return counter(BuildSummarizePrompt(filename, fileSummary, ""))
}
