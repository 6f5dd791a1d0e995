package respond

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// blockMarkerPattern matches a line like "12-15:" that opens a review
// block. Trailing whitespace is tolerated.
var blockMarkerPattern = regexp.MustCompile(`^(\d+)-(\d+):\s*$`)

// echoedNumberPattern matches the "<n>: " prefixes the model sometimes
// echoes from the numbered input inside suggestion blocks.
var echoedNumberPattern = regexp.MustCompile(`^\d+: `)

// blockSeparator splits consecutive review blocks.
const blockSeparator = "---"

// ParseReviewResponse parses raw model text into reviews. The grammar is a
// sequence of blocks separated by "---" lines; each block opens with a
// "<start>-<end>:" marker and carries the comment body until the next
// marker or separator. Text before the first marker is discarded. Every
// parsed range is reconciled against the file's hunks, so output ranges
// always land on the diff. Output order matches block encounter order.
func ParseReviewResponse(response string, hunks []domain.HunkRange) []domain.Review {
	var reviews []domain.Review

	var current *domain.Review
	var body []string

	flush := func() {
		if current == nil {
			return
		}
		comment := sanitizeComment(strings.Join(body, "\n"))
		mapped := MapRange(current.StartLine, current.EndLine, hunks)
		if mapped.Note != "" {
			comment = mapped.Note + "\n\n" + comment
		}
		reviews = append(reviews, domain.Review{
			StartLine: mapped.StartLine,
			EndLine:   mapped.EndLine,
			Comment:   comment,
		})
		current = nil
		body = nil
	}

	for _, line := range strings.Split(response, "\n") {
		if m := blockMarkerPattern.FindStringSubmatch(line); m != nil {
			flush()
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			current = &domain.Review{StartLine: start, EndLine: end}
			continue
		}

		// The separator is matched after trimming: models pad the "---"
		// line with spaces often enough that an exact match drops blocks.
		if strings.TrimSpace(line) == blockSeparator {
			flush()
			continue
		}

		if current != nil {
			body = append(body, line)
		}
		// Lines before the first marker fall through and are dropped.
	}
	flush()

	return reviews
}

// sanitizeComment strips echoed line-number prefixes from lines inside
// ```suggestion and ```diff fences. The model copies them from the
// numbered new-hunk rendering; left in place they would corrupt the
// suggested code.
func sanitizeComment(comment string) string {
	lines := strings.Split(comment, "\n")
	inNumberedFence := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "```suggestion" || trimmed == "```diff":
			inNumberedFence = true
		case strings.HasPrefix(trimmed, "```"):
			inNumberedFence = false
		case inNumberedFence:
			lines[i] = echoedNumberPattern.ReplaceAllString(line, "")
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
