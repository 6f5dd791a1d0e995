package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// hunkHeaderPattern matches a unified-diff hunk header at the start of a
// line, e.g. "@@ -10,7 +10,8 @@ func example() {".
var hunkHeaderPattern = regexp.MustCompile(`(?m)^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// edgeContextLines is the number of unnumbered context lines kept at each
// end of a hunk that contains additions.
const edgeContextLines = 3

// SplitPatch splits a raw patch into per-hunk substrings. Each substring
// starts at a hunk header and runs to the next header or end of input, so
// concatenating the results reconstructs the input. A patch with no hunk
// headers yields an empty slice.
func SplitPatch(patch string) []string {
	matches := hunkHeaderPattern.FindAllStringIndex(patch, -1)
	if len(matches) == 0 {
		return nil
	}

	hunks := make([]string, 0, len(matches))
	for i, m := range matches {
		end := len(patch)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		hunks = append(hunks, patch[m[0]:end])
	}
	return hunks
}

// ParseHunkRange extracts the old and new line ranges from a hunk's header.
// An omitted length counts as 1. Returns ok=false if the hunk has no header.
func ParseHunkRange(hunk string) (domain.HunkRange, bool) {
	m := hunkHeaderPattern.FindStringSubmatch(hunk)
	if m == nil {
		return domain.HunkRange{}, false
	}

	oldStart, oldLen := atoiRange(m[1], m[2])
	newStart, newLen := atoiRange(m[3], m[4])

	return domain.HunkRange{
		OldStart: oldStart,
		OldEnd:   oldStart + oldLen - 1,
		NewStart: newStart,
		NewEnd:   newStart + newLen - 1,
	}, true
}

// RenderHunk renders a hunk into old and new text blocks. Deleted lines go
// to the old block only; added lines go to the new block prefixed with
// their new-file line number; context lines go to both. Context lines in
// the new block are numbered unless they sit in the edge window of a hunk
// that contains additions. Returns ok=false for a hunk without a header.
func RenderHunk(hunk string) (domain.RenderedHunk, bool) {
	rng, ok := ParseHunkRange(hunk)
	if !ok {
		return domain.RenderedHunk{}, false
	}

	body := hunkBody(hunk)
	hasAdditions := false
	for _, line := range body {
		if strings.HasPrefix(line, "+") {
			hasAdditions = true
			break
		}
	}

	var oldText, newText strings.Builder
	newLine := rng.NewStart
	total := len(body)

	for i, line := range body {
		switch {
		case strings.HasPrefix(line, "-"):
			oldText.WriteString(line[1:])
			oldText.WriteByte('\n')
		case strings.HasPrefix(line, "+"):
			fmt.Fprintf(&newText, "%d: %s\n", newLine, line[1:])
			newLine++
		default:
			content := strings.TrimPrefix(line, " ")
			oldText.WriteString(content)
			oldText.WriteByte('\n')

			// 1-based body position decides edge membership.
			pos := i + 1
			numbered := !hasAdditions || (pos > edgeContextLines && pos <= total-edgeContextLines)
			if numbered {
				fmt.Fprintf(&newText, "%d: %s\n", newLine, content)
			} else {
				newText.WriteString(content)
				newText.WriteByte('\n')
			}
			newLine++
		}
	}

	return domain.RenderedHunk{
		Range:   rng,
		OldText: strings.TrimSuffix(oldText.String(), "\n"),
		NewText: strings.TrimSuffix(newText.String(), "\n"),
	}, true
}

// Decompose splits a file patch and renders every well-formed hunk,
// preserving source order. Hunks with malformed headers are dropped.
func Decompose(patch string) []domain.RenderedHunk {
	raw := SplitPatch(patch)
	rendered := make([]domain.RenderedHunk, 0, len(raw))
	for _, h := range raw {
		r, ok := RenderHunk(h)
		if !ok {
			continue
		}
		rendered = append(rendered, r)
	}
	return rendered
}

// hunkBody returns the lines after the hunk header, excluding the trailing
// empty line a final newline produces and "\ No newline" markers.
func hunkBody(hunk string) []string {
	idx := strings.IndexByte(hunk, '\n')
	if idx < 0 {
		return nil
	}

	lines := strings.Split(hunk[idx+1:], "\n")
	body := make([]string, 0, len(lines))
	for i, line := range lines {
		if line == "" && i == len(lines)-1 {
			continue
		}
		if strings.HasPrefix(line, "\\ ") {
			continue
		}
		body = append(body, line)
	}
	return body
}

func atoiRange(start, length string) (int, int) {
	s, _ := strconv.Atoi(start)
	n := 1
	if length != "" {
		n, _ = strconv.Atoi(length)
	}
	return s, n
}
