// Package respond turns raw model output into structured reviews anchored
// to real diff hunks.
package respond

import (
	"fmt"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// MappedRange is a comment range reconciled with the file's hunks. Note is
// non-empty when the range had to be adjusted.
type MappedRange struct {
	StartLine   int
	EndLine     int
	Note        string
	WithinPatch bool
}

// MapRange reconciles a model-reported line range with the file's hunk
// new-side ranges. A range fully inside one hunk passes through unchanged.
// A partial overlap snaps to the hunk with the greatest overlap (first one
// wins ties). No overlap at all anchors to the file's first hunk. Given at
// least one hunk the function is total.
func MapRange(startLine, endLine int, hunks []domain.HunkRange) MappedRange {
	if len(hunks) == 0 {
		return MappedRange{StartLine: startLine, EndLine: endLine, WithinPatch: true}
	}

	requestedLength := endLine - startLine + 1

	bestIdx := -1
	bestOverlap := 0
	for i, h := range hunks {
		overlap := intersection(startLine, endLine, h.NewStart, h.NewEnd)
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestIdx = i
		}
	}

	if bestOverlap == requestedLength {
		return MappedRange{StartLine: startLine, EndLine: endLine, WithinPatch: true}
	}

	if bestIdx >= 0 {
		best := hunks[bestIdx]
		return MappedRange{
			StartLine: best.NewStart,
			EndLine:   best.NewEnd,
			Note: fmt.Sprintf("Note: the original comment range %d-%d extended outside the diff and was remapped to the closest hunk.",
				startLine, endLine),
		}
	}

	first := hunks[0]
	return MappedRange{
		StartLine: first.NewStart,
		EndLine:   first.NewEnd,
		Note: fmt.Sprintf("Note: no overlapping patch found for the original comment range %d-%d; anchored to the file's first hunk.",
			startLine, endLine),
	}
}

func intersection(aStart, aEnd, bStart, bEnd int) int {
	low := aStart
	if bStart > low {
		low = bStart
	}
	high := aEnd
	if bEnd < high {
		high = bEnd
	}
	if high < low {
		return 0
	}
	return high - low + 1
}
