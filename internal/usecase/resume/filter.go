// Package resume decides how much of a prior run's work the current run
// can skip, based on persisted review state.
package resume

import (
	"github.com/reviewpilot/reviewpilot/internal/usecase/state"
)

// FilterFilesForResume returns the subset of allFiles still needing work.
// A nil state is a cold start and returns allFiles unchanged. Otherwise
// the result is the intersection of allFiles with the state's pending
// work, preserving allFiles' original order.
func FilterFilesForResume(allFiles []string, st *state.ReviewState) []string {
	if st == nil {
		return allFiles
	}

	pending := make(map[string]bool)
	for _, f := range state.GetFilesToProcess(*st) {
		pending[f] = true
	}

	filtered := make([]string, 0, len(allFiles))
	for _, f := range allFiles {
		if pending[f] {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// ShouldResumeReview reports whether a prior run should be continued.
// Resume is off when disabled or with no usable state; otherwise it is on
// exactly when the state still has files to process.
func ShouldResumeReview(enabled bool, st *state.ReviewState) bool {
	if !enabled || st == nil {
		return false
	}
	return len(state.GetFilesToProcess(*st)) > 0
}
