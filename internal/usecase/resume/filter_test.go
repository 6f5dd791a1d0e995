package resume_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/usecase/resume"
	"github.com/reviewpilot/reviewpilot/internal/usecase/state"
)

func TestFilterFilesForResume_ColdStart(t *testing.T) {
	all := []string{"a.go", "b.go", "c.go"}
	assert.Equal(t, all, resume.FilterFilesForResume(all, nil))
}

func TestFilterFilesForResume_IntersectsPreservingOrder(t *testing.T) {
	s := state.CreateReviewState("abc123", []string{"a.go", "b.go", "c.go"})
	var err error
	s, err = state.UpdateFileStatus(s, "b.go", domain.FileStatusReviewed, state.Meta{})
	require.NoError(t, err)

	// d.go is new in this run and not tracked; it is not in the pending
	// intersection.
	all := []string{"c.go", "a.go", "d.go"}
	got := resume.FilterFilesForResume(all, &s)
	assert.Equal(t, []string{"c.go", "a.go"}, got)
}

func TestShouldResumeReview(t *testing.T) {
	s := state.CreateReviewState("abc123", []string{"a.go"})

	assert.False(t, resume.ShouldResumeReview(false, &s), "disabled")
	assert.False(t, resume.ShouldResumeReview(true, nil), "no state")
	assert.True(t, resume.ShouldResumeReview(true, &s), "work remaining")

	done, err := state.UpdateFileStatus(s, "a.go", domain.FileStatusReviewed, state.Meta{})
	require.NoError(t, err)
	done = state.UpdatePhase(done, domain.PhaseReviewing)
	assert.False(t, resume.ShouldResumeReview(true, &done), "nothing left to process")
}
