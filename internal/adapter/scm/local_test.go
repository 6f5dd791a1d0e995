package scm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

func TestLocalCollectsComments(t *testing.T) {
	source := StaticDiff{Diff: domain.Diff{
		ToCommitHash: "abc",
		Files:        []domain.FileDiff{{Path: "a.go", Patch: "@@ -1,1 +1,1 @@\n-a\n+b\n"}},
	}}
	local := NewLocal(source)
	ctx := context.Background()

	d, err := local.FetchDiff(ctx, "main", "feature")
	require.NoError(t, err)
	assert.Equal(t, "abc", d.ToCommitHash)

	chains, err := local.CommentChains(ctx, "a.go")
	require.NoError(t, err)
	assert.Nil(t, chains)

	require.NoError(t, local.PostReviewComment(ctx, domain.ReviewComment{
		Filename: "a.go", StartLine: 1, EndLine: 1, Text: "first",
	}))
	require.NoError(t, local.PostReviewComment(ctx, domain.ReviewComment{
		Filename: "a.go", StartLine: 2, EndLine: 3, Text: "second",
	}))

	comments := local.Comments()
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "second", comments[1].Text)

	// The returned slice is a copy.
	comments[0].Text = "mutated"
	assert.Equal(t, "first", local.Comments()[0].Text)
}
