// Package scm provides source-control backends for the review pipeline.
package scm

import (
	"context"
	"sync"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// DiffSource yields the diff under review.
type DiffSource interface {
	FetchDiff(ctx context.Context, baseRef, targetRef string) (domain.Diff, error)
}

// Local reviews without a remote: diffs come from a DiffSource and
// comments are collected in memory for the report writer. There are no
// discussion threads in local mode.
type Local struct {
	source DiffSource

	mu       sync.Mutex
	comments []domain.ReviewComment
}

// NewLocal wraps a diff source for local review.
func NewLocal(source DiffSource) *Local {
	return &Local{source: source}
}

func (l *Local) FetchDiff(ctx context.Context, baseRef, targetRef string) (domain.Diff, error) {
	return l.source.FetchDiff(ctx, baseRef, targetRef)
}

func (l *Local) PostReviewComment(ctx context.Context, comment domain.ReviewComment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.comments = append(l.comments, comment)
	return nil
}

func (l *Local) CommentChains(ctx context.Context, filename string) (map[int]string, error) {
	return nil, nil
}

// Comments returns everything posted so far, in posting order.
func (l *Local) Comments() []domain.ReviewComment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ReviewComment, len(l.comments))
	copy(out, l.comments)
	return out
}

// StaticDiff is a DiffSource for diffs read from a file or stdin.
type StaticDiff struct {
	Diff domain.Diff
}

func (s StaticDiff) FetchDiff(ctx context.Context, baseRef, targetRef string) (domain.Diff, error) {
	return s.Diff, nil
}
