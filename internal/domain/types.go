package domain

// File status values for a file within a review run.
const (
	FileStatusPending     = "pending"
	FileStatusSummarizing = "summarizing"
	FileStatusSummarized  = "summarized"
	FileStatusReviewing   = "reviewing"
	FileStatusReviewed    = "reviewed"
	FileStatusFailed      = "failed"
	FileStatusSkipped     = "skipped"
)

// Phase values for the review pipeline.
const (
	PhaseSummarizing = "summarizing"
	PhaseReviewing   = "reviewing"
)

// HunkRange holds the line spans a hunk covers on both sides of a diff.
// Invariant: End = Start + length - 1 for each side.
type HunkRange struct {
	OldStart int
	OldEnd   int
	NewStart int
	NewEnd   int
}

// RenderedHunk is a hunk rendered into the two text blocks sent to the
// model. Lines in NewText carry "<n>: " prefixes except the unnumbered
// context lines at hunk edges.
type RenderedHunk struct {
	Range   HunkRange
	OldText string
	NewText string
}

// FileDiff captures the change for a single file.
type FileDiff struct {
	Path   string
	Patch  string
	Binary bool
}

// Diff represents the cumulative diff between two refs.
type Diff struct {
	FromCommitHash string
	ToCommitHash   string
	Files          []FileDiff
}

// Review is a single patch-mapped comment ready to post.
type Review struct {
	StartLine int
	EndLine   int
	Comment   string
}

// ReviewComment is the outbound shape handed to a comment poster.
type ReviewComment struct {
	Filename  string
	StartLine int
	EndLine   int
	Text      string
}
