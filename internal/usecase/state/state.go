// Package state implements the persisted review progress tracker.
//
// ReviewState is an immutable value: every transition returns a new state
// rather than mutating in place. This is what lets a single state owner
// serialize concurrent per-file completions without shared-state races.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// Version identifies the serialized state schema. Deserialization requires
// an exact match.
const Version = "1.0"

// ErrFileNotFound indicates a transition referenced a file the state does
// not track.
var ErrFileNotFound = errors.New("file not found in review state")

// now is stubbed in tests. UTC strips the monotonic reading so serialized
// timestamps round-trip exactly.
var now = func() time.Time { return time.Now().UTC() }

// FileReviewStatus tracks one file's progress through the pipeline.
type FileReviewStatus struct {
	Filename       string    `json:"filename"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	SkipReason     string    `json:"skipReason,omitempty"`
	SkipConfidence float64   `json:"skipConfidence,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ReviewState is the full persisted progress for one commit under review.
type ReviewState struct {
	Version        string             `json:"version"`
	StartedAt      time.Time          `json:"startedAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	CommitID       string             `json:"commitId"`
	TotalFiles     int                `json:"totalFiles"`
	CompletedFiles int                `json:"completedFiles"`
	FailedFiles    int                `json:"failedFiles"`
	SkippedFiles   int                `json:"skippedFiles"`
	Phase          string             `json:"phase"`
	Files          []FileReviewStatus `json:"files"`
	LastError      string             `json:"lastError,omitempty"`
}

// Meta carries optional per-file context recorded with a status change.
type Meta struct {
	Error          string
	SkipReason     string
	SkipConfidence float64
}

// CreateReviewState builds a fresh state for a commit: every file pending,
// counters at zero, phase summarizing.
func CreateReviewState(commitID string, files []string) ReviewState {
	ts := now()
	statuses := make([]FileReviewStatus, 0, len(files))
	for _, f := range files {
		statuses = append(statuses, FileReviewStatus{
			Filename:  f,
			Status:    domain.FileStatusPending,
			UpdatedAt: ts,
		})
	}

	return ReviewState{
		Version:    Version,
		StartedAt:  ts,
		UpdatedAt:  ts,
		CommitID:   commitID,
		TotalFiles: len(files),
		Phase:      domain.PhaseSummarizing,
		Files:      statuses,
	}
}

// UpdateFileStatus returns a new state with the file moved to newStatus.
// Counters are recomputed by membership delta: completed counts reviewed
// and skipped, failed counts failed, skipped counts skipped. An unknown
// filename is an error.
func UpdateFileStatus(s ReviewState, filename, newStatus string, meta Meta) (ReviewState, error) {
	idx := -1
	for i, f := range s.Files {
		if f.Filename == filename {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}

	next := s
	next.Files = make([]FileReviewStatus, len(s.Files))
	copy(next.Files, s.Files)

	old := next.Files[idx]
	ts := now()

	updated := old
	updated.Status = newStatus
	updated.UpdatedAt = ts
	if meta.Error != "" {
		updated.Error = meta.Error
	}
	if meta.SkipReason != "" {
		updated.SkipReason = meta.SkipReason
	}
	if meta.SkipConfidence != 0 {
		updated.SkipConfidence = meta.SkipConfidence
	}
	next.Files[idx] = updated

	next.CompletedFiles = clamp(next.CompletedFiles - completedWeight(old.Status) + completedWeight(newStatus))
	next.FailedFiles = clamp(next.FailedFiles - failedWeight(old.Status) + failedWeight(newStatus))
	next.SkippedFiles = clamp(next.SkippedFiles - skippedWeight(old.Status) + skippedWeight(newStatus))
	next.UpdatedAt = ts

	return next, nil
}

// UpdatePhase advances the pipeline phase. The transition is forward-only:
// moving back from reviewing to summarizing is ignored.
func UpdatePhase(s ReviewState, phase string) ReviewState {
	if s.Phase == domain.PhaseReviewing && phase == domain.PhaseSummarizing {
		return s
	}
	if phase != domain.PhaseSummarizing && phase != domain.PhaseReviewing {
		return s
	}

	next := s
	next.Phase = phase
	next.UpdatedAt = now()
	return next
}

// RecordError stores the most recent run-level error.
func RecordError(s ReviewState, message string) ReviewState {
	next := s
	next.LastError = message
	next.UpdatedAt = now()
	return next
}

// GetFilesToProcess returns the filenames still needing work in the current
// phase, in tracked order. During the reviewing phase failed files are
// deliberately excluded; re-reviewing them takes an external retry that
// resets their status.
func GetFilesToProcess(s ReviewState) []string {
	var eligible map[string]bool
	switch s.Phase {
	case domain.PhaseReviewing:
		eligible = map[string]bool{
			domain.FileStatusSummarized: true,
			domain.FileStatusReviewing:  true,
		}
	default:
		eligible = map[string]bool{
			domain.FileStatusPending:     true,
			domain.FileStatusFailed:      true,
			domain.FileStatusSummarizing: true,
		}
	}

	var files []string
	for _, f := range s.Files {
		if eligible[f.Status] {
			files = append(files, f.Filename)
		}
	}
	return files
}

// IsReviewComplete reports whether every file reached a terminal
// disposition. Failed files count toward completion: completion gates
// "anything left to dispatch", not "everything succeeded".
func IsReviewComplete(s ReviewState) bool {
	return s.CompletedFiles+s.FailedFiles == s.TotalFiles
}

// Serialize renders the state as its persisted JSON form.
func Serialize(s ReviewState) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("serialize review state: %w", err)
	}
	return string(raw), nil
}

// Deserialize parses persisted state. Any failure -- malformed JSON,
// missing required fields, or a version mismatch -- returns nil so callers
// degrade to a cold start instead of crashing.
func Deserialize(raw string) *ReviewState {
	var s ReviewState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil
	}
	if s.Version != Version {
		return nil
	}
	if s.StartedAt.IsZero() || s.CommitID == "" || s.Files == nil {
		return nil
	}
	return &s
}

// IsSameReview reports whether two states describe the same review: both
// present, same commit, identical filename sets.
func IsSameReview(a, b *ReviewState) bool {
	if a == nil || b == nil {
		return false
	}
	if a.CommitID != b.CommitID || len(a.Files) != len(b.Files) {
		return false
	}

	names := make(map[string]bool, len(a.Files))
	for _, f := range a.Files {
		names[f.Filename] = true
	}
	for _, f := range b.Files {
		if !names[f.Filename] {
			return false
		}
	}
	return true
}

func completedWeight(status string) int {
	if status == domain.FileStatusReviewed || status == domain.FileStatusSkipped {
		return 1
	}
	return 0
}

func failedWeight(status string) int {
	if status == domain.FileStatusFailed {
		return 1
	}
	return 0
}

func skippedWeight(status string) int {
	if status == domain.FileStatusSkipped {
		return 1
	}
	return 0
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
