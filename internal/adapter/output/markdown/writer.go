// Package markdown renders a finished review run into a Markdown report.
package markdown

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/usecase/state"
)

type clock func() string

// Usage summarises the provider calls made during one run.
type Usage struct {
	Requests  int
	TokensIn  int
	TokensOut int
	Duration  time.Duration
	Errors    int
}

// Artifact collects everything one report needs.
type Artifact struct {
	OutputDir  string
	Repository string
	BaseRef    string
	TargetRef  string
	State      state.ReviewState
	Comments   []domain.ReviewComment
	Summaries  map[string]string
	Usage      *Usage
}

// Writer renders run reports into Markdown files.
type Writer struct {
	now clock
}

// NewWriter constructs a writer with a timestamp supplier. The timestamp
// becomes part of the filename, so suppliers should emit something
// filesystem-safe.
func NewWriter(now clock) *Writer {
	return &Writer{now: now}
}

// Write persists the report to disk and returns its path.
func (w *Writer) Write(artifact Artifact) (string, error) {
	if err := os.MkdirAll(artifact.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.md",
		sanitise(artifact.Repository),
		sanitise(artifact.TargetRef),
		w.now(),
	)
	path := filepath.Join(artifact.OutputDir, filename)

	if err := os.WriteFile(path, []byte(buildContent(artifact)), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return path, nil
}

func buildContent(artifact Artifact) string {
	var builder strings.Builder
	caser := cases.Title(language.English)

	builder.WriteString("# Review Report\n\n")
	builder.WriteString(fmt.Sprintf("- Commit: %s\n", artifact.State.CommitID))
	builder.WriteString(fmt.Sprintf("- Base: %s\n", artifact.BaseRef))
	builder.WriteString(fmt.Sprintf("- Target: %s\n", artifact.TargetRef))
	builder.WriteString(fmt.Sprintf("- Files: %d total, %d completed, %d failed, %d skipped\n\n",
		artifact.State.TotalFiles, artifact.State.CompletedFiles,
		artifact.State.FailedFiles, artifact.State.SkippedFiles))

	builder.WriteString("## Files\n\n")
	for _, f := range artifact.State.Files {
		builder.WriteString(fmt.Sprintf("### %s (%s)\n\n", f.Filename, caser.String(f.Status)))
		if f.SkipReason != "" {
			builder.WriteString(fmt.Sprintf("- Skip reason: %s (confidence %.1f)\n", f.SkipReason, f.SkipConfidence))
		}
		if f.Error != "" {
			builder.WriteString(fmt.Sprintf("- Error: %s\n", f.Error))
		}
		if summary := artifact.Summaries[f.Filename]; summary != "" {
			builder.WriteString(fmt.Sprintf("- Summary: %s\n", summary))
		}
		builder.WriteString("\n")
	}

	if u := artifact.Usage; u != nil {
		builder.WriteString("## Model Usage\n\n")
		builder.WriteString(fmt.Sprintf("- Requests: %d\n", u.Requests))
		builder.WriteString(fmt.Sprintf("- Tokens: %d in, %d out\n", u.TokensIn, u.TokensOut))
		builder.WriteString(fmt.Sprintf("- Provider time: %s\n", u.Duration.Round(time.Millisecond)))
		if u.Errors > 0 {
			builder.WriteString(fmt.Sprintf("- Errors: %d\n", u.Errors))
		}
		builder.WriteString("\n")
	}

	if len(artifact.Comments) == 0 {
		builder.WriteString("No review comments.\n")
		return builder.String()
	}

	builder.WriteString("## Comments\n\n")
	for _, c := range artifact.Comments {
		builder.WriteString(fmt.Sprintf("### %s:%d-%d\n\n", c.Filename, c.StartLine, c.EndLine))
		builder.WriteString(c.Text)
		builder.WriteString("\n\n")
	}

	return builder.String()
}

func sanitise(value string) string {
	if value == "" {
		return "unknown"
	}
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, string(filepath.Separator), "-")
	value = strings.ReplaceAll(value, " ", "-")
	return value
}
