package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/usecase/skip"
)

// ErrShouldReview is returned when a checked file has no skip trigger,
// so shell callers can branch on the exit code.
var ErrShouldReview = errors.New("should review")

// checkSkipCommand reports whether the given files would be skipped by
// the review pipeline.
//
// Exit codes:
//   - 0: every file would be skipped
//   - 1: at least one file would be reviewed
func checkSkipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-skip <file>...",
		Short: "Check which files the review pipeline would skip",
		Long: `Check files against the pipeline's skip rules: lockfiles, vendored
code, minified assets, and generated-code markers.

Exit codes:
  0 - every file would be skipped
  1 - at least one file would be reviewed`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			reviewable := 0

			for _, path := range args {
				// Content is optional; path rules alone cover most cases.
				content, _ := os.ReadFile(path)

				result := skip.Check(domain.FileDiff{Path: path, Patch: string(content)})
				if result.ShouldSkip {
					_, _ = fmt.Fprintf(out, "skip: %s (%s)\n", path, result.Reason)
				} else {
					_, _ = fmt.Fprintf(out, "review: %s\n", path)
					reviewable++
				}
			}

			if reviewable > 0 {
				return ErrShouldReview
			}
			return nil
		},
	}

	return cmd
}
