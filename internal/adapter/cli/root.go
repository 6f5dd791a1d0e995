// Package cli defines the rp command tree. Wiring of concrete adapters
// happens in the host process; the CLI only parses flags and delegates.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// ErrVersionRequested indicates the user asked for the version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Request carries everything a review run needs from the command line.
type Request struct {
	BaseRef    string
	TargetRef  string
	DiffFile   string
	Resume     bool
	DryRun     bool
	OutputDir  string
	TokenLimit int

	// GitHub mode. All three must be set together.
	GitHubOwner string
	GitHubRepo  string
	PullNumber  int
}

// Outcome summarizes a finished run for display.
type Outcome struct {
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int
	SkippedFiles   int
	CommentsPosted int
	ReportPath     string

	// Provider usage. ModelCalls zero means usage was not tracked.
	ModelCalls int
	TokensIn   int
	TokensOut  int
}

// Runner executes a review run.
type Runner interface {
	Run(ctx context.Context, req Request) (Outcome, error)
}

// HistoryEntry is one past run, newest first.
type HistoryEntry struct {
	CommitID       string
	BaseRef        string
	TargetRef      string
	CompletedFiles int
	FailedFiles    int
	SkippedFiles   int
	CommentsPosted int
	CreatedAt      time.Time
}

// HistoryProvider lists past runs. A nil provider disables the history
// command.
type HistoryProvider interface {
	RecentRuns(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Runner            Runner
	History           HistoryProvider
	Args              Arguments
	DefaultOutput     string
	DefaultResume     bool
	DefaultTokenLimit int
	Version           string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "rp",
		Short: "LLM pull request review CLI",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(reviewCommand(deps))
	root.AddCommand(checkSkipCommand())
	if deps.History != nil {
		root.AddCommand(historyCommand(deps.History))
	}

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func reviewCommand(deps Dependencies) *cobra.Command {
	var req Request

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a diff and post comments",
		Long: `Review the changes between two refs, or a unified diff read from a file.

In GitHub mode (--github-owner, --github-repo, --pr-number) the diff
comes from the pull request and comments are posted to it. Otherwise the
diff comes from the local repository or --diff-file, and comments land
in a Markdown report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateGitHubFlags(req); err != nil {
				return err
			}

			outcome, err := deps.Runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Reviewed %d files: %d completed, %d failed, %d skipped\n",
				outcome.TotalFiles, outcome.CompletedFiles, outcome.FailedFiles, outcome.SkippedFiles)
			_, _ = fmt.Fprintf(out, "Comments posted: %d\n", outcome.CommentsPosted)
			if outcome.ModelCalls > 0 {
				_, _ = fmt.Fprintf(out, "Model calls: %d (%d tokens in, %d tokens out)\n",
					outcome.ModelCalls, outcome.TokensIn, outcome.TokensOut)
			}
			if outcome.ReportPath != "" {
				_, _ = fmt.Fprintf(out, "Report: %s\n", outcome.ReportPath)
			}

			if outcome.FailedFiles > 0 {
				return fmt.Errorf("review finished with %d failed files", outcome.FailedFiles)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.BaseRef, "base", "main", "Base reference to diff against")
	cmd.Flags().StringVar(&req.TargetRef, "target", "HEAD", "Target reference to review")
	cmd.Flags().StringVar(&req.DiffFile, "diff-file", "", "Read a unified diff from this file instead of the repository")
	cmd.Flags().BoolVar(&req.Resume, "resume", deps.DefaultResume, "Resume an interrupted review of the same commit")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "Use the canned provider; no model calls are made")
	cmd.Flags().StringVar(&req.OutputDir, "output", deps.DefaultOutput, "Directory to write the run report")
	cmd.Flags().IntVar(&req.TokenLimit, "token-limit", deps.DefaultTokenLimit, "Token budget per model request")
	cmd.Flags().StringVar(&req.GitHubOwner, "github-owner", "", "GitHub repository owner")
	cmd.Flags().StringVar(&req.GitHubRepo, "github-repo", "", "GitHub repository name")
	cmd.Flags().IntVar(&req.PullNumber, "pr-number", 0, "Pull request number")

	return cmd
}

func historyCommand(history HistoryProvider) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent review runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := history.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "No recorded runs.")
				return nil
			}
			for _, e := range entries {
				_, _ = fmt.Fprintf(out, "%s  %s  %s..%s  %d completed, %d failed, %d skipped, %d comments\n",
					e.CreatedAt.Format("2006-01-02 15:04"), shortCommit(e.CommitID),
					e.BaseRef, e.TargetRef,
					e.CompletedFiles, e.FailedFiles, e.SkippedFiles, e.CommentsPosted)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")
	return cmd
}

func shortCommit(commitID string) string {
	if len(commitID) > 12 {
		return commitID[:12]
	}
	return commitID
}

func validateGitHubFlags(req Request) error {
	set := 0
	if req.GitHubOwner != "" {
		set++
	}
	if req.GitHubRepo != "" {
		set++
	}
	if req.PullNumber != 0 {
		set++
	}
	if set != 0 && set != 3 {
		return errors.New("--github-owner, --github-repo, and --pr-number must be set together")
	}
	return nil
}
