package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/adapter/cli"
	"github.com/reviewpilot/reviewpilot/internal/adapter/git"
	"github.com/reviewpilot/reviewpilot/internal/adapter/llm"
	llmhttp "github.com/reviewpilot/reviewpilot/internal/adapter/llm/http"
	"github.com/reviewpilot/reviewpilot/internal/adapter/llm/openai"
	"github.com/reviewpilot/reviewpilot/internal/adapter/llm/static"
	"github.com/reviewpilot/reviewpilot/internal/adapter/observability"
	"github.com/reviewpilot/reviewpilot/internal/adapter/output/markdown"
	"github.com/reviewpilot/reviewpilot/internal/adapter/scm"
	githubscm "github.com/reviewpilot/reviewpilot/internal/adapter/scm/github"
	"github.com/reviewpilot/reviewpilot/internal/adapter/store/sqlite"
	"github.com/reviewpilot/reviewpilot/internal/config"
	"github.com/reviewpilot/reviewpilot/internal/usecase/review"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "rp",
		EnvPrefix:   "RP",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	runner := &reviewRunner{cfg: cfg}
	var history cli.HistoryProvider
	if cfg.Store.Enabled {
		history = runHistory{cfg: cfg}
	}
	root := cli.NewRootCommand(cli.Dependencies{
		Runner:            runner,
		History:           history,
		DefaultOutput:     cfg.Output.Directory,
		DefaultResume:     cfg.Review.Resume,
		DefaultTokenLimit: cfg.Review.TokenLimit,
		Version:           version,
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return err
	}
	return nil
}

type reviewRunner struct {
	cfg config.Config
}

// Run wires the adapters the request calls for and executes one review.
func (r *reviewRunner) Run(ctx context.Context, req cli.Request) (cli.Outcome, error) {
	cfg := r.cfg

	logger := llmhttp.NewDefaultLogger(
		llmhttp.ParseLogLevel(cfg.Observability.Logging.Level),
		llmhttp.ParseLogFormat(resolveLogFormat(cfg.Observability.Logging.Format)),
	)

	var metrics *llmhttp.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = llmhttp.NewMetrics()
	}

	provider, err := buildProvider(cfg, req.DryRun)
	if err != nil {
		return cli.Outcome{}, err
	}

	source, local, err := buildScm(cfg, req)
	if err != nil {
		return cli.Outcome{}, err
	}

	stateStore, sqliteStore, err := buildStore(cfg)
	if err != nil {
		return cli.Outcome{}, err
	}
	if sqliteStore != nil {
		defer sqliteStore.Close()
	}

	callTimeout, err := time.ParseDuration(cfg.HTTP.Timeout)
	if err != nil {
		return cli.Outcome{}, fmt.Errorf("invalid http.timeout %q: %w", cfg.HTTP.Timeout, err)
	}

	deps := review.Deps{
		Provider:     provider,
		Scm:          source,
		StateStore:   stateStore,
		TokenCounter: llm.EstimateTokens,
		Logger:       observability.NewReviewLogger(logger),
	}
	if metrics != nil {
		deps.Metrics = metrics
	}

	orchestrator, err := review.New(deps, review.Config{
		TokenLimit:     req.TokenLimit,
		LLMConcurrency: cfg.Review.LLMConcurrency,
		ScmConcurrency: cfg.Review.ScmConcurrency,
		CallTimeout:    callTimeout,
		Resume:         req.Resume,
	})
	if err != nil {
		return cli.Outcome{}, err
	}

	result, err := orchestrator.Run(ctx, review.Request{BaseRef: req.BaseRef, TargetRef: req.TargetRef})
	if err != nil {
		return cli.Outcome{}, err
	}

	outcome := cli.Outcome{
		TotalFiles:     result.State.TotalFiles,
		CompletedFiles: result.State.CompletedFiles,
		FailedFiles:    result.State.FailedFiles,
		SkippedFiles:   result.State.SkippedFiles,
		CommentsPosted: result.CommentsPosted,
	}

	var usage *markdown.Usage
	if metrics != nil {
		stats := metrics.Snapshot()
		outcome.ModelCalls = stats.Requests
		outcome.TokensIn = stats.TokensIn
		outcome.TokensOut = stats.TokensOut
		usage = &markdown.Usage{
			Requests:  stats.Requests,
			TokensIn:  stats.TokensIn,
			TokensOut: stats.TokensOut,
			Duration:  stats.Duration,
			Errors:    stats.Errors,
		}
	}

	// Local runs land their comments in a Markdown report.
	if local != nil {
		writer := markdown.NewWriter(func() string {
			return time.Now().UTC().Format("20060102T150405Z")
		})
		path, err := writer.Write(markdown.Artifact{
			OutputDir:  req.OutputDir,
			Repository: repositoryName(cfg.Git.RepositoryDir),
			BaseRef:    req.BaseRef,
			TargetRef:  req.TargetRef,
			State:      result.State,
			Comments:   local.Comments(),
			Summaries:  result.Summaries,
			Usage:      usage,
		})
		if err != nil {
			return outcome, err
		}
		outcome.ReportPath = path
	}

	if sqliteStore != nil {
		if err := sqliteStore.RecordRun(ctx, sqlite.RunRecord{
			CommitID:       result.State.CommitID,
			BaseRef:        req.BaseRef,
			TargetRef:      req.TargetRef,
			CompletedFiles: result.State.CompletedFiles,
			FailedFiles:    result.State.FailedFiles,
			SkippedFiles:   result.State.SkippedFiles,
			CommentsPosted: result.CommentsPosted,
		}); err != nil {
			logger.LogWarning(ctx, "run history not recorded", map[string]interface{}{"error": err.Error()})
		}
	}

	return outcome, nil
}

// runHistory serves the history command from the run log. It opens the
// store per query so the command works without a review run in flight.
type runHistory struct {
	cfg config.Config
}

func (h runHistory) RecentRuns(ctx context.Context, limit int) ([]cli.HistoryEntry, error) {
	store, err := sqlite.NewStore(h.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	records, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]cli.HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, cli.HistoryEntry{
			CommitID:       rec.CommitID,
			BaseRef:        rec.BaseRef,
			TargetRef:      rec.TargetRef,
			CompletedFiles: rec.CompletedFiles,
			FailedFiles:    rec.FailedFiles,
			SkippedFiles:   rec.SkippedFiles,
			CommentsPosted: rec.CommentsPosted,
			CreatedAt:      rec.CreatedAt,
		})
	}
	return entries, nil
}

func buildProvider(cfg config.Config, dryRun bool) (review.Provider, error) {
	var chat llm.ChatProvider
	switch {
	case dryRun || cfg.Provider.Name == "static":
		chat = static.NewProvider()
	case cfg.Provider.Name == "openai":
		if cfg.Provider.APIKey == "" {
			return nil, errors.New("provider.apiKey is required for openai")
		}
		chat = openai.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Model)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}

	if cfg.Redaction.Enabled {
		chat = llm.NewRedacting(chat)
	}

	return llm.Bound{
		Provider: chat,
		Options: llm.ChatOptions{
			Model:       cfg.Provider.Model,
			Temperature: cfg.Provider.Temperature,
			MaxTokens:   cfg.Provider.MaxTokens,
		},
	}, nil
}

// buildScm returns the source-control backend. The second return value
// is non-nil for local runs, which collect comments for the report.
func buildScm(cfg config.Config, req cli.Request) (review.Scm, *scm.Local, error) {
	if req.GitHubOwner != "" {
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			return nil, nil, errors.New("GITHUB_TOKEN is required for GitHub mode")
		}
		return githubscm.NewClient(req.GitHubOwner, req.GitHubRepo, req.PullNumber, token), nil, nil
	}

	if req.DiffFile != "" {
		raw, err := os.ReadFile(req.DiffFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read diff file: %w", err)
		}
		sum := sha256.Sum256(raw)
		d := git.ParseUnifiedDiff(string(raw), "", hex.EncodeToString(sum[:])[:12])
		local := scm.NewLocal(scm.StaticDiff{Diff: d})
		return local, local, nil
	}

	repoDir := cfg.Git.RepositoryDir
	if repoDir == "" {
		repoDir = "."
	}
	local := scm.NewLocal(git.NewEngine(repoDir))
	return local, local, nil
}

func buildStore(cfg config.Config) (review.StateStore, *sqlite.Store, error) {
	if !cfg.Store.Enabled {
		return memoryStore{blobs: map[string]string{}}, nil, nil
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	store, err := sqlite.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

// memoryStore keeps state for the duration of the process only.
type memoryStore struct {
	blobs map[string]string
}

func (m memoryStore) Load(ctx context.Context, commitID string) (string, error) {
	return m.blobs[commitID], nil
}

func (m memoryStore) Save(ctx context.Context, commitID, blob string) error {
	m.blobs[commitID] = blob
	return nil
}

// resolveLogFormat turns "auto" into human output on a terminal and
// JSON when piped.
func resolveLogFormat(format string) string {
	if format != "auto" {
		return format
	}
	if review.IsOutputTerminal() {
		return "human"
	}
	return "json"
}

func repositoryName(repoDir string) string {
	if repoDir == "" {
		repoDir = "."
	}
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return "repository"
	}
	return filepath.Base(abs)
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rp"))
	}
	return paths
}
