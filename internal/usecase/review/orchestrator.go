// Package review drives the end-to-end review pipeline: decompose the
// diff, pack it under a token budget, call the model, map responses back
// onto the diff, and track per-file progress in persisted state.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/diff"
	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/retry"
	"github.com/reviewpilot/reviewpilot/internal/usecase/pack"
	"github.com/reviewpilot/reviewpilot/internal/usecase/respond"
	"github.com/reviewpilot/reviewpilot/internal/usecase/resume"
	"github.com/reviewpilot/reviewpilot/internal/usecase/skip"
	"github.com/reviewpilot/reviewpilot/internal/usecase/state"
)

// Provider is the outbound port to the language model.
type Provider interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Scm is the outbound port to the source-control system.
type Scm interface {
	// FetchDiff returns per-file unified patches between two refs.
	FetchDiff(ctx context.Context, baseRef, targetRef string) (domain.Diff, error)

	// PostReviewComment publishes one mapped review comment.
	PostReviewComment(ctx context.Context, comment domain.ReviewComment) error

	// CommentChains returns existing discussion threads per hunk index
	// for a file. A nil map means no threads.
	CommentChains(ctx context.Context, filename string) (map[int]string, error)
}

// StateStore persists serialized review state between runs. The blob is
// opaque to the store; an empty string means no prior state.
type StateStore interface {
	Load(ctx context.Context, commitID string) (string, error)
	Save(ctx context.Context, commitID, blob string) error
}

// Logger is the structured logging port.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// Metrics receives call and outcome counters.
type Metrics interface {
	RecordCall(duration time.Duration, tokensIn, tokensOut int)
	RecordError(errType retry.ErrorType)
	RecordFileOutcome(status string)
}

// Deps captures the orchestrator's collaborators.
type Deps struct {
	Provider     Provider
	Scm          Scm
	StateStore   StateStore
	TokenCounter pack.TokenCounter
	Logger       Logger  // optional
	Metrics      Metrics // optional
}

// Config tunes one run.
type Config struct {
	TokenLimit     int           // budget per outbound request
	LLMConcurrency int           // bound on in-flight file operations
	ScmConcurrency int           // bound on in-flight source-control calls
	CallTimeout    time.Duration // per provider call
	Resume         bool          // continue from persisted state when possible
	Retry          retry.Config
}

// Request identifies the diff under review.
type Request struct {
	BaseRef   string
	TargetRef string
}

// Result is the run outcome.
type Result struct {
	State          state.ReviewState
	CommentsPosted int
	Summaries      map[string]string
}

// Orchestrator implements the review flow.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	packer   *pack.Packer
	llmSlots chan struct{}
	scmSlots chan struct{}
}

// New wires an orchestrator, applying defaults for unset config values.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if deps.Scm == nil {
		return nil, errors.New("scm service is required")
	}
	if deps.StateStore == nil {
		return nil, errors.New("state store is required")
	}
	if deps.TokenCounter == nil {
		return nil, errors.New("token counter is required")
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}

	if cfg.TokenLimit <= 0 {
		cfg.TokenLimit = 60000
	}
	if cfg.LLMConcurrency <= 0 {
		cfg.LLMConcurrency = 4
	}
	if cfg.ScmConcurrency <= 0 {
		cfg.ScmConcurrency = 8
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	if cfg.Retry.PerTypeMaxAttempts == nil {
		cfg.Retry = retry.DefaultConfig()
	}

	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		packer:   pack.NewPacker(deps.TokenCounter),
		llmSlots: make(chan struct{}, cfg.LLMConcurrency),
		scmSlots: make(chan struct{}, cfg.ScmConcurrency),
	}, nil
}

// Run reviews the diff between the request's refs. Per-file failures are
// recorded in state, never returned; only setup failures (fetching the
// diff) abort the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	d, err := o.deps.Scm.FetchDiff(ctx, req.BaseRef, req.TargetRef)
	if err != nil {
		return Result{}, fmt.Errorf("fetch diff: %w", err)
	}
	if len(d.Files) == 0 {
		return Result{Summaries: map[string]string{}}, nil
	}

	files := make([]string, 0, len(d.Files))
	byName := make(map[string]domain.FileDiff, len(d.Files))
	for _, f := range d.Files {
		files = append(files, f.Path)
		byName[f.Path] = f
	}

	owner := o.loadOrCreateState(ctx, d.ToCommitHash, files)
	run := &runContext{
		owner:     owner,
		files:     byName,
		summaries: make(map[string]string),
	}

	if snap := owner.snapshot(); snap.Phase == domain.PhaseSummarizing {
		todo := resume.FilterFilesForResume(files, &snap)
		o.deps.Logger.LogInfo(ctx, "summarize phase", map[string]interface{}{
			"commit": d.ToCommitHash, "files": len(todo),
		})
		o.runPhase(ctx, todo, func(ctx context.Context, name string) {
			o.summarizeFile(ctx, run, name)
		})
		// A cancelled run must stay in the summarizing phase: bumping the
		// phase would strand its pending files, which are not eligible for
		// dispatch once the phase reads reviewing.
		if ctx.Err() == nil {
			owner.updatePhase(ctx, domain.PhaseReviewing)
		}
	}

	snap := owner.snapshot()
	todo := resume.FilterFilesForResume(files, &snap)
	o.deps.Logger.LogInfo(ctx, "review phase", map[string]interface{}{
		"commit": d.ToCommitHash, "files": len(todo),
	})
	o.runPhase(ctx, todo, func(ctx context.Context, name string) {
		o.reviewFile(ctx, run, name)
	})

	final := owner.snapshot()
	o.deps.Logger.LogInfo(ctx, "run finished", map[string]interface{}{
		"commit":    final.CommitID,
		"complete":  state.IsReviewComplete(final),
		"completed": final.CompletedFiles,
		"failed":    final.FailedFiles,
		"skipped":   final.SkippedFiles,
		"comments":  run.commentsPosted(),
	})

	return Result{
		State:          final,
		CommentsPosted: run.commentsPosted(),
		Summaries:      run.summarySnapshot(),
	}, nil
}

// loadOrCreateState resumes prior state for the same commit and file set,
// otherwise starts cold. Unreadable or mismatched state degrades to a
// cold start.
func (o *Orchestrator) loadOrCreateState(ctx context.Context, commitID string, files []string) *stateOwner {
	fresh := state.CreateReviewState(commitID, files)

	if o.cfg.Resume {
		blob, err := o.deps.StateStore.Load(ctx, commitID)
		if err != nil {
			o.deps.Logger.LogWarning(ctx, "state load failed, starting cold", map[string]interface{}{
				"commit": commitID, "error": err.Error(),
			})
		} else if prior := state.Deserialize(blob); prior != nil {
			if state.IsSameReview(prior, &fresh) && resume.ShouldResumeReview(true, prior) {
				o.deps.Logger.LogInfo(ctx, "resuming prior review", map[string]interface{}{
					"commit": commitID, "phase": prior.Phase,
				})
				return newStateOwner(o, *prior)
			}
			if state.IsSameReview(prior, &fresh) && !resume.ShouldResumeReview(true, prior) {
				// Keep a finished state as-is. A state with nothing to
				// dispatch that is not complete is corrupt; start cold
				// rather than strand the review.
				if state.IsReviewComplete(*prior) {
					return newStateOwner(o, *prior)
				}
				o.deps.Logger.LogWarning(ctx, "prior state has no dispatchable work but is incomplete, starting cold", map[string]interface{}{
					"commit": commitID, "phase": prior.Phase,
				})
			}
		}
	}

	owner := newStateOwner(o, fresh)
	owner.persist(ctx)
	return owner
}

// runPhase dispatches one worker per file, bounded by the LLM pool. A
// full pool blocks further dispatch.
func (o *Orchestrator) runPhase(ctx context.Context, files []string, work func(ctx context.Context, name string)) {
	var wg sync.WaitGroup
	for _, name := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case o.llmSlots <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer func() { <-o.llmSlots }()
			work(ctx, name)
		}(name)
	}
	wg.Wait()
}

func (o *Orchestrator) summarizeFile(ctx context.Context, run *runContext, name string) {
	fd := run.files[name]

	if res := skip.Check(fd); res.ShouldSkip {
		run.owner.updateFile(ctx, name, domain.FileStatusSkipped, state.Meta{
			SkipReason: res.Reason, SkipConfidence: res.Confidence,
		})
		o.deps.Metrics.RecordFileOutcome(domain.FileStatusSkipped)
		return
	}

	run.owner.updateFile(ctx, name, domain.FileStatusSummarizing, state.Meta{})

	hunks := diff.Decompose(fd.Patch)
	if len(hunks) == 0 {
		run.owner.updateFile(ctx, name, domain.FileStatusSkipped, state.Meta{
			SkipReason: "no reviewable hunks", SkipConfidence: 1.0,
		})
		o.deps.Metrics.RecordFileOutcome(domain.FileStatusSkipped)
		return
	}

	base := PromptBaseTokens(o.deps.TokenCounter, name, "", false)
	count := o.packer.CalculateHunksToPack(hunks, base, o.cfg.TokenLimit)
	if count == 0 {
		run.owner.updateFile(ctx, name, domain.FileStatusSkipped, state.Meta{
			SkipReason: pack.SkipReasonDiffTooLarge, SkipConfidence: 1.0,
		})
		o.deps.Metrics.RecordFileOutcome(domain.FileStatusSkipped)
		return
	}

	body := o.packer.Pack(hunks, nil, count, base, o.cfg.TokenLimit)
	text, err := o.chatWithRetry(ctx, BuildSummarizePrompt(name, "", body))
	if err != nil {
		o.failFile(ctx, run, name, err)
		return
	}

	run.setSummary(name, text)
	run.owner.updateFile(ctx, name, domain.FileStatusSummarized, state.Meta{})
}

func (o *Orchestrator) reviewFile(ctx context.Context, run *runContext, name string) {
	fd := run.files[name]
	run.owner.updateFile(ctx, name, domain.FileStatusReviewing, state.Meta{})

	hunks := diff.Decompose(fd.Patch)
	if len(hunks) == 0 {
		run.owner.updateFile(ctx, name, domain.FileStatusSkipped, state.Meta{
			SkipReason: "no reviewable hunks", SkipConfidence: 1.0,
		})
		o.deps.Metrics.RecordFileOutcome(domain.FileStatusSkipped)
		return
	}

	summary := run.summary(name)
	base := PromptBaseTokens(o.deps.TokenCounter, name, summary, true)
	count := o.packer.CalculateHunksToPack(hunks, base, o.cfg.TokenLimit)
	if count == 0 {
		run.owner.updateFile(ctx, name, domain.FileStatusSkipped, state.Meta{
			SkipReason: pack.SkipReasonDiffTooLarge, SkipConfidence: 1.0,
		})
		o.deps.Metrics.RecordFileOutcome(domain.FileStatusSkipped)
		return
	}

	chains := o.fetchCommentChains(ctx, name)
	body := o.packer.Pack(hunks, chains, count, base, o.cfg.TokenLimit)
	text, err := o.chatWithRetry(ctx, BuildReviewPrompt(name, summary, body))
	if err != nil {
		o.failFile(ctx, run, name, err)
		return
	}

	ranges := make([]domain.HunkRange, 0, len(hunks))
	for _, h := range hunks {
		ranges = append(ranges, h.Range)
	}

	for _, rv := range respond.ParseReviewResponse(text, ranges) {
		comment := domain.ReviewComment{
			Filename:  name,
			StartLine: rv.StartLine,
			EndLine:   rv.EndLine,
			Text:      rv.Comment,
		}
		if err := o.postComment(ctx, comment); err != nil {
			o.failFile(ctx, run, name, fmt.Errorf("post comment: %w", err))
			return
		}
		run.countComment()
	}

	run.owner.updateFile(ctx, name, domain.FileStatusReviewed, state.Meta{})
	o.deps.Metrics.RecordFileOutcome(domain.FileStatusReviewed)
}

// fetchCommentChains pulls existing threads for a file. Thread context is
// best-effort; failures only cost the model some context.
func (o *Orchestrator) fetchCommentChains(ctx context.Context, name string) map[int]string {
	var chains map[int]string
	err := o.withScmSlot(ctx, func() error {
		var err error
		chains, err = o.deps.Scm.CommentChains(ctx, name)
		return err
	})
	if err != nil {
		o.deps.Logger.LogWarning(ctx, "comment chains unavailable", map[string]interface{}{
			"file": name, "error": err.Error(),
		})
		return nil
	}
	return chains
}

func (o *Orchestrator) postComment(ctx context.Context, comment domain.ReviewComment) error {
	return o.withScmSlot(ctx, func() error {
		return o.deps.Scm.PostReviewComment(ctx, comment)
	})
}

func (o *Orchestrator) withScmSlot(ctx context.Context, fn func() error) error {
	select {
	case o.scmSlots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-o.scmSlots }()
	return fn()
}

// chatWithRetry runs one provider call under the per-call timeout and the
// classified retry policy. Timeouts are surfaced as such so the policy
// sees them; run cancellation is not retried.
func (o *Orchestrator) chatWithRetry(ctx context.Context, prompt string) (string, error) {
	var out string
	err := retry.Do(ctx, o.cfg.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		text, err := o.deps.Provider.Chat(callCtx, prompt)
		duration := time.Since(start)

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("provider call timed out after %s: %w", o.cfg.CallTimeout, err)
			}
			o.deps.Metrics.RecordError(retry.ClassifyErr(err))
			return err
		}

		o.deps.Metrics.RecordCall(duration, o.deps.TokenCounter(prompt), o.deps.TokenCounter(text))
		out = text
		return nil
	})
	return out, err
}

func (o *Orchestrator) failFile(ctx context.Context, run *runContext, name string, err error) {
	errType := retry.ClassifyErr(err)
	o.deps.Logger.LogWarning(ctx, "file failed", map[string]interface{}{
		"file": name, "error": err.Error(), "errorType": string(errType),
	})
	run.owner.updateFile(ctx, name, domain.FileStatusFailed, state.Meta{Error: err.Error()})
	run.owner.recordError(ctx, err.Error())
	o.deps.Metrics.RecordFileOutcome(domain.FileStatusFailed)
}

// runContext holds the per-run shared mutable bits outside the state.
type runContext struct {
	owner *stateOwner

	mu        sync.Mutex
	files     map[string]domain.FileDiff
	summaries map[string]string
	comments  int
}

func (r *runContext) setSummary(name, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries[name] = text
}

func (r *runContext) summary(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaries[name]
}

func (r *runContext) summarySnapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.summaries))
	for k, v := range r.summaries {
		out[k] = v
	}
	return out
}

func (r *runContext) countComment() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments++
}

func (r *runContext) commentsPosted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.comments
}

type nopLogger struct{}

func (nopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
func (nopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (nopLogger) LogError(context.Context, string, map[string]interface{})   {}

type nopMetrics struct{}

func (nopMetrics) RecordCall(time.Duration, int, int) {}
func (nopMetrics) RecordError(retry.ErrorType)        {}
func (nopMetrics) RecordFileOutcome(string)           {}
