package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/retry"
	"github.com/reviewpilot/reviewpilot/internal/usecase/pack"
	"github.com/reviewpilot/reviewpilot/internal/usecase/state"
)

const mainPatch = `@@ -1,2 +1,3 @@
 var mode = "fast"
+var retries = 3
 var debug = false
`

const lockPatch = `@@ -1,1 +1,2 @@
 {
+  "lockfileVersion": 3
`

type scriptProvider struct {
	mu        sync.Mutex
	summary   string
	review    string
	err       error
	callCount int
	prompts   []string
}

func (p *scriptProvider) Chat(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.callCount++
	p.prompts = append(p.prompts, prompt)

	if p.err != nil {
		return "", p.err
	}
	if strings.Contains(prompt, "Summarize") {
		return p.summary, nil
	}
	return p.review, nil
}

func (p *scriptProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

type fakeScm struct {
	mu     sync.Mutex
	diff   domain.Diff
	chains map[string]map[int]string
	posted []domain.ReviewComment
}

func (f *fakeScm) FetchDiff(ctx context.Context, baseRef, targetRef string) (domain.Diff, error) {
	return f.diff, nil
}

func (f *fakeScm) PostReviewComment(ctx context.Context, comment domain.ReviewComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, comment)
	return nil
}

func (f *fakeScm) CommentChains(ctx context.Context, filename string) (map[int]string, error) {
	return f.chains[filename], nil
}

func (f *fakeScm) postedComments() []domain.ReviewComment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ReviewComment, len(f.posted))
	copy(out, f.posted)
	return out
}

type memStore struct {
	mu    sync.Mutex
	blobs map[string]string
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string]string{}}
}

func (m *memStore) Load(ctx context.Context, commitID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[commitID], nil
}

func (m *memStore) Save(ctx context.Context, commitID, blob string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[commitID] = blob
	return nil
}

func runeCounter(s string) int { return len(s) }

func TestRunReviewsChangedFilesAndSkipsNoise(t *testing.T) {
	provider := &scriptProvider{
		summary: "Adds a retry count next to the existing flags.",
		review:  "2-2:\nName the retry count after what it bounds.\n",
	}
	scm := &fakeScm{
		diff: domain.Diff{
			FromCommitHash: "base111",
			ToCommitHash:   "head222",
			Files: []domain.FileDiff{
				{Path: "main.go", Patch: mainPatch},
				{Path: "package-lock.json", Patch: lockPatch},
				{Path: "logo.png", Binary: true},
			},
		},
	}
	store := newMemStore()

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   store,
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{TokenLimit: 1 << 20})
	require.NoError(t, err)

	res, err := orc.Run(context.Background(), Request{BaseRef: "main", TargetRef: "feature"})
	require.NoError(t, err)

	assert.True(t, state.IsReviewComplete(res.State))
	assert.Equal(t, 3, res.State.CompletedFiles)
	assert.Equal(t, 2, res.State.SkippedFiles)
	assert.Equal(t, 0, res.State.FailedFiles)
	assert.Equal(t, domain.PhaseReviewing, res.State.Phase)

	// One summarize call and one review call, both for main.go.
	assert.Equal(t, 2, provider.calls())
	assert.Equal(t, "Adds a retry count next to the existing flags.", res.Summaries["main.go"])

	posted := scm.postedComments()
	require.Len(t, posted, 1)
	assert.Equal(t, "main.go", posted[0].Filename)
	assert.Equal(t, 2, posted[0].StartLine)
	assert.Equal(t, 2, posted[0].EndLine)
	assert.Contains(t, posted[0].Text, "Name the retry count")
	assert.Equal(t, 1, res.CommentsPosted)

	statuses := map[string]string{}
	for _, f := range res.State.Files {
		statuses[f.Filename] = f.Status
	}
	assert.Equal(t, domain.FileStatusReviewed, statuses["main.go"])
	assert.Equal(t, domain.FileStatusSkipped, statuses["package-lock.json"])
	assert.Equal(t, domain.FileStatusSkipped, statuses["logo.png"])

	// The persisted blob must round-trip to the final state.
	blob, err := store.Load(context.Background(), "head222")
	require.NoError(t, err)
	saved := state.Deserialize(blob)
	require.NotNil(t, saved)
	assert.Equal(t, res.State.CompletedFiles, saved.CompletedFiles)
}

func TestRunRecordsProviderFailure(t *testing.T) {
	provider := &scriptProvider{err: errors.New("bad request: model rejected the payload")}
	scm := &fakeScm{
		diff: domain.Diff{
			ToCommitHash: "head333",
			Files:        []domain.FileDiff{{Path: "main.go", Patch: mainPatch}},
		},
	}

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   newMemStore(),
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{
		TokenLimit: 1 << 20,
		Retry: retry.Config{
			MaxAttempts:        1,
			PerTypeMaxAttempts: map[retry.ErrorType]int{retry.ErrorAPI: 1},
		},
	})
	require.NoError(t, err)

	res, err := orc.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.State.FailedFiles)
	assert.Equal(t, 0, res.State.CompletedFiles)
	assert.Contains(t, res.State.LastError, "bad request")
	assert.Empty(t, scm.postedComments())
	assert.Equal(t, 1, provider.calls())

	// A failed file still counts toward completion.
	assert.True(t, state.IsReviewComplete(res.State))
}

func TestRunSkipsOversizedDiff(t *testing.T) {
	provider := &scriptProvider{summary: "unused"}
	scm := &fakeScm{
		diff: domain.Diff{
			ToCommitHash: "head444",
			Files:        []domain.FileDiff{{Path: "main.go", Patch: mainPatch}},
		},
	}

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   newMemStore(),
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{TokenLimit: 10})
	require.NoError(t, err)

	res, err := orc.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, 0, provider.calls())
	require.Len(t, res.State.Files, 1)
	assert.Equal(t, domain.FileStatusSkipped, res.State.Files[0].Status)
	assert.Equal(t, pack.SkipReasonDiffTooLarge, res.State.Files[0].SkipReason)
}

func TestRunResumesFromPriorState(t *testing.T) {
	files := []string{"done.go", "todo.go"}
	prior := state.CreateReviewState("head555", files)
	prior = state.UpdatePhase(prior, domain.PhaseReviewing)

	var err error
	prior, err = state.UpdateFileStatus(prior, "done.go", domain.FileStatusReviewed, state.Meta{})
	require.NoError(t, err)
	prior, err = state.UpdateFileStatus(prior, "todo.go", domain.FileStatusSummarized, state.Meta{})
	require.NoError(t, err)

	blob, err := state.Serialize(prior)
	require.NoError(t, err)
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), "head555", blob))

	provider := &scriptProvider{review: "2-2:\nResumed review note.\n"}
	scm := &fakeScm{
		diff: domain.Diff{
			ToCommitHash: "head555",
			Files: []domain.FileDiff{
				{Path: "done.go", Patch: mainPatch},
				{Path: "todo.go", Patch: mainPatch},
			},
		},
	}

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   store,
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{TokenLimit: 1 << 20, Resume: true})
	require.NoError(t, err)

	res, err := orc.Run(context.Background(), Request{})
	require.NoError(t, err)

	// Only todo.go needed work: one review call, no summarize.
	assert.Equal(t, 1, provider.calls())
	assert.True(t, state.IsReviewComplete(res.State))
	assert.Equal(t, 2, res.State.CompletedFiles)

	posted := scm.postedComments()
	require.Len(t, posted, 1)
	assert.Equal(t, "todo.go", posted[0].Filename)
}

func TestRunPassesCommentChainsToPrompt(t *testing.T) {
	provider := &scriptProvider{
		summary: "summary",
		review:  "2-2:\nFollow-up.\n",
	}
	scm := &fakeScm{
		diff: domain.Diff{
			ToCommitHash: "head666",
			Files:        []domain.FileDiff{{Path: "main.go", Patch: mainPatch}},
		},
		chains: map[string]map[int]string{
			"main.go": {0: "reviewer-a: is three retries enough under load?"},
		},
	}

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   newMemStore(),
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{TokenLimit: 1 << 20})
	require.NoError(t, err)

	_, err = orc.Run(context.Background(), Request{})
	require.NoError(t, err)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.Len(t, provider.prompts, 2)
	reviewPrompt := provider.prompts[1]
	assert.Contains(t, reviewPrompt, "is three retries enough under load?")
	assert.Contains(t, reviewPrompt, pack.CommentChainsDelimiter)
}

func TestRunResumesAfterCancelledSummarizePhase(t *testing.T) {
	provider := &scriptProvider{
		summary: "Adds a retry count.",
		review:  "2-2:\nBound the retry count by config.\n",
	}
	scm := &fakeScm{
		diff: domain.Diff{
			ToCommitHash: "head888",
			Files:        []domain.FileDiff{{Path: "main.go", Patch: mainPatch}},
		},
	}
	store := newMemStore()

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   store,
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{TokenLimit: 1 << 20, Resume: true})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := orc.Run(cancelled, Request{})
	require.NoError(t, err)
	require.Equal(t, 0, provider.calls())
	require.False(t, state.IsReviewComplete(res.State))

	// The interrupted run must not advance past summarizing, or its
	// pending files would never be dispatched again.
	blob, err := store.Load(context.Background(), "head888")
	require.NoError(t, err)
	saved := state.Deserialize(blob)
	require.NotNil(t, saved)
	assert.Equal(t, domain.PhaseSummarizing, saved.Phase)

	res, err = orc.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls())
	assert.True(t, state.IsReviewComplete(res.State))
	assert.Equal(t, 1, res.State.CompletedFiles)
	require.Len(t, scm.postedComments(), 1)
}

func TestRunRestartsIncompleteStateWithNoDispatchableWork(t *testing.T) {
	// A reviewing-phase state whose files are still pending has nothing
	// eligible to dispatch. Adopting it as-is would end the run with the
	// review forever incomplete; it must start cold instead.
	files := []string{"main.go"}
	stranded := state.CreateReviewState("head999", files)
	stranded = state.UpdatePhase(stranded, domain.PhaseReviewing)

	blob, err := state.Serialize(stranded)
	require.NoError(t, err)
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), "head999", blob))

	provider := &scriptProvider{
		summary: "Adds a retry count.",
		review:  "2-2:\nBound the retry count by config.\n",
	}
	scm := &fakeScm{
		diff: domain.Diff{
			ToCommitHash: "head999",
			Files:        []domain.FileDiff{{Path: "main.go", Patch: mainPatch}},
		},
	}

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   store,
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{TokenLimit: 1 << 20, Resume: true})
	require.NoError(t, err)

	res, err := orc.Run(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls())
	assert.True(t, state.IsReviewComplete(res.State))
	assert.Equal(t, 1, res.State.CompletedFiles)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptProvider{summary: "s", review: "r"}
	scm := &fakeScm{
		diff: domain.Diff{
			ToCommitHash: "head777",
			Files:        []domain.FileDiff{{Path: "main.go", Patch: mainPatch}},
		},
	}

	orc, err := New(Deps{
		Provider:     provider,
		Scm:          scm,
		StateStore:   newMemStore(),
		TokenCounter: pack.TokenCounter(runeCounter),
	}, Config{TokenLimit: 1 << 20, CallTimeout: time.Second})
	require.NoError(t, err)

	res, err := orc.Run(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, 0, provider.calls())
	assert.False(t, state.IsReviewComplete(res.State))
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := New(Deps{}, Config{})
	require.Error(t, err)
}
