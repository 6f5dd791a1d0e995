package review

import (
	"context"
	"sync"

	"github.com/reviewpilot/reviewpilot/internal/usecase/state"
)

// stateOwner serializes all mutations of the review state. Workers run
// concurrently; every transition goes through the owner's mutex and is
// persisted before the lock is released, so the stored blob never lags
// the in-memory state.
type stateOwner struct {
	o  *Orchestrator
	mu sync.Mutex
	st state.ReviewState
}

func newStateOwner(o *Orchestrator, st state.ReviewState) *stateOwner {
	return &stateOwner{o: o, st: st}
}

func (s *stateOwner) snapshot() state.ReviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *stateOwner) updateFile(ctx context.Context, filename, status string, meta state.Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := state.UpdateFileStatus(s.st, filename, status, meta)
	if err != nil {
		s.o.deps.Logger.LogWarning(ctx, "state update skipped", map[string]interface{}{
			"file": filename, "status": status, "error": err.Error(),
		})
		return
	}
	s.st = next
	s.persistLocked(ctx)
}

func (s *stateOwner) updatePhase(ctx context.Context, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = state.UpdatePhase(s.st, phase)
	s.persistLocked(ctx)
}

func (s *stateOwner) recordError(ctx context.Context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = state.RecordError(s.st, message)
	s.persistLocked(ctx)
}

func (s *stateOwner) persist(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(ctx)
}

// persistLocked writes the current state through the store. Persistence
// failures are logged, not fatal: the run can finish without resume
// support.
func (s *stateOwner) persistLocked(ctx context.Context) {
	blob, err := state.Serialize(s.st)
	if err != nil {
		s.o.deps.Logger.LogError(ctx, "state serialize failed", map[string]interface{}{
			"commit": s.st.CommitID, "error": err.Error(),
		})
		return
	}
	if err := s.o.deps.StateStore.Save(ctx, s.st.CommitID, blob); err != nil {
		s.o.deps.Logger.LogWarning(ctx, "state save failed", map[string]interface{}{
			"commit": s.st.CommitID, "error": err.Error(),
		})
	}
}
