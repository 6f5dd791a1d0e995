package http

import (
	"sync"
	"time"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/retry"
)

// Stats are aggregate counters for provider calls in one run.
type Stats struct {
	Requests      int
	TokensIn      int
	TokensOut     int
	Duration      time.Duration
	Errors        int
	ErrorsByType  map[retry.ErrorType]int
	FilesReviewed int
	FilesSkipped  int
	FilesFailed   int
}

// Metrics tracks call statistics in memory. Safe for concurrent use.
type Metrics struct {
	mu    sync.Mutex
	stats Stats
}

// NewMetrics creates an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{stats: Stats{ErrorsByType: make(map[retry.ErrorType]int)}}
}

// RecordCall records one completed provider call.
func (m *Metrics) RecordCall(duration time.Duration, tokensIn, tokensOut int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Requests++
	m.stats.Duration += duration
	m.stats.TokensIn += tokensIn
	m.stats.TokensOut += tokensOut
}

// RecordError records a classified call failure.
func (m *Metrics) RecordError(errType retry.ErrorType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Errors++
	m.stats.ErrorsByType[errType]++
}

// RecordFileOutcome tallies the terminal disposition of one file.
func (m *Metrics) RecordFileOutcome(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch status {
	case domain.FileStatusReviewed:
		m.stats.FilesReviewed++
	case domain.FileStatusSkipped:
		m.stats.FilesSkipped++
	case domain.FileStatusFailed:
		m.stats.FilesFailed++
	}
}

// Snapshot returns a copy of the current statistics.
func (m *Metrics) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.stats
	out.ErrorsByType = make(map[retry.ErrorType]int, len(m.stats.ErrorsByType))
	for k, v := range m.stats.ErrorsByType {
		out.ErrorsByType[k] = v
	}
	return out
}
