package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

// RunStore records runs in memory. It implements catalog.RunRecorder.
type RunStore struct {
	mu     sync.RWMutex
	runs   map[string]catalog.RunSummary
	latest string
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]catalog.RunSummary)}
}

// StartRun records a running entry.
func (s *RunStore) StartRun(_ context.Context, runID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; ok {
		return nil
	}
	s.runs[runID] = catalog.RunSummary{RunID: runID, StartedAt: startedAt, Status: catalog.RunRunning}
	s.track(runID, startedAt)
	return nil
}

// CompleteRun stores the terminal summary.
func (s *RunStore) CompleteRun(_ context.Context, summary catalog.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[summary.RunID] = summary
	s.track(summary.RunID, summary.StartedAt)
	return nil
}

// LatestRun returns the most recently started run.
func (s *RunStore) LatestRun(_ context.Context) (catalog.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == "" {
		return catalog.RunSummary{}, catalog.ErrRunNotFound
	}
	return s.runs[s.latest], nil
}

func (s *RunStore) track(runID string, startedAt time.Time) {
	if s.latest == "" || !startedAt.Before(s.runs[s.latest].StartedAt) {
		s.latest = runID
	}
}
