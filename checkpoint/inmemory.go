package checkpoint

import (
	"context"
	"sync"
)

// InMemoryStore keeps checkpoints in process memory. Useful for tests and
// single-process callers that only need resume-after-transient-failure.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]map[string]any
}

// NewInMemoryStore creates an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]map[string]any)}
}

// SaveStep records the document under the run.
func (s *InMemoryStore) SaveStep(ctx context.Context, runID, stepKey string, doc any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		run = make(map[string]any)
		s.runs[runID] = run
	}
	run[stepKey] = doc
	return nil
}

// LoadRun returns a copy of the run's saved documents.
func (s *InMemoryStore) LoadRun(ctx context.Context, runID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(run))
	for k, v := range run {
		out[k] = v
	}
	return out, nil
}

// ClearRun discards the run's saved documents.
func (s *InMemoryStore) ClearRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
