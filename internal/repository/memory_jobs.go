package repository

import (
	"context"
	"sync"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/job"
)

// MemoryJobStore is a process-local job store for single-process mode and tests.
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]job.Job
	order []string
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]job.Job)}
}

func (s *MemoryJobStore) Save(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		s.order = append(s.order, j.ID)
	}
	s.jobs[j.ID] = *j
	return nil
}

// Get returns a copy so callers cannot mutate the stored record.
func (s *MemoryJobStore) Get(ctx context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, common.ErrJobNotFound
	}
	return &j, nil
}

func (s *MemoryJobStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.order...), nil
}
