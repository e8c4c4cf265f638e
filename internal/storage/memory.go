package storage

import (
	"context"
	"sync"

	"github.com/fedutinova/bikeshare/internal/common"
)

// MemoryStorage keeps artifacts in process memory.
type MemoryStorage struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{artifacts: map[string]Artifact{}}
}

func (s *MemoryStorage) PutArtifact(_ context.Context, jobID string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[jobID] = Artifact{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (s *MemoryStorage) GetArtifact(_ context.Context, jobID string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[jobID]
	if !ok {
		return nil, common.ErrArtifactNotFound
	}
	return &Artifact{Data: append([]byte(nil), a.Data...), ContentType: a.ContentType}, nil
}

func (s *MemoryStorage) DeleteArtifact(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, jobID)
	return nil
}
