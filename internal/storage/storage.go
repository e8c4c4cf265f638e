package storage

import (
	"context"
)

// Storage is the result store: one artifact per job ID.
type Storage interface {
	PutArtifact(ctx context.Context, jobID string, data []byte, contentType string) error
	// GetArtifact returns common.ErrArtifactNotFound when nothing was stored.
	GetArtifact(ctx context.Context, jobID string) (*Artifact, error)
	DeleteArtifact(ctx context.Context, jobID string) error
}

// Artifact is the stored output of a completed job.
type Artifact struct {
	Data        []byte
	ContentType string
}
