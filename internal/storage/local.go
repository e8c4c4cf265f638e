package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

// LocalStorage writes one file per job under baseDir.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (s *LocalStorage) PutArtifact(ctx context.Context, jobID string, data []byte, contentType string) error {
	path, err := s.path(jobID)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	slog.Info("artifact written to local storage", "job_id", jobID, "path", path, "size", len(data))
	return nil
}

// GetArtifact detects the content type from the file contents.
func (s *LocalStorage) GetArtifact(ctx context.Context, jobID string) (*Artifact, error) {
	path, err := s.path(jobID)
	if err != nil {
		return nil, common.ErrArtifactNotFound
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, common.ErrArtifactNotFound
	}

	return &Artifact{Data: data, ContentType: mimetype.Detect(data).String()}, nil
}

func (s *LocalStorage) DeleteArtifact(ctx context.Context, jobID string) error {
	path, err := s.path(jobID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	slog.Info("artifact deleted from local storage", "job_id", jobID, "path", path)
	return nil
}

func (s *LocalStorage) path(jobID string) (string, error) {
	if jobID == "" || jobID != filepath.Base(jobID) || jobID == "." || jobID == ".." {
		return "", common.ValidationError{Field: "job_id", Message: "invalid job id"}
	}
	return filepath.Join(s.baseDir, jobID), nil
}
