package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	appredis "github.com/fedutinova/bikeshare/internal/redis"
	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "result:"

// RedisStorage keeps each artifact as a hash in the results database.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(svc *appredis.Service) *RedisStorage {
	return &RedisStorage{client: svc.Client()}
}

func (s *RedisStorage) PutArtifact(ctx context.Context, jobID string, data []byte, contentType string) error {
	err := s.client.HSet(ctx, resultKeyPrefix+jobID,
		"image", data,
		"content_type", contentType,
		"created_at", time.Now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return common.WrapUnavailable("store artifact", err)
	}
	slog.Debug("artifact stored in redis", "job_id", jobID, "size", len(data))
	return nil
}

func (s *RedisStorage) GetArtifact(ctx context.Context, jobID string) (*Artifact, error) {
	vals, err := s.client.HMGet(ctx, resultKeyPrefix+jobID, "image", "content_type").Result()
	if err != nil {
		return nil, common.WrapUnavailable("get artifact", err)
	}
	image, ok := vals[0].(string)
	if !ok || image == "" {
		return nil, common.ErrArtifactNotFound
	}
	contentType, _ := vals[1].(string)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Artifact{Data: []byte(image), ContentType: contentType}, nil
}

func (s *RedisStorage) DeleteArtifact(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, resultKeyPrefix+jobID).Err(); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
