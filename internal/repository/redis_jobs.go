package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/job"
	appredis "github.com/fedutinova/bikeshare/internal/redis"
	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "job:"

// RedisJobStore keeps one JSON document per job in the jobs database.
type RedisJobStore struct {
	client *redis.Client
}

func NewRedisJobStore(svc *appredis.Service) *RedisJobStore {
	return &RedisJobStore{client: svc.Client()}
}

func (s *RedisJobStore) Save(ctx context.Context, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+j.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*job.Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, common.WrapUnavailable("get job", err)
	}

	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &j, nil
}

func (s *RedisJobStore) ListIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	iter := s.client.Scan(ctx, 0, jobKeyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), jobKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return ids, nil
}

func (s *RedisJobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
