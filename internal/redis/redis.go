package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Service wraps one logical Redis database. The trips, queue, jobs and
// results stores each get their own Service on a separate DB index.
type Service struct {
	client *redis.Client
	db     int
}

func New(ctx context.Context, redisURL string, db int) (*Service, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DB = db

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis db %d: %w", db, err)
	}

	return &Service{client: client, db: db}, nil
}

// NewFromClient wraps an existing client, used by tests.
func NewFromClient(client *redis.Client) *Service {
	return &Service{client: client, db: client.Options().DB}
}

func (s *Service) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *Service) Client() *redis.Client {
	return s.client
}

func (s *Service) DB() int {
	return s.db
}

func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Loading reports whether Redis is still loading its dataset from disk.
func (s *Service) Loading(ctx context.Context) (bool, error) {
	info, err := s.client.Info(ctx, "persistence").Result()
	if err != nil {
		return false, fmt.Errorf("failed to read persistence info: %w", err)
	}
	return parseLoading(info), nil
}

func parseLoading(info string) bool {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "loading:"); ok {
			return v == "1"
		}
	}
	return false
}
