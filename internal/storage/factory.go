package storage

import (
	"context"
	"strings"

	appconfig "github.com/fedutinova/bikeshare/internal/config"
	appredis "github.com/fedutinova/bikeshare/internal/redis"
)

// NewStorage picks the result store backend from STORAGE_MODE. The Redis
// service is only used in redis mode.
func NewStorage(ctx context.Context, cfg appconfig.Config, results *appredis.Service) (Storage, error) {
	switch cfg.StorageMode {
	case "s3", "aws", "localstack":
		return NewS3Storage(ctx, cfg)
	case "local", "filesystem":
		return NewLocalStorage(cfg.LocalStorageDir)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return NewRedisStorage(results), nil
	}
}

// UsesRedis reports whether NewStorage needs the results Redis service.
func UsesRedis(cfg appconfig.Config) bool {
	switch cfg.StorageMode {
	case "s3", "aws", "localstack", "local", "filesystem", "memory":
		return false
	default:
		return true
	}
}

func GetStorageType(cfg appconfig.Config) string {
	switch cfg.StorageMode {
	case "s3", "aws", "localstack":
		if isLocalStack(cfg.S3Endpoint) {
			return "LocalStack S3"
		}
		return "AWS S3"
	case "local", "filesystem":
		return "Local Filesystem"
	case "memory":
		return "In-memory"
	default:
		return "Redis (default)"
	}
}

func isLocalStack(endpoint string) bool {
	return endpoint != "" && (strings.Contains(endpoint, "localstack") || strings.Contains(endpoint, "4566"))
}
