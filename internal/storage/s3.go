package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fedutinova/bikeshare/internal/common"
	appconfig "github.com/fedutinova/bikeshare/internal/config"
)

const s3KeyPrefix = "results/"

type S3Storage struct {
	client *s3.Client
	bucket string
}

func NewS3Storage(ctx context.Context, cfg appconfig.Config) (*S3Storage, error) {
	slog.Info("initializing S3 storage",
		"endpoint", cfg.S3Endpoint,
		"bucket", cfg.S3Bucket,
		"region", cfg.S3Region,
		"force_path_style", cfg.S3ForcePathStyle)

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.AWSAccessKey != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKey,
			cfg.AWSSecretKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = cfg.S3ForcePathStyle
		}
	})
	if isLocalStack(cfg.S3Endpoint) {
		slog.Info("using LocalStack configuration")
	}

	return &S3Storage{client: client, bucket: cfg.S3Bucket}, nil
}

func (s *S3Storage) PutArtifact(ctx context.Context, jobID string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3KeyPrefix + jobID),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return common.WrapUnavailable("upload artifact to S3", err)
	}

	slog.Info("artifact uploaded to S3", "job_id", jobID, "bucket", s.bucket, "size", len(data))
	return nil
}

func (s *S3Storage) GetArtifact(ctx context.Context, jobID string) (*Artifact, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3KeyPrefix + jobID),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, common.ErrArtifactNotFound
		}
		return nil, common.WrapUnavailable("get artifact from S3", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact body: %w", err)
	}

	contentType := "application/octet-stream"
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	return &Artifact{Data: data, ContentType: contentType}, nil
}

func (s *S3Storage) DeleteArtifact(ctx context.Context, jobID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3KeyPrefix + jobID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact from S3: %w", err)
	}

	slog.Info("artifact deleted from S3", "job_id", jobID, "bucket", s.bucket)
	return nil
}
