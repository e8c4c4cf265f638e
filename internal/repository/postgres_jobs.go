package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/database"
	"github.com/fedutinova/bikeshare/internal/job"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PostgresJobStore keeps job records in the bikeshare_jobs table.
type PostgresJobStore struct {
	db database.Querier
}

func NewPostgresJobStore(db database.Querier) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

func (s *PostgresJobStore) Save(ctx context.Context, j *job.Job) error {
	query := `
		INSERT INTO bikeshare_jobs (id, status, start_date, end_date, created_at, started_at, finished_at, error, granularity, bucket_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			error = EXCLUDED.error,
			granularity = EXCLUDED.granularity,
			bucket_count = EXCLUDED.bucket_count
	`

	_, err := s.db.Exec(ctx, query,
		j.ID,
		string(j.Status),
		j.StartDate.Time,
		j.EndDate.Time,
		j.CreatedAt,
		j.StartedAt,
		j.FinishedAt,
		j.Error,
		j.Granularity,
		j.BucketCount,
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (*job.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrJobNotFound
	}

	query := `
		SELECT id::text, status, start_date, end_date, created_at, started_at, finished_at, error, granularity, bucket_count
		FROM bikeshare_jobs
		WHERE id = $1
	`

	var (
		j          job.Job
		status     string
		start, end time.Time
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&j.ID,
		&status,
		&start,
		&end,
		&j.CreatedAt,
		&j.StartedAt,
		&j.FinishedAt,
		&j.Error,
		&j.Granularity,
		&j.BucketCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		return nil, common.WrapUnavailable("get job", err)
	}

	j.Status = job.Status(status)
	j.StartDate = job.Date{Time: start.UTC()}
	j.EndDate = job.Date{Time: end.UTC()}
	return &j, nil
}

func (s *PostgresJobStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text FROM bikeshare_jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
