package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/google/uuid"
)

// Store persists job records keyed by job ID.
type Store interface {
	Save(ctx context.Context, j *Job) error
	// Get returns common.ErrJobNotFound when the ID is unknown.
	Get(ctx context.Context, id string) (*Job, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// Enqueuer is the producer side of the job queue.
type Enqueuer interface {
	Push(ctx context.Context, jobID string) error
}

// Manager owns the job lifecycle: creation, persistence, enqueueing and
// status changes. API handlers and workers both go through it.
type Manager struct {
	store Store
	queue Enqueuer
	now   func() time.Time
}

func NewManager(store Store, queue Enqueuer) *Manager {
	return &Manager{
		store: store,
		queue: queue,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ParseRange validates a submitted date range. Both dates must be MM/DD/YYYY
// and start must be strictly before end.
func ParseRange(startRaw, endRaw string) (Date, Date, error) {
	start, err := ParseDate(startRaw)
	if err != nil {
		return Date{}, Date{}, common.ValidationError{Field: "start_date", Message: err.Error()}
	}
	end, err := ParseDate(endRaw)
	if err != nil {
		return Date{}, Date{}, common.ValidationError{Field: "end_date", Message: err.Error()}
	}
	if !start.Before(end.Time) {
		return Date{}, Date{}, common.ValidationError{Field: "end_date", Message: "start_date must be before end_date"}
	}
	return start, end, nil
}

// Submit creates a job for the range, persists it and pushes its ID onto the
// queue. Nothing is written when the range is invalid.
func (m *Manager) Submit(ctx context.Context, startRaw, endRaw string) (*Job, error) {
	start, end, err := ParseRange(startRaw, endRaw)
	if err != nil {
		return nil, err
	}

	j := &Job{
		ID:        uuid.NewString(),
		Status:    StatusSubmitted,
		StartDate: start,
		EndDate:   end,
		CreatedAt: m.now(),
	}

	if err := m.store.Save(ctx, j); err != nil {
		return nil, common.WrapUnavailable("save job", err)
	}

	if err := m.queue.Push(ctx, j.ID); err != nil {
		slog.Error("failed to enqueue job", "job_id", j.ID, "error", err)
		if failErr := m.MarkFailed(ctx, j.ID, fmt.Sprintf("enqueue failed: %v", err)); failErr != nil {
			slog.Error("failed to mark unqueued job as failed", "job_id", j.ID, "error", failErr)
		}
		return nil, common.WrapUnavailable("enqueue job", err)
	}

	slog.Info("job submitted",
		"job_id", j.ID,
		"start_date", j.StartDate.String(),
		"end_date", j.EndDate.String())
	return j, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Job, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := m.store.ListIDs(ctx)
	if err != nil {
		return nil, common.WrapUnavailable("list jobs", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// UpdateStatus overwrites the status of a job and re-persists the record.
// Backward transitions are rejected with common.ErrInvalidTransition.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status Status) error {
	return m.mutate(ctx, id, status, func(*Job) {})
}

// MarkInProgress moves a job to in_progress and stamps its start time.
func (m *Manager) MarkInProgress(ctx context.Context, id string) (*Job, error) {
	var out *Job
	err := m.mutate(ctx, id, StatusInProgress, func(j *Job) {
		now := m.now()
		j.StartedAt = &now
		j.Error = ""
		out = j
	})
	return out, err
}

// MarkComplete finishes a job, recording what the aggregation produced.
func (m *Manager) MarkComplete(ctx context.Context, id, granularity string, buckets int) error {
	return m.mutate(ctx, id, StatusComplete, func(j *Job) {
		now := m.now()
		j.FinishedAt = &now
		j.Granularity = granularity
		j.BucketCount = buckets
	})
}

// MarkFailed finishes a job with the reason it failed.
func (m *Manager) MarkFailed(ctx context.Context, id, reason string) error {
	return m.mutate(ctx, id, StatusFailed, func(j *Job) {
		now := m.now()
		j.FinishedAt = &now
		j.Error = reason
	})
}

func (m *Manager) mutate(ctx context.Context, id string, status Status, apply func(*Job)) error {
	j, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !j.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, j.Status, status)
	}

	j.Status = status
	apply(j)

	if err := m.store.Save(ctx, j); err != nil {
		return common.WrapUnavailable("save job", err)
	}
	slog.Debug("job status updated", "job_id", id, "status", status)
	return nil
}

// IsInvalidTransition reports whether err came from a rejected status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, common.ErrInvalidTransition)
}
