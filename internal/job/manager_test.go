package job_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/job"
	"github.com/fedutinova/bikeshare/internal/memq"
	"github.com/fedutinova/bikeshare/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*job.Manager, memq.Queue, *repository.MemoryJobStore) {
	t.Helper()
	store := repository.NewMemoryJobStore()
	q := memq.NewMemoryQueue(64)
	t.Cleanup(func() { q.Close() })
	return job.NewManager(store, q), q, store
}

func TestSubmit_CreatesAndEnqueues(t *testing.T) {
	ctx := context.Background()
	m, q, _ := newManager(t)

	seen := map[string]bool{}
	for range 20 {
		j, err := m.Submit(ctx, "05/01/2020", "06/01/2020")
		require.NoError(t, err)
		assert.Equal(t, job.StatusSubmitted, j.Status)
		assert.False(t, seen[j.ID], "duplicate id %s", j.ID)
		seen[j.ID] = true
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	ids, err := m.ListIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 20)

	msg, err := q.Pop(ctx, "test")
	require.NoError(t, err)
	got, err := m.Get(ctx, msg.JobID)
	require.NoError(t, err)
	assert.Equal(t, "05/01/2020", got.StartDate.String())
	assert.Equal(t, "06/01/2020", got.EndDate.String())
}

func TestSubmit_InvalidRangeCreatesNothing(t *testing.T) {
	ctx := context.Background()
	m, q, _ := newManager(t)

	cases := [][2]string{
		{"06/01/2020", "05/01/2020"},
		{"05/01/2020", "05/01/2020"},
		{"2020-05-01", "06/01/2020"},
		{"05/01/2020", ""},
	}
	for _, c := range cases {
		_, err := m.Submit(ctx, c[0], c[1])
		assert.ErrorIs(t, err, common.ErrInvalidParameters, "%v", c)
		assert.True(t, common.IsValidation(err))
	}

	ids, err := m.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmit_EnqueueFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	m, q, _ := newManager(t)
	require.NoError(t, q.Close())

	_, err := m.Submit(ctx, "05/01/2020", "06/01/2020")
	require.Error(t, err)
	assert.True(t, common.IsUnavailable(err))
	assert.ErrorIs(t, err, memq.ErrClosed)

	ids, err := m.ListIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	j, err := m.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Contains(t, j.Error, "enqueue failed")
}

func TestGet_NotFound(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrJobNotFound)
	assert.True(t, common.IsNotFound(err))
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	j, err := m.Submit(ctx, "05/01/2020", "06/01/2020")
	require.NoError(t, err)

	started, err := m.MarkInProgress(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	require.NoError(t, m.MarkComplete(ctx, j.ID, "daily", 31))
	done, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusComplete, done.Status)
	assert.Equal(t, "daily", done.Granularity)
	assert.Equal(t, 31, done.BucketCount)
	require.NotNil(t, done.FinishedAt)
	assert.Equal(t, j.CreatedAt, done.CreatedAt)
	assert.Equal(t, "05/01/2020", done.StartDate.String())

	err = m.UpdateStatus(ctx, j.ID, job.StatusInProgress)
	assert.True(t, job.IsInvalidTransition(err))
	err = m.MarkFailed(ctx, j.ID, "late failure")
	assert.True(t, job.IsInvalidTransition(err))

	// rewriting the terminal status is an idempotent overwrite
	require.NoError(t, m.UpdateStatus(ctx, j.ID, job.StatusComplete))
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)

	err := m.UpdateStatus(ctx, "missing", job.StatusInProgress)
	assert.ErrorIs(t, err, common.ErrJobNotFound)

	j, err := m.Submit(ctx, "05/01/2020", "06/01/2020")
	require.NoError(t, err)
	require.NoError(t, m.UpdateStatus(ctx, j.ID, job.StatusInProgress))

	got, err := m.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusInProgress, got.Status)
	assert.Equal(t, j.StartDate.String(), got.StartDate.String())

	err = m.UpdateStatus(ctx, j.ID, job.StatusSubmitted)
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))
}
