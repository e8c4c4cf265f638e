package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_RetriesUntilSuccess(t *testing.T) {
	cfg := config.Config{ReadyPollInitial: time.Millisecond, ReadyPollMax: 2 * time.Millisecond}
	calls := 0
	got, err := connect(context.Background(), cfg, "flaky", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestConnect_GivesUp(t *testing.T) {
	cfg := config.Config{ReadyPollInitial: time.Millisecond, ReadyPollMax: time.Millisecond}
	calls := 0
	_, err := connect(context.Background(), cfg, "down", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})
	assert.True(t, common.IsUnavailable(err))
	assert.Equal(t, connectAttempts, calls)
}

func TestConnect_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := config.Config{ReadyPollInitial: time.Hour, ReadyPollMax: time.Hour}
	_, err := connect(ctx, cfg, "down", func(context.Context) (int, error) {
		return 0, errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RejectsClaimTimeoutWithinJobDuration(t *testing.T) {
	cfg := config.Config{
		QueueClaimTimeout: time.Minute,
		JobMaxDuration:    5 * time.Minute,
	}
	a, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "JOB_MAX_DURATION")
}
