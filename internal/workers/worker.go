package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/fedutinova/bikeshare/internal/analytics"
	"github.com/fedutinova/bikeshare/internal/chart"
	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/job"
	"github.com/fedutinova/bikeshare/internal/memq"
	"github.com/fedutinova/bikeshare/internal/storage"
	"github.com/fedutinova/bikeshare/internal/trips"
)

// ReadyChecker reports whether trip data can be scanned.
type ReadyChecker interface {
	Ready(ctx context.Context) (bool, error)
}

// Consumer is the consumer side of the job queue.
type Consumer interface {
	Pop(ctx context.Context, consumer string) (memq.Message, error)
	Ack(ctx context.Context, msg memq.Message) error
}

type Options struct {
	Jobs     *job.Manager
	Queue    Consumer
	Trips    trips.Source
	Ready    ReadyChecker
	Renderer chart.Renderer
	Storage  storage.Storage

	Consumer         string
	MaxJobDuration   time.Duration
	ReadyPollInitial time.Duration
	ReadyPollMax     time.Duration
}

// FailedError is returned by Process when a job was recorded as failed.
type FailedError struct {
	JobID string
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.JobID, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Worker runs one consume loop: pop a job ID, aggregate trips, render the
// chart, store it and record the outcome on the job.
type Worker struct {
	jobs     *job.Manager
	queue    Consumer
	trips    trips.Source
	ready    ReadyChecker
	renderer chart.Renderer
	storage  storage.Storage

	consumer    string
	maxDuration time.Duration
	pollInitial time.Duration
	pollMax     time.Duration
}

func New(opts Options) *Worker {
	w := &Worker{
		jobs:        opts.Jobs,
		queue:       opts.Queue,
		trips:       opts.Trips,
		ready:       opts.Ready,
		renderer:    opts.Renderer,
		storage:     opts.Storage,
		consumer:    opts.Consumer,
		maxDuration: opts.MaxJobDuration,
		pollInitial: opts.ReadyPollInitial,
		pollMax:     opts.ReadyPollMax,
	}
	if w.consumer == "" {
		w.consumer = "worker"
	}
	if w.pollInitial <= 0 {
		w.pollInitial = time.Second
	}
	if w.pollMax < w.pollInitial {
		w.pollMax = w.pollInitial
	}
	return w
}

// Run waits for the trip store to become ready and then consumes jobs until
// ctx is cancelled or the queue is closed. A job already popped is finished
// before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.WaitReady(ctx); err != nil {
		slog.Info("worker stopped before trip store was ready", "consumer", w.consumer)
		return nil
	}
	slog.Info("worker started", "consumer", w.consumer)

	for {
		msg, err := w.queue.Pop(ctx, w.consumer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memq.ErrClosed) {
				slog.Info("worker stopped", "consumer", w.consumer)
				return nil
			}
			slog.Error("failed to pop job", "consumer", w.consumer, "error", err)
			continue
		}

		jobCtx := context.WithoutCancel(ctx)
		err = w.Process(jobCtx, msg.JobID)
		var failed *FailedError
		if common.IsUnavailable(err) && !errors.As(err, &failed) {
			// left pending so the claimer can redeliver it
			slog.Error("job outcome not recorded", "job_id", msg.JobID, "error", err)
			continue
		}
		if err := w.queue.Ack(jobCtx, msg); err != nil {
			slog.Error("failed to ack job", "job_id", msg.JobID, "message_id", msg.ID, "error", err)
		}
	}
}

// WaitReady polls the trip store with exponential backoff until it reports
// ready. It returns only on readiness or ctx cancellation.
func (w *Worker) WaitReady(ctx context.Context) error {
	if w.ready == nil {
		return nil
	}
	delay := w.pollInitial
	for {
		ok, err := w.ready.Ready(ctx)
		if err == nil && ok {
			return nil
		}
		slog.Info("trip store not ready, waiting",
			"consumer", w.consumer,
			"retry_in", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, w.pollMax)
	}
}

// Process runs one job to a terminal status. Jobs that are unknown or already
// terminal are skipped. The returned error is the reason the job failed, or a
// store error if its status could not be recorded.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	j, err := w.jobs.Get(ctx, jobID)
	if common.IsNotFound(err) {
		slog.Warn("skipping unknown job", "job_id", jobID)
		return nil
	}
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		slog.Info("skipping finished job", "job_id", jobID, "status", j.Status)
		return nil
	}

	j, err = w.jobs.MarkInProgress(ctx, jobID)
	if err != nil {
		return err
	}
	slog.Info("processing job",
		"job_id", jobID,
		"consumer", w.consumer,
		"start_date", j.StartDate.String(),
		"end_date", j.EndDate.String())

	started := time.Now()
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.maxDuration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, w.maxDuration)
	}
	res, err := w.execute(runCtx, j)
	cancel()

	if err != nil {
		slog.Error("job failed", "job_id", jobID, "error", err, "duration", time.Since(started))
		if markErr := w.jobs.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			return markErr
		}
		return &FailedError{JobID: jobID, Err: err}
	}

	if err := w.jobs.MarkComplete(ctx, jobID, string(res.Granularity), len(res.Buckets)); err != nil {
		return err
	}
	slog.Info("job done",
		"job_id", jobID,
		"granularity", res.Granularity,
		"buckets", len(res.Buckets),
		"duration", time.Since(started))
	return nil
}

// execute never panics; a panic in aggregation or rendering becomes a
// computation error.
func (w *Worker) execute(ctx context.Context, j *job.Job) (res *analytics.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing job", "job_id", j.ID, "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = fmt.Errorf("%w: panic: %v", common.ErrComputation, r)
		}
	}()

	res, err = analytics.Compute(ctx, w.trips, j.StartDate.Time, j.EndDate.Time)
	if err != nil {
		return nil, err
	}

	buckets, err := res.Buckets.Sorted(res.Granularity)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Trips per %s, %s - %s", unit(res.Granularity), j.StartDate, j.EndDate)
	img, err := w.renderer.Render(title, buckets)
	if err != nil {
		return nil, common.WrapComputation("render chart", err)
	}

	if err := w.storage.PutArtifact(ctx, j.ID, img, w.renderer.ContentType()); err != nil {
		return nil, err
	}
	return res, nil
}

func unit(g analytics.Granularity) string {
	if g == analytics.Monthly {
		return "month"
	}
	return "day"
}
