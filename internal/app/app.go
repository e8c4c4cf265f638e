// Package app wires configuration into the stores, queue and services shared
// by the API and worker processes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fedutinova/bikeshare/internal/chart"
	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/config"
	"github.com/fedutinova/bikeshare/internal/database"
	"github.com/fedutinova/bikeshare/internal/job"
	"github.com/fedutinova/bikeshare/internal/memq"
	"github.com/fedutinova/bikeshare/internal/queue"
	appredis "github.com/fedutinova/bikeshare/internal/redis"
	"github.com/fedutinova/bikeshare/internal/repository"
	"github.com/fedutinova/bikeshare/internal/storage"
	httpapi "github.com/fedutinova/bikeshare/internal/transport/http"
	"github.com/fedutinova/bikeshare/internal/trips"
	"github.com/fedutinova/bikeshare/internal/workers"
)

// connectAttempts bounds startup retries before a store counts as down.
const connectAttempts = 6

type App struct {
	Config   config.Config
	Jobs     *job.Manager
	Queue    memq.Queue
	Trips    *trips.RedisStore
	Storage  storage.Storage
	Renderer chart.Renderer
	Checks   map[string]httpapi.Pinger

	redisQueue *queue.RedisQueue
	redisDBs   map[int]*appredis.Service
	db         *database.DB
}

// New connects every store named by cfg. Connections are retried with
// backoff; a store still unreachable after that is a startup error.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a := &App{
		Config:   cfg,
		Renderer: chart.NewBarRenderer(cfg.ChartWidth, cfg.ChartHeight),
		Checks:   map[string]httpapi.Pinger{},
		redisDBs: map[int]*appredis.Service{},
	}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	tripsDB, err := a.redis(ctx, cfg.RedisTripsDB)
	if err != nil {
		return err
	}
	a.Trips = trips.NewRedisStore(tripsDB)
	a.Checks["redis_trips"] = tripsDB

	var jobStore job.Store
	switch cfg.JobStore {
	case "postgres":
		db, err := connect(ctx, cfg, "postgres", func(ctx context.Context) (*database.DB, error) {
			return database.NewDB(ctx, cfg.DatabaseURL)
		})
		if err != nil {
			return err
		}
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate job store: %w", err)
		}
		jobStore = repository.NewPostgresJobStore(db.Pool())
		a.Checks["postgres"] = db
	case "memory":
		jobStore = repository.NewMemoryJobStore()
	default:
		svc, err := a.redis(ctx, cfg.RedisJobsDB)
		if err != nil {
			return err
		}
		store := repository.NewRedisJobStore(svc)
		jobStore = store
		a.Checks["redis_jobs"] = store
	}

	switch cfg.QueueBackend {
	case "memory":
		a.Queue = memq.NewMemoryQueue(cfg.QueueBuf)
	default:
		svc, err := a.redis(ctx, cfg.RedisQueueDB)
		if err != nil {
			return err
		}
		rq, err := queue.NewRedisQueue(svc.Client(), queue.RedisQueueConfig{
			Stream:        cfg.QueueStream,
			Group:         cfg.QueueGroup,
			Block:         cfg.QueueBlock,
			ClaimInterval: cfg.QueueClaimInterval,
			ClaimTimeout:  cfg.QueueClaimTimeout,
			MaxDeliveries: int64(cfg.QueueMaxDeliveries),
		})
		if err != nil {
			return err
		}
		a.redisQueue = rq
		a.Queue = rq
		a.Checks["redis_queue"] = svc
	}

	a.Jobs = job.NewManager(jobStore, a.Queue)

	var results *appredis.Service
	if storage.UsesRedis(cfg) {
		results, err = a.redis(ctx, cfg.RedisResultsDB)
		if err != nil {
			return err
		}
		a.Checks["redis_results"] = results
	}
	a.Storage, err = storage.NewStorage(ctx, cfg, results)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	slog.Info("storage initialized", "type", storage.GetStorageType(cfg))

	return nil
}

// StartRedelivery starts the queue claimer when redelivery is enabled. Jobs
// whose entries are dead-lettered are marked failed.
func (a *App) StartRedelivery(ctx context.Context) {
	if a.redisQueue == nil {
		return
	}
	a.redisQueue.OnDeadLetter(func(ctx context.Context, jobID, reason string) {
		if err := a.Jobs.MarkFailed(ctx, jobID, "dead-lettered: "+reason); err != nil {
			slog.Error("failed to mark dead-lettered job", "job_id", jobID, "error", err)
		}
	})
	a.redisQueue.StartClaimer(ctx)
}

// NewWorker builds the n-th consume loop of this process.
func (a *App) NewWorker(n int) *workers.Worker {
	return workers.New(workers.Options{
		Jobs:             a.Jobs,
		Queue:            a.Queue,
		Trips:            a.Trips,
		Ready:            a.Trips,
		Renderer:         a.Renderer,
		Storage:          a.Storage,
		Consumer:         fmt.Sprintf("%s-%d", a.Config.ConsumerName, n),
		MaxJobDuration:   a.Config.JobMaxDuration,
		ReadyPollInitial: a.Config.ReadyPollInitial,
		ReadyPollMax:     a.Config.ReadyPollMax,
	})
}

// Handlers returns the HTTP handlers over this process's stores.
func (a *App) Handlers() *httpapi.Handlers {
	return &httpapi.Handlers{
		Jobs:    a.Jobs,
		Trips:   a.Trips,
		Storage: a.Storage,
		Queue:   a.Queue,
		Checks:  a.Checks,
		Config:  a.Config,
	}
}

func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			slog.Error("failed to close queue", "error", err)
		}
	}
	for db, svc := range a.redisDBs {
		if err := svc.Close(); err != nil {
			slog.Error("failed to close redis", "db", db, "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// redis returns one client per logical database, shared by every store on it.
func (a *App) redis(ctx context.Context, db int) (*appredis.Service, error) {
	if svc, ok := a.redisDBs[db]; ok {
		return svc, nil
	}
	svc, err := connect(ctx, a.Config, fmt.Sprintf("redis db %d", db), func(ctx context.Context) (*appredis.Service, error) {
		return appredis.New(ctx, a.Config.RedisURL, db)
	})
	if err != nil {
		return nil, err
	}
	a.redisDBs[db] = svc
	return svc, nil
}

func connect[T any](ctx context.Context, cfg config.Config, name string, dial func(context.Context) (T, error)) (T, error) {
	delay := cfg.ReadyPollInitial
	if delay <= 0 {
		delay = time.Second
	}
	var (
		out T
		err error
	)
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		out, err = dial(ctx)
		if err == nil {
			return out, nil
		}
		if attempt == connectAttempts {
			break
		}
		slog.Warn("store unavailable, retrying", "store", name, "attempt", attempt, "retry_in", delay, "error", err)
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, max(cfg.ReadyPollMax, delay))
	}
	return out, common.WrapUnavailable("connect "+name, err)
}
