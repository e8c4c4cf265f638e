package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fedutinova/bikeshare/internal/memq"
	"github.com/redis/go-redis/v9"
)

// DeadLetterFunc is told about a job whose entry exhausted its deliveries.
type DeadLetterFunc func(ctx context.Context, jobID, reason string)

// RedisQueue implements memq.Queue using a Redis Stream and one consumer group.
// Entries are acknowledged by the consumer after the job has been handled.
// Unacknowledged entries are only redelivered when ClaimTimeout is positive.
type RedisQueue struct {
	client        *redis.Client
	stream        string
	group         string
	block         time.Duration
	claimInterval time.Duration // how often to check for stuck entries
	claimTimeout  time.Duration // entry counts as stuck after this idle time, 0 disables
	maxDeliveries int64

	reclaimed    chan memq.Message
	onDeadLetter DeadLetterFunc

	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

// RedisQueueConfig holds configuration for RedisQueue
type RedisQueueConfig struct {
	Stream        string
	Group         string
	Block         time.Duration
	ClaimInterval time.Duration
	ClaimTimeout  time.Duration
	MaxDeliveries int64
}

// DefaultConfig returns default queue configuration
func DefaultConfig() RedisQueueConfig {
	return RedisQueueConfig{
		Stream:        "bikeshare:jobs",
		Group:         "workers",
		Block:         5 * time.Second,
		ClaimInterval: 10 * time.Second,
		ClaimTimeout:  0,
		MaxDeliveries: 3,
	}
}

// NewRedisQueue creates a new Redis Streams based queue
func NewRedisQueue(client *redis.Client, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 3
	}
	q := &RedisQueue{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		block:         cfg.Block,
		claimInterval: cfg.ClaimInterval,
		claimTimeout:  cfg.ClaimTimeout,
		maxDeliveries: cfg.MaxDeliveries,
		reclaimed:     make(chan memq.Message, 16),
		closing:       make(chan struct{}),
	}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	slog.Info("Redis queue initialized",
		"stream", q.stream,
		"group", q.group,
		"claim_timeout", q.claimTimeout)

	return q, nil
}

// OnDeadLetter registers a callback for entries moved to the dead letter stream.
func (q *RedisQueue) OnDeadLetter(fn DeadLetterFunc) {
	q.onDeadLetter = fn
}

// Push appends a job identifier to the stream
func (q *RedisQueue) Push(ctx context.Context, jobID string) error {
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			"job_id":      jobID,
			"enqueued_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add job to stream: %w", err)
	}

	slog.Debug("Job enqueued", "job_id", jobID, "stream", q.stream)
	return nil
}

// Pop blocks until an entry is delivered to consumer. Reclaimed entries are
// handed out before new ones.
func (q *RedisQueue) Pop(ctx context.Context, consumer string) (memq.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return memq.Message{}, ctx.Err()
		case <-q.closing:
			return memq.Message{}, memq.ErrClosed
		case msg := <-q.reclaimed:
			return msg, nil
		default:
		}

		// Read new messages (blocking with timeout)
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    q.block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return memq.Message{}, ctx.Err()
			}
			slog.Error("Failed to read from stream", "error", err, "consumer", consumer)
			select {
			case <-ctx.Done():
				return memq.Message{}, ctx.Err()
			case <-time.After(time.Second): // backoff on error
			}
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				msg, ok := q.toMessage(ctx, xmsg, 1)
				if ok {
					return msg, nil
				}
			}
		}
	}
}

// toMessage converts a stream entry, acknowledging and dropping malformed ones.
func (q *RedisQueue) toMessage(ctx context.Context, xmsg redis.XMessage, deliveries int64) (memq.Message, bool) {
	jobID, ok := xmsg.Values["job_id"].(string)
	if !ok || jobID == "" {
		slog.Error("Invalid message format", "message_id", xmsg.ID)
		q.ackMessage(ctx, xmsg.ID)
		return memq.Message{}, false
	}
	return memq.Message{ID: xmsg.ID, JobID: jobID, Deliveries: deliveries}, true
}

// Ack acknowledges a delivered entry so it is never redelivered
func (q *RedisQueue) Ack(ctx context.Context, msg memq.Message) error {
	if err := q.client.XAck(ctx, q.stream, q.group, msg.ID).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}
	return nil
}

// Len returns the number of entries not yet delivered to any consumer
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	info, err := q.client.XInfoGroups(ctx, q.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read group info: %w", err)
	}
	for _, g := range info {
		if g.Name == q.group {
			if g.Lag >= 0 {
				return g.Lag, nil
			}
			break
		}
	}
	return q.client.XLen(ctx, q.stream).Result()
}

// StartClaimer starts the background redelivery loop. It does nothing when
// the claim timeout is disabled.
func (q *RedisQueue) StartClaimer(ctx context.Context) {
	if q.claimTimeout <= 0 || q.claimInterval <= 0 {
		slog.Info("Queue redelivery disabled", "stream", q.stream)
		return
	}
	q.wg.Add(1)
	go q.claimer(ctx)
}

// claimer reclaims stuck entries from dead consumers
func (q *RedisQueue) claimer(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closing:
			return
		case <-ticker.C:
			q.claimStuckJobs(ctx)
		}
	}
}

// claimStuckJobs finds and reclaims entries that have been pending too long
func (q *RedisQueue) claimStuckJobs(ctx context.Context) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Idle:   q.claimTimeout,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()

	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("Failed to get pending entries", "error", err)
		}
		return
	}

	for _, p := range pending {
		if p.Idle < q.claimTimeout {
			continue
		}

		msgs, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: "claimer",
			MinIdle:  q.claimTimeout,
			Messages: []string{p.ID},
		}).Result()

		if err != nil {
			slog.Error("Failed to claim stuck job", "message_id", p.ID, "error", err)
			continue
		}

		for _, xmsg := range msgs {
			slog.Warn("Reclaimed stuck job",
				"message_id", xmsg.ID,
				"idle_time", p.Idle,
				"deliveries", p.RetryCount)

			if p.RetryCount >= q.maxDeliveries {
				q.moveToDeadLetter(ctx, xmsg, fmt.Sprintf("exceeded max deliveries: %d", p.RetryCount))
				continue
			}

			msg, ok := q.toMessage(ctx, xmsg, p.RetryCount+1)
			if !ok {
				continue
			}
			select {
			case q.reclaimed <- msg:
			case <-ctx.Done():
				return
			case <-q.closing:
				return
			}
		}
	}
}

// moveToDeadLetter moves an exhausted entry to the dead letter stream
func (q *RedisQueue) moveToDeadLetter(ctx context.Context, xmsg redis.XMessage, reason string) {
	dlStream := q.stream + ":deadletter"

	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlStream,
		Values: map[string]any{
			"original_id": xmsg.ID,
			"job_id":      xmsg.Values["job_id"],
			"reason":      reason,
			"moved_at":    time.Now().Format(time.RFC3339),
		},
	}).Result()

	if err != nil {
		slog.Error("Failed to move to dead letter", "message_id", xmsg.ID, "error", err)
	} else {
		slog.Warn("Moved job to dead letter queue", "message_id", xmsg.ID, "reason", reason)
	}

	q.ackMessage(ctx, xmsg.ID)

	if jobID, ok := xmsg.Values["job_id"].(string); ok && q.onDeadLetter != nil {
		q.onDeadLetter(ctx, jobID, reason)
	}
}

// ackMessage acknowledges a message, logging failures
func (q *RedisQueue) ackMessage(ctx context.Context, messageID string) {
	err := q.client.XAck(ctx, q.stream, q.group, messageID).Err()
	if err != nil {
		slog.Error("Failed to ack message", "message_id", messageID, "error", err)
	}
}

// Close gracefully shuts down the queue
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() { close(q.closing) })
	q.wg.Wait()
	slog.Info("Queue closed gracefully", "stream", q.stream)
	return nil
}

// isGroupExistsError checks if error is "BUSYGROUP Consumer Group name already exists"
func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// DeadLetterCount returns count of entries in the dead letter stream
func (q *RedisQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, q.stream+":deadletter").Result()
}
