package trips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	appredis "github.com/fedutinova/bikeshare/internal/redis"
	"github.com/redis/go-redis/v9"
)

const (
	tripKeyPrefix = "trip:"
	loadingKey    = "meta:loading"

	// loadBatch is the number of records written per pipeline round trip.
	loadBatch = 1000
	// loadingTTL bounds how long a crashed loader can keep the store not ready.
	loadingTTL = time.Hour
)

// RedisStore keeps one JSON document per trip in the trips database.
type RedisStore struct {
	svc    *appredis.Service
	client *redis.Client
}

func NewRedisStore(svc *appredis.Service) *RedisStore {
	return &RedisStore{svc: svc, client: svc.Client()}
}

// Ready reports whether trip data can be read: Redis is not replaying its
// dataset and no bulk load is in progress.
func (s *RedisStore) Ready(ctx context.Context) (bool, error) {
	loading, err := s.svc.Loading(ctx)
	if err != nil {
		return false, common.WrapUnavailable("check redis loading", err)
	}
	if loading {
		return false, nil
	}
	n, err := s.client.Exists(ctx, loadingKey).Result()
	if err != nil {
		return false, common.WrapUnavailable("check load marker", err)
	}
	return n == 0, nil
}

// Load bulk-writes trips decoded from a CSV stream and returns how many were
// stored. The store reports not ready until Load returns.
func (s *RedisStore) Load(ctx context.Context, r io.Reader) (int, error) {
	if err := s.client.Set(ctx, loadingKey, time.Now().UTC().Format(time.RFC3339), loadingTTL).Err(); err != nil {
		return 0, common.WrapUnavailable("set load marker", err)
	}
	defer func() {
		if err := s.client.Del(context.WithoutCancel(ctx), loadingKey).Err(); err != nil {
			slog.Error("failed to clear load marker", "error", err)
		}
	}()

	started := time.Now()
	batch := make([]Trip, 0, loadBatch)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.SaveBatch(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := ReadCSV(r, func(t Trip) error {
		batch = append(batch, t)
		if len(batch) == loadBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}

	slog.Info("trips loaded", "count", total, "duration", time.Since(started))
	return total, nil
}

// SaveBatch writes trips in a single pipeline.
func (s *RedisStore) SaveBatch(ctx context.Context, batch []Trip) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range batch {
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("marshal trip %s: %w", t.TripID, err)
			}
			pipe.Set(ctx, tripKeyPrefix+t.TripID, data, 0)
		}
		return nil
	})
	if err != nil {
		return common.WrapUnavailable("store trips", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Trip, error) {
	data, err := s.client.Get(ctx, tripKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrTripNotFound
	}
	if err != nil {
		return nil, common.WrapUnavailable("get trip", err)
	}
	var t Trip
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal trip %s: %w", id, err)
	}
	return &t, nil
}

// IDs returns every stored trip ID in lexical order.
func (s *RedisStore) IDs(ctx context.Context) ([]string, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, tripKeyPrefix)
	}
	return ids, nil
}

// Page returns up to limit trips starting at offset, ordered by trip ID.
// A limit of zero means no limit.
func (s *RedisStore) Page(ctx context.Context, offset, limit int) ([]Trip, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= len(keys) {
		return []Trip{}, nil
	}
	keys = keys[offset:]
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	return s.mget(ctx, keys)
}

// Each streams every stored trip to fn, each trip exactly once.
func (s *RedisStore) Each(ctx context.Context, fn func(Trip) error) error {
	return scanKeys(ctx, s.scan(ctx), func(keys []string) error {
		batch, err := s.mget(ctx, keys)
		if err != nil {
			return err
		}
		for _, t := range batch {
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	})
}

// BikeIDs returns the distinct bicycle IDs seen across all trips.
func (s *RedisStore) BikeIDs(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	err := s.Each(ctx, func(t Trip) error {
		if t.BicycleID != "" {
			seen[t.BicycleID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// TripsByBike returns every trip ridden on the given bicycle.
func (s *RedisStore) TripsByBike(ctx context.Context, bikeID string) ([]Trip, error) {
	out := []Trip{}
	err := s.Each(ctx, func(t Trip) error {
		if t.BicycleID == bikeID {
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TripID < out[j].TripID })
	return out, nil
}

// Count returns the number of stored trips.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear removes every trip.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		return common.WrapUnavailable("flush trips", err)
	}
	slog.Info("trips database cleared", "db", s.svc.DB())
	return nil
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	err := scanKeys(ctx, s.scan(ctx), func(batch []string) error {
		keys = append(keys, batch...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) scan(ctx context.Context) keyIterator {
	return s.client.Scan(ctx, 0, tripKeyPrefix+"*", loadBatch).Iterator()
}

// keyIterator is the part of a SCAN cursor the store consumes.
type keyIterator interface {
	Next(ctx context.Context) bool
	Val() string
	Err() error
}

// scanKeys hands fn batches of at most loadBatch distinct keys. SCAN can
// return a key more than once while the keyspace is rehashed, so repeats are
// dropped. The batch slice is reused between calls.
func scanKeys(ctx context.Context, iter keyIterator, fn func([]string) error) error {
	seen := make(map[string]struct{})
	batch := make([]string, 0, loadBatch)
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		batch = append(batch, key)
		if len(batch) == loadBatch {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return common.WrapUnavailable("scan trips", err)
	}
	if len(batch) == 0 {
		return nil
	}
	return fn(batch)
}

func (s *RedisStore) mget(ctx context.Context, keys []string) ([]Trip, error) {
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, common.WrapUnavailable("fetch trips", err)
	}
	out := make([]Trip, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var t Trip
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			slog.Warn("skipping undecodable trip", "key", keys[i], "error", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
