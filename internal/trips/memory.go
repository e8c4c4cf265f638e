package trips

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/fedutinova/bikeshare/internal/common"
)

// MemoryStore keeps trips in process memory. It backs single-process runs
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	trips   map[string]Trip
	loading bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: map[string]Trip{}}
}

func (s *MemoryStore) Ready(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loading, nil
}

func (s *MemoryStore) Load(ctx context.Context, r io.Reader) (int, error) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	n := 0
	err := ReadCSV(r, func(t Trip) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		s.trips[t.TripID] = t
		s.mu.Unlock()
		n++
		return nil
	})
	return n, err
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, common.ErrTripNotFound
	}
	return &t, nil
}

func (s *MemoryStore) IDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedIDs(), nil
}

func (s *MemoryStore) Page(_ context.Context, offset, limit int) ([]Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.sortedIDs()
	if offset >= len(ids) {
		return []Trip{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]Trip, len(ids))
	for i, id := range ids {
		out[i] = s.trips[id]
	}
	return out, nil
}

// Each iterates over a snapshot so fn may call back into the store.
func (s *MemoryStore) Each(ctx context.Context, fn func(Trip) error) error {
	s.mu.RLock()
	snapshot := make(SliceSource, 0, len(s.trips))
	for _, t := range s.trips {
		snapshot = append(snapshot, t)
	}
	s.mu.RUnlock()
	return snapshot.Each(ctx, fn)
}

func (s *MemoryStore) BikeIDs(ctx context.Context) ([]string, error) {
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

func (s *MemoryStore) TripsByBike(ctx context.Context, bikeID string) ([]Trip, error) {
	out := []Trip{}
	err := s.Each(ctx, func(t Trip) error {
		if t.BicycleID == bikeID {
			out = append(out, t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TripID < out[j].TripID })
	return out, err
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trips), nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips = map[string]Trip{}
	return nil
}

func (s *MemoryStore) sortedIDs() []string {
	ids := make([]string, 0, len(s.trips))
	for id := range s.trips {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
