package trips

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	appredis "github.com/fedutinova/bikeshare/internal/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Trip ID,Membership or Pass Type,Bicycle ID,Bike Type,Checkout Datetime,Checkout Date,Checkout Time,Checkout Kiosk ID,Checkout Kiosk,Return Kiosk ID,Return Kiosk,Trip Duration Minutes,Month,Year
9900285908,Annual Membership,207,classic,05/01/2020 10:15:00 AM,05/01/2020,10:15:00,2498,Dean Keeton & Speedway,2566,Pfluger Bridge @ W 2nd Street,12,5,2020
9900285909,Local365,207,classic,05/01/2020 11:00:00 AM,05/01/2020,11:00:00,2566,Pfluger Bridge @ W 2nd Street,2498,Dean Keeton & Speedway,8,5,2020
,Walk Up,301,electric,05/02/2020 09:00:00 AM,05/02/2020,09:00:00,2498,Dean Keeton & Speedway,2498,Dean Keeton & Speedway,3,5,2020
9900285910,Walk Up,301,electric,05/02/2020 09:30:00 AM,05/02/2020,09:30:00,2498,Dean Keeton & Speedway,2498,Dean Keeton & Speedway,3,5,2020
`

func TestReadCSV(t *testing.T) {
	var got []Trip
	err := ReadCSV(strings.NewReader(sampleCSV), func(tr Trip) error {
		got = append(got, tr)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3, "rows without a trip ID are skipped")

	assert.Equal(t, "9900285908", got[0].TripID)
	assert.Equal(t, "207", got[0].BicycleID)
	assert.Equal(t, "Annual Membership", got[0].MembershipType)
	assert.Equal(t, "05/01/2020 10:15:00 AM", got[0].CheckoutDatetime)
	assert.Equal(t, "Pfluger Bridge @ W 2nd Street", got[0].ReturnKiosk)
	assert.Equal(t, "2020", got[2].Year)
}

func TestReadCSV_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := ReadCSV(strings.NewReader(sampleCSV), func(Trip) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadCSV_EmptyInput(t *testing.T) {
	err := ReadCSV(strings.NewReader(""), func(Trip) error { return nil })
	assert.Error(t, err)
}

func TestTrip_CheckoutDay(t *testing.T) {
	tests := []struct {
		name    string
		trip    Trip
		want    string
		wantErr bool
	}{
		{"datetime", Trip{CheckoutDatetime: "05/01/2020 10:15:00 AM"}, "2020-05-01", false},
		{"date fallback", Trip{CheckoutDate: "12/31/2019"}, "2019-12-31", false},
		{"malformed", Trip{CheckoutDatetime: "2020-05-01T10:15:00"}, "", true},
		{"too short", Trip{CheckoutDatetime: "5/1/20"}, "", true},
		{"missing", Trip{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, err := tt.trip.CheckoutDay()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, day.Format("2006-01-02"))
		})
	}
}

func TestSliceSource_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SliceSource{{TripID: "1"}}.Each(ctx, func(Trip) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), "/nonexistent/trips.csv")
	assert.Error(t, err)
}

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/14"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Skipf("Skipping trips store test: invalid Redis URL: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Skipping trips store test: Redis not available: %v", err)
	}

	store := NewRedisStore(appredis.NewFromClient(client))
	require.NoError(t, store.Clear(ctx))
	t.Cleanup(func() {
		store.Clear(context.Background())
		client.Close()
	})
	return store
}

func TestRedisStore_LoadAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.Load(ctx, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ready, err := store.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	trip, err := store.Get(ctx, "9900285909")
	require.NoError(t, err)
	assert.Equal(t, "Local365", trip.MembershipType)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrTripNotFound)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"9900285908", "9900285909", "9900285910"}, ids)

	page, err := store.Page(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "9900285909", page[0].TripID)

	page, err = store.Page(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	bikes, err := store.BikeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"207", "301"}, bikes)

	rides, err := store.TripsByBike(ctx, "207")
	require.NoError(t, err)
	assert.Len(t, rides, 2)

	seen := 0
	require.NoError(t, store.Each(ctx, func(Trip) error { seen++; return nil }))
	assert.Equal(t, 3, seen)

	require.NoError(t, store.Clear(ctx))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedisStore_NotReadyWhileLoading(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.client.Set(ctx, loadingKey, "now", time.Minute).Err())
	ready, err := store.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, ready)

	require.NoError(t, store.client.Del(ctx, loadingKey).Err())
	ready, err = store.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	n, err := store.Load(ctx, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ready, err := store.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	page, err := store.Page(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "9900285908", page[0].TripID)

	bikes, err := store.BikeIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"207", "301"}, bikes)

	rides, err := store.TripsByBike(ctx, "301")
	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.Equal(t, "9900285910", rides[0].TripID)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrTripNotFound)

	require.NoError(t, store.Clear(ctx))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

type sliceIterator struct {
	keys []string
	pos  int
	err  error
}

func (it *sliceIterator) Next(context.Context) bool {
	if it.pos >= len(it.keys) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Val() string { return it.keys[it.pos-1] }
func (it *sliceIterator) Err() error  { return it.err }

func TestScanKeys_DropsRepeatedKeys(t *testing.T) {
	iter := &sliceIterator{keys: []string{"trip:1", "trip:2", "trip:1", "trip:3", "trip:2"}}

	var got []string
	calls := 0
	err := scanKeys(context.Background(), iter, func(batch []string) error {
		calls++
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"trip:1", "trip:2", "trip:3"}, got)
}

func TestScanKeys_RepeatsAcrossBatches(t *testing.T) {
	keys := make([]string, 0, loadBatch+10)
	for i := range loadBatch {
		keys = append(keys, "trip:"+strconv.Itoa(i))
	}
	// a rehash can return keys from an earlier batch again
	keys = append(keys, "trip:0", "trip:1", "trip:extra")

	var got []string
	var sizes []int
	err := scanKeys(context.Background(), &sliceIterator{keys: keys}, func(batch []string) error {
		sizes = append(sizes, len(batch))
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{loadBatch, 1}, sizes)
	assert.Len(t, got, loadBatch+1)
	assert.Equal(t, "trip:extra", got[len(got)-1])
}

func TestScanKeys_Errors(t *testing.T) {
	stop := errors.New("stop")
	err := scanKeys(context.Background(), &sliceIterator{keys: []string{"trip:1"}}, func([]string) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)

	err = scanKeys(context.Background(), &sliceIterator{err: errors.New("conn reset")}, func([]string) error {
		return nil
	})
	assert.True(t, common.IsUnavailable(err))
}

func TestMemoryStore_LookupsHonorContext(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Load(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.BikeIDs(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.TripsByBike(ctx, "207")
	assert.ErrorIs(t, err, context.Canceled)
}
