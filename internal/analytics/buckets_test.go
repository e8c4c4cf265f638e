package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/trips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("01/02/2006", s)
	require.NoError(t, err)
	return d
}

func TestChooseGranularity(t *testing.T) {
	tests := []struct {
		start, end string
		want       Granularity
	}{
		{"05/01/2020", "05/02/2020", Daily},
		{"01/01/2020", "03/02/2020", Daily},   // 61 days
		{"01/01/2020", "03/03/2020", Monthly}, // 62 days
		{"01/01/2019", "01/01/2021", Monthly},
	}
	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseGranularity(day(t, tt.start), day(t, tt.end)))
		})
	}
}

func TestCompute_Daily(t *testing.T) {
	src := trips.SliceSource{
		{TripID: "1", CheckoutDatetime: "05/01/2020 08:00:00 AM"},
		{TripID: "2", CheckoutDatetime: "05/01/2020 09:30:00 PM"},
		{TripID: "3", CheckoutDatetime: "05/02/2020 07:15:00 AM"},
		{TripID: "4", CheckoutDatetime: "06/15/2020 07:15:00 AM"},
		{TripID: "5", CheckoutDatetime: "garbage"},
		{TripID: "6"},
	}

	res, err := Compute(context.Background(), src, day(t, "05/01/2020"), day(t, "05/03/2020"))
	require.NoError(t, err)
	assert.Equal(t, Daily, res.Granularity)
	assert.Equal(t, Buckets{"05/01/2020": 2, "05/02/2020": 1}, res.Buckets)
	assert.Equal(t, 6, res.Scanned)
	assert.Equal(t, 1, res.Skipped)
}

func TestCompute_InclusiveBounds(t *testing.T) {
	src := trips.SliceSource{
		{TripID: "1", CheckoutDate: "05/01/2020"},
		{TripID: "2", CheckoutDate: "05/10/2020"},
		{TripID: "3", CheckoutDate: "04/30/2020"},
		{TripID: "4", CheckoutDate: "05/11/2020"},
	}
	res, err := Compute(context.Background(), src, day(t, "05/01/2020"), day(t, "05/10/2020"))
	require.NoError(t, err)
	assert.Equal(t, Buckets{"05/01/2020": 1, "05/10/2020": 1}, res.Buckets)
}

func TestCompute_Monthly(t *testing.T) {
	src := trips.SliceSource{
		{TripID: "1", CheckoutDatetime: "09/03/2020 10:00:00 AM"},
		{TripID: "2", CheckoutDatetime: "09/28/2020 10:00:00 AM"},
		{TripID: "3", CheckoutDatetime: "01/05/2021 10:00:00 AM"},
	}
	res, err := Compute(context.Background(), src, day(t, "08/01/2020"), day(t, "02/01/2021"))
	require.NoError(t, err)
	assert.Equal(t, Monthly, res.Granularity)
	assert.Equal(t, Buckets{"09/2020": 2, "01/2021": 1}, res.Buckets)
}

func TestCompute_EmptyIsNotAnError(t *testing.T) {
	res, err := Compute(context.Background(), trips.SliceSource{}, day(t, "05/01/2020"), day(t, "05/02/2020"))
	require.NoError(t, err)
	assert.Empty(t, res.Buckets)
}

type failingSource struct{ err error }

func (f failingSource) Each(context.Context, func(trips.Trip) error) error { return f.err }

func TestCompute_SourceErrors(t *testing.T) {
	_, err := Compute(context.Background(), failingSource{errors.New("decode")}, day(t, "05/01/2020"), day(t, "05/02/2020"))
	assert.ErrorIs(t, err, common.ErrComputation)

	_, err = Compute(context.Background(),
		failingSource{common.WrapUnavailable("scan", errors.New("conn refused"))},
		day(t, "05/01/2020"), day(t, "05/02/2020"))
	assert.True(t, common.IsUnavailable(err))
}

func TestBuckets_SortedChronologically(t *testing.T) {
	monthly, err := Buckets{"01/2021": 1, "09/2020": 4, "12/2020": 2}.Sorted(Monthly)
	require.NoError(t, err)
	labels := make([]string, len(monthly))
	for i, b := range monthly {
		labels[i] = b.Label
	}
	assert.Equal(t, []string{"09/2020", "12/2020", "01/2021"}, labels)
	assert.Equal(t, 4, monthly[0].Count)

	daily, err := Buckets{"01/02/2021": 1, "12/31/2020": 1, "02/01/2020": 1}.Sorted(Daily)
	require.NoError(t, err)
	assert.Equal(t, "02/01/2020", daily[0].Label)
	assert.Equal(t, "12/31/2020", daily[1].Label)
	assert.Equal(t, "01/02/2021", daily[2].Label)
}

func TestBuckets_SortedRejectsBadKey(t *testing.T) {
	_, err := Buckets{"2020-01": 1}.Sorted(Monthly)
	assert.ErrorIs(t, err, common.ErrComputation)
}
