package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fedutinova/bikeshare/internal/common"
	"github.com/fedutinova/bikeshare/internal/trips"
)

// Granularity is the calendar unit trips are grouped by.
type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)

// MaxDailySpanDays is the widest range still bucketed per day.
const MaxDailySpanDays = 61

const (
	dayLayout   = "01/02/2006"
	monthLayout = "01/2006"
)

// ChooseGranularity buckets daily when end-start is at most MaxDailySpanDays
// days, monthly otherwise.
func ChooseGranularity(start, end time.Time) Granularity {
	if end.Sub(start) <= MaxDailySpanDays*24*time.Hour {
		return Daily
	}
	return Monthly
}

// Layout returns the bucket key format.
func (g Granularity) Layout() string {
	if g == Monthly {
		return monthLayout
	}
	return dayLayout
}

// Key formats day as a bucket key.
func (g Granularity) Key(day time.Time) string {
	return day.Format(g.Layout())
}

// Buckets maps a bucket key (MM/DD/YYYY or MM/YYYY) to a trip count.
type Buckets map[string]int

// Result is the output of one aggregation.
type Result struct {
	Granularity Granularity
	Buckets     Buckets
	Scanned     int
	Skipped     int
}

// Compute scans every trip in src and counts those whose checkout day falls
// within [start, end] inclusive. Trips with a missing or malformed checkout
// are skipped.
func Compute(ctx context.Context, src trips.Source, start, end time.Time) (*Result, error) {
	g := ChooseGranularity(start, end)
	res := &Result{Granularity: g, Buckets: Buckets{}}

	err := src.Each(ctx, func(t trips.Trip) error {
		res.Scanned++
		if !t.HasCheckout() {
			return nil
		}
		day, err := t.CheckoutDay()
		if err != nil {
			res.Skipped++
			return nil
		}
		if day.Before(start) || day.After(end) {
			return nil
		}
		res.Buckets[g.Key(day)]++
		return nil
	})
	if err != nil {
		if common.IsUnavailable(err) {
			return nil, err
		}
		return nil, common.WrapComputation("scan trips", err)
	}

	if res.Skipped > 0 {
		slog.Debug("skipped trips with malformed checkout", "skipped", res.Skipped, "scanned", res.Scanned)
	}
	if len(res.Buckets) == 0 {
		slog.Warn("no trips in range",
			"start_date", start.Format(dayLayout),
			"end_date", end.Format(dayLayout),
			"scanned", res.Scanned)
	}
	return res, nil
}

// Bucket is one chart bar.
type Bucket struct {
	Label string
	Count int
	Start time.Time
}

// Sorted returns the buckets in chronological order. Keys are parsed back to
// dates since MM/DD/YYYY and MM/YYYY do not sort lexically.
func (b Buckets) Sorted(g Granularity) ([]Bucket, error) {
	out := make([]Bucket, 0, len(b))
	for label, count := range b {
		start, err := time.Parse(g.Layout(), label)
		if err != nil {
			return nil, common.WrapComputation("parse bucket", fmt.Errorf("bucket %q: %w", label, err))
		}
		out = append(out, Bucket{Label: label, Count: count, Start: start})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
