package chart

import (
	"bytes"
	"fmt"

	"github.com/fedutinova/bikeshare/internal/analytics"
	gochart "github.com/wcharczuk/go-chart/v2"
)

// ContentType of every rendered artifact.
const ContentType = "image/png"

// EmptyLabel labels the placeholder bar drawn when a range has no trips.
const EmptyLabel = "no trips"

const (
	barWidth   = 14
	barSpacing = 6
	sidePad    = 140
)

// Renderer turns chronologically ordered buckets into image bytes.
type Renderer interface {
	Render(title string, buckets []analytics.Bucket) ([]byte, error)
	ContentType() string
}

// BarRenderer draws PNG bar charts of trip counts.
type BarRenderer struct {
	width  int
	height int
}

func NewBarRenderer(width, height int) *BarRenderer {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &BarRenderer{width: width, height: height}
}

func (r *BarRenderer) ContentType() string { return ContentType }

// Render draws one bar per bucket in the order given. The canvas widens when
// the bars would not fit the configured width.
func (r *BarRenderer) Render(title string, buckets []analytics.Bucket) ([]byte, error) {
	if len(buckets) == 0 {
		buckets = []analytics.Bucket{{Label: EmptyLabel}}
	}

	bars := make([]gochart.Value, len(buckets))
	peak := 0
	for i, b := range buckets {
		bars[i] = gochart.Value{Label: b.Label, Value: float64(b.Count)}
		peak = max(peak, b.Count)
	}

	width := max(r.width, len(bars)*(barWidth+barSpacing)+sidePad)

	graph := gochart.BarChart{
		Title:  title,
		Width:  width,
		Height: r.height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis: gochart.Style{
			FontSize:            8,
			TextRotationDegrees: 90,
		},
		YAxis: gochart.YAxis{
			Name: "trips",
			Range: &gochart.ContinuousRange{
				Min: 0,
				Max: float64(max(peak, 1)) * 1.1,
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}
