package snapshot

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/swiglabs/swigboard/internal/archive/types"
)

// Chart dimensions and styling constants control the visual appearance
// of the standings progression chart.
const (
	// hoursToShow is the number of x-axis ticks to show in the chart.
	hoursToShow = 24
	// maxChartSeries caps how many participants the chart tracks.
	maxChartSeries = 5

	// titleFontSize sets the size of the chart title text.
	titleFontSize = 12.0
	// xAxisFontSize sets the size of x-axis labels.
	xAxisFontSize = 10.0
	// yAxisFontSize sets the size of y-axis labels.
	yAxisFontSize = 12.0
	// xAxisRotation angles x-axis labels to prevent overlap.
	xAxisRotation = 45.0
	// gridLineWidth controls the thickness of grid lines.
	gridLineWidth = 1.0
	// seriesLineWidth controls the thickness of data lines.
	seriesLineWidth = 3.0
	// seriesDotWidth controls the size of data points.
	seriesDotWidth = 4.0
	// paddingTop adds space above the chart.
	paddingTop = 30
	// paddingBottom adds space below the chart.
	paddingBottom = 30
	// paddingLeft adds space to the left of the chart.
	paddingLeft = 20
	// paddingRight adds space to the right of the chart.
	paddingRight = 20
)

// seriesColors assigns line colors to tracked participants in rank order.
var seriesColors = []drawing.Color{
	chart.ColorRed,
	chart.ColorOrange,
	chart.ColorGreen,
	chart.ColorBlue,
	chart.ColorCyan,
}

// ChartBuilder creates the standings progression chart.
type ChartBuilder struct {
	history []*types.HourlyStanding
}

// NewChartBuilder loads hourly standings to create a new chart builder.
func NewChartBuilder(history []*types.HourlyStanding) *ChartBuilder {
	return &ChartBuilder{
		history: history,
	}
}

// Build creates a chart tracking the total scores of the current leaders
// across the last day of snapshots.
func (b *ChartBuilder) Build() (*bytes.Buffer, error) {
	leaders := b.currentLeaders()
	xValues, series := b.prepareDataSeries(leaders)

	// Configure and create the chart
	chartSeries := make([]chart.Series, len(leaders))
	for i, leader := range leaders {
		chartSeries[i] = b.createSeries(leader.DisplayName, xValues, series[leader.ParticipantID], seriesColors[i%len(seriesColors)])
	}

	graph := &chart.Chart{
		Title:      "Standings Progression (24h)",
		TitleStyle: b.getTitleStyle(),
		Background: b.getBackgroundStyle(),
		XAxis:      b.getXAxis(b.prepareGridLinesAndTicks()),
		YAxis:      b.getYAxis(),
		Series:     chartSeries,
	}

	// Add legend below the chart
	graph.Elements = []chart.Renderable{
		chart.Legend(graph),
	}

	// Render chart to PNG format
	buf := new(bytes.Buffer)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// currentLeaders picks the best-ranked participants of the most recent
// snapshot as the chart's tracked series.
func (b *ChartBuilder) currentLeaders() []*types.HourlyStanding {
	var latest time.Time
	for _, row := range b.history {
		if row.Timestamp.After(latest) {
			latest = row.Timestamp
		}
	}

	var leaders []*types.HourlyStanding
	for _, row := range b.history {
		if row.Timestamp.Equal(latest) {
			leaders = append(leaders, row)
		}
	}

	sort.Slice(leaders, func(i, j int) bool {
		if leaders[i].Rank != leaders[j].Rank {
			return leaders[i].Rank < leaders[j].Rank
		}

		return leaders[i].ParticipantID < leaders[j].ParticipantID
	})

	if len(leaders) > maxChartSeries {
		leaders = leaders[:maxChartSeries]
	}

	return leaders
}

// prepareDataSeries extracts per-participant score points from the snapshot
// history, one value per hour.
func (b *ChartBuilder) prepareDataSeries(leaders []*types.HourlyStanding) ([]float64, map[string][]float64) {
	xValues := make([]float64, hoursToShow)

	series := make(map[string][]float64, len(leaders))
	for _, leader := range leaders {
		series[leader.ParticipantID] = make([]float64, hoursToShow)
	}

	// Create a map of truncated timestamps to scores for lookup
	scores := make(map[string]map[time.Time]int64, len(leaders))
	for _, row := range b.history {
		truncatedTime := row.Timestamp.Truncate(time.Hour)
		if scores[row.ParticipantID] == nil {
			scores[row.ParticipantID] = make(map[time.Time]int64)
		}

		scores[row.ParticipantID][truncatedTime] = row.TotalScore
	}

	// Fill in data points for each hour
	now := time.Now().UTC().Truncate(time.Hour)

	for i := range hoursToShow {
		xValues[i] = float64(i)
		timestamp := now.Add(time.Duration(-i) * time.Hour)

		for _, leader := range leaders {
			if score, exists := scores[leader.ParticipantID][timestamp]; exists {
				idx := hoursToShow - 1 - i
				series[leader.ParticipantID][idx] = float64(score)
			}
		}
	}

	return xValues, series
}

// prepareGridLinesAndTicks creates grid lines and x-axis labels.
func (b *ChartBuilder) prepareGridLinesAndTicks() ([]chart.GridLine, []chart.Tick) {
	gridLines := make([]chart.GridLine, hoursToShow)
	ticks := make([]chart.Tick, hoursToShow)

	for i := range hoursToShow {
		gridLines[i] = chart.GridLine{Value: float64(i)}

		// Format as hours ago
		hoursAgo := hoursToShow - i
		label := fmt.Sprintf("%dh ago", hoursAgo)

		ticks[i] = chart.Tick{
			Value: float64(i),
			Label: label,
		}
	}

	return gridLines, ticks
}

// getTitleStyle returns styling for the chart title.
func (b *ChartBuilder) getTitleStyle() chart.Style {
	return chart.Style{
		FontSize: titleFontSize,
	}
}

// getBackgroundStyle returns styling for the chart background,
// including padding around all edges.
func (b *ChartBuilder) getBackgroundStyle() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    paddingTop,
			Left:   paddingLeft,
			Right:  paddingRight,
			Bottom: paddingBottom,
		},
	}
}

// getXAxis returns configuration for the x-axis.
func (b *ChartBuilder) getXAxis(gridLines []chart.GridLine, ticks []chart.Tick) chart.XAxis {
	return chart.XAxis{
		Style: chart.Style{
			FontSize:            xAxisFontSize,
			TextRotationDegrees: xAxisRotation,
		},
		GridMajorStyle: chart.Style{
			StrokeColor: chart.ColorAlternateGray,
			StrokeWidth: gridLineWidth,
		},
		GridLines:    gridLines,
		Ticks:        ticks,
		TickPosition: chart.TickPositionUnderTick,
	}
}

// getYAxis returns configuration for the y-axis.
func (b *ChartBuilder) getYAxis() chart.YAxis {
	return chart.YAxis{
		Style: chart.Style{
			FontSize:            yAxisFontSize,
			TextRotationDegrees: 0.0,
		},
		GridMajorStyle: chart.Style{
			StrokeColor: chart.ColorAlternateGray,
			StrokeWidth: gridLineWidth,
		},
		ValueFormatter: func(v any) string {
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%.0f", f)
			}

			return ""
		},
	}
}

// createSeries builds a line series for the chart.
func (b *ChartBuilder) createSeries(name string, xValues, yValues []float64, color drawing.Color) chart.Series {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xValues,
		YValues: yValues,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: seriesLineWidth,
			DotColor:    color,
			DotWidth:    seriesDotWidth,
		},
	}
}
