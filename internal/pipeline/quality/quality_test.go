package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FREDERICO23/gridflow-api/internal/pipeline/normalize"
)

func hourlySeries(start time.Time, values []float64) []normalize.HourlyRecord {
	out := make([]normalize.HourlyRecord, len(values))
	for i, v := range values {
		out[i] = normalize.HourlyRecord{TS: start.Add(time.Duration(i) * time.Hour), ValueKW: v}
	}
	return out
}

func TestAnalyze_EmptySeries(t *testing.T) {
	report := Analyze(nil, "job-1")

	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, 0, report.TotalRecords)
	assert.False(t, report.Passed)
	assert.Equal(t, "No data", report.Error)
	assert.Nil(t, report.DateRange)
}

func TestAnalyze_FullCoveragePasses(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 200)
	for i := range values {
		values[i] = 100 + float64(i%24)
	}

	report := Analyze(hourlySeries(start, values), "job-1")

	assert.Equal(t, 200, report.TotalRecords)
	assert.InDelta(t, 100.0, report.CoveragePercent, 1e-9)
	assert.Equal(t, 0, report.MissingHours)
	assert.True(t, report.Passed)
	require.NotNil(t, report.DateRange)
	assert.Equal(t, start.Format(time.RFC3339), report.DateRange.Start)
}

func TestAnalyze_LowCoverageFails(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// 10 known hours then a large missing tail.
	series := hourlySeries(start, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	for i := 10; i < 100; i++ {
		series = append(series, normalize.HourlyRecord{
			TS:      start.Add(time.Duration(i) * time.Hour),
			Missing: true,
		})
	}

	report := Analyze(series, "job-1")

	assert.InDelta(t, 10.0, report.CoveragePercent, 1e-9)
	assert.Equal(t, 90, report.MissingHours)
	assert.False(t, report.Passed)
}

func TestAnalyze_Statistics(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	report := Analyze(hourlySeries(start, []float64{10, 20, 30, 40, 50}), "job-1")

	require.NotNil(t, report.Statistics)
	assert.InDelta(t, 30.0, *report.Statistics.MeanKW, 1e-9)
	assert.InDelta(t, 10.0, *report.Statistics.MinKW, 1e-9)
	assert.InDelta(t, 50.0, *report.Statistics.MaxKW, 1e-9)
}

func TestAnalyze_OutlierDetection(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 100)
	for i := range values {
		values[i] = 100 + float64(i%5)
	}
	values[50] = 100000 // far beyond 3x the IQR fence

	report := Analyze(hourlySeries(start, values), "job-1")

	require.NotNil(t, report.Outliers)
	assert.Equal(t, 1, report.Outliers.Count)
	assert.Equal(t, "IQR", report.Outliers.Method)
	assert.InDelta(t, 3.0, report.Outliers.ThresholdFactor, 1e-9)
}

func TestAnalyze_FlatPeriods(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// A 4-hour flat run, a 2-hour run (below the threshold), then variation.
	values := []float64{7, 7, 7, 7, 3, 3, 1, 2, 1, 2}
	report := Analyze(hourlySeries(start, values), "job-1")

	require.NotNil(t, report.FlatPeriods)
	assert.Equal(t, 1, report.FlatPeriods.Count)
	assert.Equal(t, 4, report.FlatPeriods.TotalHours)
	assert.Equal(t, 3, report.FlatPeriods.MinConsecutiveHours)
}

func TestAnalyze_FlatRunBrokenByGap(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := hourlySeries(start, []float64{5, 5})
	series = append(series, normalize.HourlyRecord{TS: start.Add(2 * time.Hour), Missing: true})
	series = append(series, hourlySeries(start.Add(3*time.Hour), []float64{5, 5})...)

	report := Analyze(series, "job-1")

	// Two 2-hour runs split by a gap never reach the 3-hour threshold.
	assert.Equal(t, 0, report.FlatPeriods.Count)
}

func TestPercentile(t *testing.T) {
	vs := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 1.0, percentile(vs, 0), 1e-9)
	assert.InDelta(t, 3.0, percentile(vs, 50), 1e-9)
	assert.InDelta(t, 5.0, percentile(vs, 100), 1e-9)
	assert.InDelta(t, 1.2, percentile(vs, 5), 1e-9)
}
