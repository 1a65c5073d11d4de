package seasonal

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FREDERICO23/gridflow-api/internal/pipeline/forecast"
)

// yearFrame builds a year of hourly training data from a value function.
func yearFrame(year int, value func(t time.Time) float64) forecast.Frame {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	n := forecast.HoursInYear(year)
	frame := forecast.Frame{
		Times:  make([]time.Time, n),
		Values: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		frame.Times[i] = t
		frame.Values[i] = value(t)
	}
	return frame
}

func futureFrame(year int) forecast.Frame {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	n := forecast.HoursInYear(year)
	frame := forecast.Frame{Times: make([]time.Time, n)}
	for i := 0; i < n; i++ {
		frame.Times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return frame
}

func TestFitAndPredict_EmptyTraining(t *testing.T) {
	_, err := New().FitAndPredict(context.Background(), forecast.Frame{}, futureFrame(2025), nil, nil, 0.95)
	require.Error(t, err)
}

func TestFitAndPredict_ConstantSeries(t *testing.T) {
	training := yearFrame(2024, func(time.Time) float64 { return 100 })
	preds, err := New().FitAndPredict(context.Background(), training, futureFrame(2025), nil, nil, 0.95)
	require.NoError(t, err)
	require.Len(t, preds, 8760)

	for _, p := range preds {
		assert.InDelta(t, 100.0, p.Yhat, 1e-6)
		// Zero residual spread collapses the interval onto the estimate.
		assert.InDelta(t, p.Yhat, p.Lower, 1e-6)
		assert.InDelta(t, p.Yhat, p.Upper, 1e-6)
	}
}

func TestFitAndPredict_LearnsHourAndWeekendShape(t *testing.T) {
	shape := func(t time.Time) float64 {
		v := 100.0 + 20.0*math.Sin(2*math.Pi*float64(t.Hour())/24.0)
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			v -= 30
		}
		return v
	}

	training := yearFrame(2024, shape)
	preds, err := New().FitAndPredict(context.Background(), training, futureFrame(2025), nil, nil, 0.95)
	require.NoError(t, err)

	var weekdaySum, weekendSum float64
	var weekdayN, weekendN int
	for _, p := range preds {
		switch p.TS.Weekday() {
		case time.Saturday, time.Sunday:
			weekendSum += p.Yhat
			weekendN++
		default:
			weekdaySum += p.Yhat
			weekdayN++
		}
	}

	// The learned weekend level sits clearly below the weekday level.
	assert.Greater(t, weekdaySum/float64(weekdayN), weekendSum/float64(weekendN)+20.0)

	// Intervals bracket the point estimate.
	for _, p := range preds {
		assert.LessOrEqual(t, p.Lower, p.Yhat)
		assert.GreaterOrEqual(t, p.Upper, p.Yhat)
	}
}

func TestFitAndPredict_RegressorSlope(t *testing.T) {
	// Load rises 2 kW per degree around a 10-degree mean.
	temps := make([]float64, forecast.HoursInYear(2024))
	training := yearFrame(2024, func(time.Time) float64 { return 0 })
	for i := range training.Times {
		temp := 10.0 + 5.0*math.Sin(float64(i)/100.0)
		temps[i] = temp
		training.Values[i] = 100.0 + 2.0*(temp-10.0)
	}
	training.Regressors = map[string][]float64{forecast.RegressorTemperature: temps}

	future := futureFrame(2025)
	futureTemps := make([]float64, len(future.Times))
	for i := range futureTemps {
		futureTemps[i] = 20.0
	}
	future.Regressors = map[string][]float64{forecast.RegressorTemperature: futureTemps}

	preds, err := New().FitAndPredict(context.Background(), training, future,
		[]string{forecast.RegressorTemperature}, nil, 0.95)
	require.NoError(t, err)

	// At 20 degrees the prediction should sit near 100 + 2*(20-10) = 120,
	// give or take the seasonal structure the sine leaks into months.
	var sum float64
	for _, p := range preds {
		sum += p.Yhat
	}
	assert.InDelta(t, 120.0, sum/float64(len(preds)), 5.0)
}

func TestFitAndPredict_HolidayOffset(t *testing.T) {
	holiday := time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)
	shape := func(t time.Time) float64 {
		if t.Year() == 2024 && t.Month() == time.July && t.Day() == 4 {
			return 50
		}
		return 100
	}

	training := yearFrame(2024, shape)
	futureHoliday := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	preds, err := New().FitAndPredict(context.Background(), training, futureFrame(2025),
		nil, []time.Time{holiday, futureHoliday}, 0.95)
	require.NoError(t, err)

	var holidayMean, restMean float64
	var holidayN, restN int
	for _, p := range preds {
		if p.TS.Month() == time.July && p.TS.Day() == 4 {
			holidayMean += p.Yhat
			holidayN++
		} else {
			restMean += p.Yhat
			restN++
		}
	}
	require.Positive(t, holidayN)

	assert.Less(t, holidayMean/float64(holidayN), restMean/float64(restN)-20.0)
}

func TestFitAndPredict_Deterministic(t *testing.T) {
	training := yearFrame(2024, func(t time.Time) float64 {
		return 100 + float64(t.Hour()) + float64(t.Month())
	})

	a, err := New().FitAndPredict(context.Background(), training, futureFrame(2025), nil, nil, 0.95)
	require.NoError(t, err)
	b, err := New().FitAndPredict(context.Background(), training, futureFrame(2025), nil, nil, 0.95)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestFitAndPredict_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	training := yearFrame(2024, func(time.Time) float64 { return 100 })
	_, err := New().FitAndPredict(ctx, training, futureFrame(2025), nil, nil, 0.95)
	require.Error(t, err)
}

func TestZScore(t *testing.T) {
	assert.InDelta(t, 1.96, zScore(0.95), 0.01)
	assert.InDelta(t, 1.645, zScore(0.90), 0.01)
	assert.InDelta(t, 1.96, zScore(0), 1e-9)
	assert.InDelta(t, 1.96, zScore(1), 1e-9)
}
