// Package seasonal provides the default forecasting engine: an additive
// seasonal regression over month, hour-of-day, weekday kind, weather
// regressors, and holiday effects. It stands behind the forecast.Engine
// interface so a different fitting algorithm can be substituted without
// touching the orchestrator.
package seasonal

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/FREDERICO23/gridflow-api/internal/pipeline/forecast"
)

const (
	weekday = 0
	weekend = 1
)

// Engine fits an additive seasonal model and predicts with symmetric
// residual-spread intervals.
type Engine struct{}

// New creates the seasonal engine.
func New() *Engine {
	return &Engine{}
}

type model struct {
	mean       float64
	monthOff   [13]float64 // indexed by time.Month
	hourOff    [2][24]float64
	slopes     map[string]float64
	xMeans     map[string]float64
	holidayOff float64
	holidaySet map[time.Time]bool
	halfWidth  float64
}

// FitAndPredict fits on the training frame and emits one prediction per
// future-frame row.
func (e *Engine) FitAndPredict(
	ctx context.Context,
	training, future forecast.Frame,
	regressors []string,
	holidays []time.Time,
	intervalWidth float64,
) ([]forecast.Prediction, error) {
	if len(training.Times) == 0 {
		return nil, errors.New("seasonal engine: empty training frame")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := fit(training, regressors, holidays, intervalWidth)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds := make([]forecast.Prediction, len(future.Times))
	for i, t := range future.Times {
		yhat := m.predict(t, future.Regressors, regressors, i)
		preds[i] = forecast.Prediction{
			TS:    t,
			Yhat:  yhat,
			Lower: yhat - m.halfWidth,
			Upper: yhat + m.halfWidth,
		}
	}
	return preds, nil
}

func fit(training forecast.Frame, regressors []string, holidays []time.Time, intervalWidth float64) *model {
	n := len(training.Times)
	m := &model{
		slopes:     make(map[string]float64),
		xMeans:     make(map[string]float64),
		holidaySet: make(map[time.Time]bool, len(holidays)),
	}
	for _, h := range holidays {
		m.holidaySet[dateOf(h)] = true
	}

	resid := make([]float64, n)
	m.mean = meanOf(training.Values)
	for i, y := range training.Values {
		resid[i] = y - m.mean
	}

	// Month component.
	var monthSum [13]float64
	var monthN [13]int
	for i, t := range training.Times {
		monthSum[t.Month()] += resid[i]
		monthN[t.Month()]++
	}
	for mo := 1; mo <= 12; mo++ {
		if monthN[mo] > 0 {
			m.monthOff[mo] = monthSum[mo] / float64(monthN[mo])
		}
	}
	for i, t := range training.Times {
		resid[i] -= m.monthOff[t.Month()]
	}

	// Hour-of-day component, split by weekday kind.
	var hourSum [2][24]float64
	var hourN [2][24]int
	for i, t := range training.Times {
		k := dayKind(t)
		hourSum[k][t.Hour()] += resid[i]
		hourN[k][t.Hour()]++
	}
	for k := 0; k < 2; k++ {
		for h := 0; h < 24; h++ {
			if hourN[k][h] > 0 {
				m.hourOff[k][h] = hourSum[k][h] / float64(hourN[k][h])
			}
		}
	}
	for i, t := range training.Times {
		resid[i] -= m.hourOff[dayKind(t)][t.Hour()]
	}

	// Linear regressor adjustments on the deseasonalized residual.
	for _, name := range regressors {
		x, ok := training.Regressors[name]
		if !ok || len(x) != n {
			continue
		}
		xm := meanOf(x)
		var cov, varx float64
		for i := range x {
			d := x[i] - xm
			cov += d * resid[i]
			varx += d * d
		}
		if varx < 1e-12 {
			continue
		}
		slope := cov / varx
		m.slopes[name] = slope
		m.xMeans[name] = xm
		for i := range x {
			resid[i] -= slope * (x[i] - xm)
		}
	}

	// Holiday effect over the expanded calendar.
	if len(m.holidaySet) > 0 {
		var sum float64
		var count int
		for i, t := range training.Times {
			if m.holidaySet[dateOf(t)] {
				sum += resid[i]
				count++
			}
		}
		if count > 0 {
			m.holidayOff = sum / float64(count)
			for i, t := range training.Times {
				if m.holidaySet[dateOf(t)] {
					resid[i] -= m.holidayOff
				}
			}
		}
	}

	m.halfWidth = zScore(intervalWidth) * sampleStd(resid)
	return m
}

func (m *model) predict(t time.Time, regressors map[string][]float64, names []string, row int) float64 {
	yhat := m.mean + m.monthOff[t.Month()] + m.hourOff[dayKind(t)][t.Hour()]
	for _, name := range names {
		slope, ok := m.slopes[name]
		if !ok {
			continue
		}
		if col, ok := regressors[name]; ok && row < len(col) {
			yhat += slope * (col[row] - m.xMeans[name])
		}
	}
	if m.holidaySet[dateOf(t)] {
		yhat += m.holidayOff
	}
	return yhat
}

func dayKind(t time.Time) int {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return weekend
	}
	return weekday
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func meanOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func sampleStd(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	mean := meanOf(vs)
	sum := 0.0
	for _, v := range vs {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vs)-1))
}

// zScore converts an interval width into the matching normal quantile
// (1.96 for 0.95).
func zScore(intervalWidth float64) float64 {
	if intervalWidth <= 0 || intervalWidth >= 1 {
		return 1.96
	}
	return math.Sqrt2 * math.Erfinv(intervalWidth)
}
