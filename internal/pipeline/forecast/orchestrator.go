package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/internal/enrichment"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/normalize"
)

// Point is one hour of the annual forecast output.
type Point struct {
	HourTS    time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
}

// Orchestrator assembles training and future frames around the forecasting
// engine and shapes its output into the annual forecast vector.
type Orchestrator struct {
	engine        Engine
	intervalWidth float64
	logger        *slog.Logger
}

// New creates an Orchestrator around an engine.
func New(engine Engine, intervalWidth float64, logger *slog.Logger) *Orchestrator {
	if intervalWidth <= 0 {
		intervalWidth = 0.95
	}
	return &Orchestrator{engine: engine, intervalWidth: intervalWidth, logger: logger}
}

// Run produces the forecast for every hour of targetYear. Weather may be nil
// (forecast without regressors) and may carry a proxy year, in which case its
// calendar alignment is shifted onto the target year for the future frame.
func (o *Orchestrator) Run(
	ctx context.Context,
	series []normalize.HourlyRecord,
	targetYear int,
	weather *enrichment.WeatherData,
	holidays []time.Time,
) ([]Point, error) {
	training := buildTrainingFrame(series)
	if len(training.Times) == 0 {
		return nil, fmt.Errorf("%w: training series is empty after dropping nulls", domain.ErrForecast)
	}

	useWeather := weather != nil && len(weather.Observations) > 0
	var regressors []string
	if useWeather {
		regressors = WeatherRegressors
		joinRegressors(&training, weather.Observations, 0)
	}

	future := buildFutureFrame(targetYear)
	if useWeather {
		shiftYears := 0
		if weather.Year != targetYear {
			shiftYears = targetYear - weather.Year
		}
		joinRegressors(&future, weather.Observations, shiftYears)
	}

	// Each holiday influences itself and the following day.
	calendar := expandHolidays(holidays)

	o.logger.Info("Invoking forecasting engine",
		slog.Int("training_rows", len(training.Times)),
		slog.Int("future_rows", len(future.Times)),
		slog.Bool("weather", useWeather),
		slog.Int("holidays", len(calendar)),
	)

	preds, err := o.engine.FitAndPredict(ctx, training, future, regressors, calendar, o.intervalWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: engine invocation failed: %v", domain.ErrForecast, err)
	}

	// The engine may emit adjacent-year edge rows; keep the target year only.
	points := make([]Point, 0, len(preds))
	for _, p := range preds {
		if p.TS.Year() != targetYear {
			continue
		}
		lower := math.Min(p.Lower, p.Yhat)
		upper := math.Max(p.Upper, p.Yhat)
		points = append(points, Point{
			HourTS:    time.Date(p.TS.Year(), p.TS.Month(), p.TS.Day(), p.TS.Hour(), 0, 0, 0, time.UTC),
			Yhat:      p.Yhat,
			YhatLower: lower,
			YhatUpper: upper,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].HourTS.Before(points[j].HourTS) })

	o.logger.Info("Forecast complete",
		slog.Int("hours", len(points)),
		slog.Int("target_year", targetYear),
	)
	return points, nil
}

// buildTrainingFrame pairs each non-null normalized hour with its value,
// timezone stripped to the naive UTC-equivalent frame.
func buildTrainingFrame(series []normalize.HourlyRecord) Frame {
	frame := Frame{}
	for _, rec := range series {
		if rec.Missing {
			continue
		}
		frame.Times = append(frame.Times, rec.TS.UTC())
		frame.Values = append(frame.Values, rec.ValueKW)
	}
	return frame
}

// buildFutureFrame covers every hour of the target year in order.
func buildFutureFrame(year int) Frame {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	n := HoursInYear(year)
	frame := Frame{Times: make([]time.Time, n)}
	for i := 0; i < n; i++ {
		frame.Times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return frame
}

// joinRegressors left-joins weather columns onto the frame by exact hour.
// shiftYears realigns proxy-year observations onto the frame's year before
// matching. Remaining gaps are filled with the column's mean over the frame.
func joinRegressors(frame *Frame, obs []enrichment.WeatherObservation, shiftYears int) {
	index := make(map[time.Time]enrichment.WeatherObservation, len(obs))
	for _, o := range obs {
		ts := o.TS.UTC()
		if shiftYears != 0 {
			ts = alignToYear(ts, ts.Year()+shiftYears)
		}
		if _, exists := index[ts]; !exists {
			index[ts] = o
		}
	}

	frame.Regressors = make(map[string][]float64, len(WeatherRegressors))
	for _, name := range WeatherRegressors {
		col := make([]float64, len(frame.Times))
		for i, t := range frame.Times {
			v := math.NaN()
			if o, ok := index[t]; ok {
				if p := regressorValue(o, name); p != nil {
					v = *p
				}
			}
			col[i] = v
		}
		fillWithMean(col)
		frame.Regressors[name] = col
	}
}

func regressorValue(o enrichment.WeatherObservation, name string) *float64 {
	switch name {
	case RegressorTemperature:
		return o.Temperature2M
	case RegressorSolar:
		return o.SolarRadiation
	case RegressorWindSpeed:
		return o.WindSpeed10M
	}
	return nil
}

func fillWithMean(col []float64) {
	sum, n := 0.0, 0
	for _, v := range col {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	mean := 0.0
	if n > 0 {
		mean = sum / float64(n)
	}
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = mean
		}
	}
}

// expandHolidays returns each holiday date plus the following day, deduplicated.
func expandHolidays(holidays []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(holidays)*2)
	var out []time.Time
	for _, h := range holidays {
		day := time.Date(h.Year(), h.Month(), h.Day(), 0, 0, 0, 0, time.UTC)
		for _, d := range []time.Time{day, day.AddDate(0, 0, 1)} {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
