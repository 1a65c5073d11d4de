package forecast

import (
	"context"
	"time"
)

// Regressor column names supplied to the engine. Precipitation is cached but
// deliberately not a forecasting regressor.
const (
	RegressorTemperature = "temperature_2m"
	RegressorSolar       = "solar_radiation"
	RegressorWindSpeed   = "wind_speed_10m"
)

// WeatherRegressors lists the regressor families in join order.
var WeatherRegressors = []string{RegressorTemperature, RegressorSolar, RegressorWindSpeed}

// Frame is the tabular input handed to the forecasting engine. Times are
// naive instants in a consistent UTC-equivalent frame. Values is nil for
// future frames. Each regressor column has the same length as Times.
type Frame struct {
	Times      []time.Time
	Values     []float64
	Regressors map[string][]float64
}

// Prediction is one engine output row.
type Prediction struct {
	TS    time.Time
	Yhat  float64
	Lower float64
	Upper float64
}

// Engine is the external statistical forecasting engine, consumed as a black
// box: training frame in, prediction frame with point estimate and interval
// out. The fitting algorithm behind it is swappable.
type Engine interface {
	FitAndPredict(ctx context.Context, training, future Frame, regressors []string, holidays []time.Time, intervalWidth float64) ([]Prediction, error)
}
