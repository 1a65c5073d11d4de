package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/internal/enrichment"
	"github.com/FREDERICO23/gridflow-api/internal/observability"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/forecast"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/normalize"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/parser"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/quality"
	"github.com/FREDERICO23/gridflow-api/internal/worker/storage"
	"github.com/FREDERICO23/gridflow-api/shared/blobstore"
)

// JobStore is the persistence surface the runner needs.
type JobStore interface {
	ClaimJob(ctx context.Context, jobID string) (*domain.Job, error)
	AdvanceStage(ctx context.Context, jobID string, status string) error
	MarkFailed(ctx context.Context, jobID, errorMessage string, at time.Time) error
	MarkComplete(ctx context.Context, jobID, outputPath string, at time.Time) error
	SaveQualityReport(ctx context.Context, jobID string, report []byte) error
	SaveSeries(ctx context.Context, points []storage.SeriesPoint) error
	SaveForecast(ctx context.Context, jobID string, points []forecast.Point) error
}

// Enricher is the weather/holiday cache surface the runner needs.
type Enricher interface {
	EnsureWeather(ctx context.Context, year int, region string) error
	EnsureHolidays(ctx context.Context, year int, region string) error
	LoadWeather(ctx context.Context, year int, region string) (*enrichment.WeatherData, error)
	LoadHolidays(ctx context.Context, year int, region string) ([]time.Time, error)
}

// Forecaster produces the annual forecast from a normalized series.
type Forecaster interface {
	Run(ctx context.Context, series []normalize.HourlyRecord, targetYear int, weather *enrichment.WeatherData, holidays []time.Time) ([]forecast.Point, error)
}

// RunnerConfig holds the pipeline settings the runner needs per job.
type RunnerConfig struct {
	Timezone          *time.Location
	Region            string
	EnrichmentEnabled bool
	EngineTimeout     time.Duration
}

// Runner executes the full ingestion-to-forecast pipeline for one job:
// parsing, normalizing, enriching, quality_check, forecasting. Any stage
// error is terminal for the job; there are no automatic retries.
type Runner struct {
	store      JobStore
	blobs      blobstore.Store
	parser     *parser.Parser
	normalizer *normalize.Normalizer
	enricher   Enricher
	forecaster Forecaster
	config     RunnerConfig
	metrics    *observability.Metrics
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewRunner creates a pipeline runner.
func NewRunner(
	store JobStore,
	blobs blobstore.Store,
	enricher Enricher,
	forecaster Forecaster,
	config RunnerConfig,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Runner {
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.EngineTimeout <= 0 {
		config.EngineTimeout = 2 * time.Minute
	}
	return &Runner{
		store:      store,
		blobs:      blobs,
		parser:     parser.New(logger),
		normalizer: normalize.New(logger),
		enricher:   enricher,
		forecaster: forecaster,
		config:     config,
		metrics:    metrics,
		clock:      clock,
		logger:     logger,
	}
}

// Process runs the pipeline for a single job. A returned error means the job
// was marked failed (or could not be claimed); the caller decides ACK/NACK.
func (r *Runner) Process(ctx context.Context, jobID string) error {
	job, err := r.store.ClaimJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			r.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", jobID),
			)
		}
		return err
	}

	r.metrics.JobsRunning.Inc()
	defer r.metrics.JobsRunning.Dec()

	r.logger.Info("Pipeline started",
		slog.String("job_id", job.ID),
		slog.String("file_name", job.FileName),
		slog.Int("forecast_year", job.ForecastYear),
	)

	if err := r.run(ctx, job); err != nil {
		r.metrics.JobsProcessed.WithLabelValues("failed").Inc()
		// The stored message is the exact error text callers see on the job.
		if markErr := r.store.MarkFailed(ctx, job.ID, err.Error(), r.clock.Now().UTC()); markErr != nil {
			r.logger.Error("Failed to record job failure",
				slog.String("job_id", job.ID),
				slog.Any("error", markErr),
			)
		}
		return err
	}

	r.metrics.JobsProcessed.WithLabelValues("complete").Inc()
	return nil
}

func (r *Runner) run(ctx context.Context, job *domain.Job) error {
	// parsing
	records, err := r.stageParse(ctx, job)
	if err != nil {
		return err
	}
	if err := r.store.AdvanceStage(ctx, job.ID, domain.StatusNormalizing); err != nil {
		return err
	}

	// normalizing
	series, err := r.stageNormalize(ctx, job, records)
	if err != nil {
		return err
	}

	// enriching (soft: a missing upstream degrades the forecast, it does not
	// fail the job). When enrichment is disabled the stage is skipped
	// entirely and quality_check follows normalizing directly.
	var weather *enrichment.WeatherData
	var holidays []time.Time
	if r.config.EnrichmentEnabled && r.enricher != nil {
		if err := r.store.AdvanceStage(ctx, job.ID, domain.StatusEnriching); err != nil {
			return err
		}
		weather, holidays = r.stageEnrich(ctx, job, series)
	} else {
		r.logger.Info("Enrichment disabled, forecasting without regressors",
			slog.String("job_id", job.ID),
		)
	}
	if err := r.store.AdvanceStage(ctx, job.ID, domain.StatusQualityCheck); err != nil {
		return err
	}

	// quality_check
	if err := r.stageQuality(ctx, job, series); err != nil {
		return err
	}
	if err := r.store.AdvanceStage(ctx, job.ID, domain.StatusForecasting); err != nil {
		return err
	}

	// forecasting
	outputPath, err := r.stageForecast(ctx, job, series, weather, holidays)
	if err != nil {
		return err
	}

	if err := r.store.MarkComplete(ctx, job.ID, outputPath, r.clock.Now().UTC()); err != nil {
		return err
	}

	r.logger.Info("Pipeline complete",
		slog.String("job_id", job.ID),
		slog.String("output_path", outputPath),
	)
	return nil
}

func (r *Runner) stageParse(ctx context.Context, job *domain.Job) ([]parser.Record, error) {
	defer r.observeStage("parsing", r.clock.Now())

	raw, err := r.blobs.Get(ctx, job.RawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read uploaded file: %v", domain.ErrParse, err)
	}

	records, err := r.parser.Parse(raw, job.FileName)
	if err != nil {
		return nil, err
	}

	points := make([]storage.SeriesPoint, 0, len(records))
	for _, rec := range records {
		v := rec.ValueKW
		point := storage.SeriesPoint{TS: rec.TS, JobID: job.ID, Stage: domain.SeriesStageParsed}
		if !rec.Missing {
			point.ValueKW = &v
		}
		points = append(points, point)
	}
	if err := r.store.SaveSeries(ctx, points); err != nil {
		return nil, err
	}

	r.logger.Info("Parsing complete",
		slog.String("job_id", job.ID),
		slog.Int("records", len(records)),
	)
	return records, nil
}

func (r *Runner) stageNormalize(ctx context.Context, job *domain.Job, records []parser.Record) ([]normalize.HourlyRecord, error) {
	defer r.observeStage("normalizing", r.clock.Now())

	series, err := r.normalizer.Normalize(records, r.config.Timezone)
	if err != nil {
		return nil, err
	}

	points := make([]storage.SeriesPoint, 0, len(series))
	for _, rec := range series {
		v := rec.ValueKW
		point := storage.SeriesPoint{TS: rec.TS, JobID: job.ID, Stage: domain.SeriesStageNormalized}
		if !rec.Missing {
			point.ValueKW = &v
		}
		points = append(points, point)
	}
	if err := r.store.SaveSeries(ctx, points); err != nil {
		return nil, err
	}

	r.logger.Info("Normalization complete",
		slog.String("job_id", job.ID),
		slog.Int("hours", len(series)),
	)
	return series, nil
}

// stageEnrich fills the weather and holiday caches and loads what the
// forecast will use. Upstream failures are logged and swallowed: the
// forecast falls back to pure seasonality.
func (r *Runner) stageEnrich(ctx context.Context, job *domain.Job, series []normalize.HourlyRecord) (*enrichment.WeatherData, []time.Time) {
	defer r.observeStage("enriching", r.clock.Now())

	region := r.config.Region

	for _, year := range seriesYears(series, job.ForecastYear) {
		if err := r.enricher.EnsureWeather(ctx, year, region); err != nil {
			r.logger.Warn("Weather enrichment unavailable",
				slog.String("job_id", job.ID),
				slog.Int("year", year),
				slog.Any("error", err),
			)
		}
	}
	if err := r.enricher.EnsureHolidays(ctx, job.ForecastYear, region); err != nil {
		r.logger.Warn("Holiday enrichment unavailable",
			slog.String("job_id", job.ID),
			slog.Int("year", job.ForecastYear),
			slog.Any("error", err),
		)
	}

	weather, err := r.enricher.LoadWeather(ctx, job.ForecastYear, region)
	if err != nil {
		r.logger.Warn("No usable weather data, forecasting without regressors",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		weather = nil
	}

	holidays, err := r.enricher.LoadHolidays(ctx, job.ForecastYear, region)
	if err != nil {
		r.logger.Warn("No usable holiday data",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		holidays = nil
	}

	return weather, holidays
}

func (r *Runner) stageQuality(ctx context.Context, job *domain.Job, series []normalize.HourlyRecord) error {
	defer r.observeStage("quality_check", r.clock.Now())

	report := quality.Analyze(series, job.ID)
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize quality report: %w", err)
	}
	if err := r.store.SaveQualityReport(ctx, job.ID, payload); err != nil {
		return err
	}

	r.logger.Info("Quality check complete",
		slog.String("job_id", job.ID),
		slog.Float64("coverage_percent", report.CoveragePercent),
		slog.Bool("passed", report.Passed),
	)
	return nil
}

func (r *Runner) stageForecast(
	ctx context.Context,
	job *domain.Job,
	series []normalize.HourlyRecord,
	weather *enrichment.WeatherData,
	holidays []time.Time,
) (string, error) {
	defer r.observeStage("forecasting", r.clock.Now())

	engineCtx, cancel := context.WithTimeout(ctx, r.config.EngineTimeout)
	defer cancel()

	points, err := r.forecaster.Run(engineCtx, series, job.ForecastYear, weather, holidays)
	if err != nil {
		return "", err
	}

	if err := r.store.SaveForecast(ctx, job.ID, points); err != nil {
		return "", err
	}

	// Mirror the forecast as CSV next to the raw upload. Best effort: the
	// canonical copy lives in the database.
	outputPath := fmt.Sprintf("forecasts/%s.csv", job.ID)
	if stored, err := r.blobs.Put(ctx, forecastCSV(points), outputPath); err != nil {
		r.logger.Warn("Failed to mirror forecast CSV",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		outputPath = ""
	} else {
		outputPath = stored
	}

	return outputPath, nil
}

func (r *Runner) observeStage(stage string, start time.Time) {
	r.metrics.StageDuration.WithLabelValues(stage).Observe(r.clock.Since(start).Seconds())
}

// seriesYears collects the distinct years present in the series plus the
// target year, ascending.
func seriesYears(series []normalize.HourlyRecord, targetYear int) []int {
	seen := map[int]bool{targetYear: true}
	years := []int{targetYear}
	for _, rec := range series {
		y := rec.TS.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	for i := 1; i < len(years); i++ {
		for j := i; j > 0 && years[j] < years[j-1]; j-- {
			years[j], years[j-1] = years[j-1], years[j]
		}
	}
	return years
}

// forecastCSV renders forecast points in the download format.
func forecastCSV(points []forecast.Point) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"timestamp", "yhat", "yhat_lower", "yhat_upper"})
	for _, p := range points {
		_ = w.Write([]string{
			p.HourTS.Format(time.RFC3339),
			strconv.FormatFloat(p.Yhat, 'f', 3, 64),
			strconv.FormatFloat(p.YhatLower, 'f', 3, 64),
			strconv.FormatFloat(p.YhatUpper, 'f', 3, 64),
		})
	}
	w.Flush()
	return buf.Bytes()
}
