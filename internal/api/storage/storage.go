package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/shared/postgresql"
)

const jobColumns = `id, status, file_name, file_size_bytes, raw_path, output_path,
	forecast_year, error_message, quality_report, created_at, completed_at`

// Storage handles the read/write queries of the API service.
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates API storage on top of the shared PostgreSQL client.
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateJob inserts a freshly accepted upload in queued state.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			id, status, file_name, file_size_bytes,
			raw_path, forecast_year, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Status,
		job.FileName,
		job.FileSizeBytes,
		job.RawPath,
		job.ForecastYear,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID loads one job or domain.ErrJobNotFound.
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// JobFilter narrows and paginates the job listing.
type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset position for job listing pagination.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs so the caller can detect more pages.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// SeriesRow is one stored hour of a per-job series.
type SeriesRow struct {
	TS      time.Time `db:"ts"`
	ValueKW *float64  `db:"value_kw"`
}

// GetSeries loads the stored series for a job at the given stage, ascending.
func (s *Storage) GetSeries(ctx context.Context, jobID, stage string) ([]SeriesRow, error) {
	var rows []SeriesRow
	query := `
		SELECT ts, value_kw
		FROM time_series
		WHERE job_id = $1 AND stage = $2
		ORDER BY ts`

	err := s.db.SelectContext(ctx, &rows, query, jobID, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s series: %w", stage, err)
	}

	return rows, nil
}

// ForecastRow is one stored hour of the annual forecast.
type ForecastRow struct {
	HourTS    time.Time `db:"hour_ts"`
	Yhat      float64   `db:"yhat"`
	YhatLower float64   `db:"yhat_lower"`
	YhatUpper float64   `db:"yhat_upper"`
}

// GetForecast loads the forecast vector for a job, ascending.
func (s *Storage) GetForecast(ctx context.Context, jobID string) ([]ForecastRow, error) {
	var rows []ForecastRow
	query := `
		SELECT hour_ts, yhat, yhat_lower, yhat_upper
		FROM forecasts
		WHERE job_id = $1
		ORDER BY hour_ts`

	err := s.db.SelectContext(ctx, &rows, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast: %w", err)
	}

	return rows, nil
}

// EnrichmentRow is one normalized hour joined with its cached weather
// observation and holiday flag.
type EnrichmentRow struct {
	TS             time.Time `db:"ts"`
	ValueKW        *float64  `db:"value_kw"`
	Temperature2M  *float64  `db:"temperature_2m"`
	SolarRadiation *float64  `db:"solar_radiation"`
	WindSpeed10M   *float64  `db:"wind_speed_10m"`
	Precipitation  *float64  `db:"precipitation"`
	IsHoliday      bool      `db:"is_holiday"`
}

// GetEnrichment joins the normalized series with the shared weather and
// holiday caches for the given region.
func (s *Storage) GetEnrichment(ctx context.Context, jobID, region string) ([]EnrichmentRow, error) {
	var rows []EnrichmentRow
	query := `
		SELECT
			s.ts, s.value_kw,
			w.temperature_2m, w.solar_radiation, w.wind_speed_10m, w.precipitation,
			(h.day IS NOT NULL) AS is_holiday
		FROM time_series s
		LEFT JOIN weather_observations w
			ON w.ts = s.ts AND w.country_code = $3
		LEFT JOIN public_holidays h
			ON h.day = (s.ts AT TIME ZONE 'UTC')::date AND h.country_code = $3
		WHERE s.job_id = $1 AND s.stage = $2
		ORDER BY s.ts`

	err := s.db.SelectContext(ctx, &rows, query, jobID, domain.SeriesStageNormalized, region)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}

	return rows, nil
}
