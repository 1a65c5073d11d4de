package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/forecast"
	"github.com/FREDERICO23/gridflow-api/shared/logger"
)

const seriesChunkSize = 500

// SeriesPoint is one hourly (or sub-hourly) observation persisted for a job
// at a given pipeline stage. A nil ValueKW marks a gap that survived filling.
type SeriesPoint struct {
	TS      time.Time `db:"ts"`
	JobID   string    `db:"job_id"`
	Stage   string    `db:"stage"`
	ValueKW *float64  `db:"value_kw"`
}

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewStorage creates a new worker storage instance
func NewStorage(db *sqlx.DB, logger *logger.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob atomically transitions a queued job to parsing. Only one worker
// can win the claim; everyone else gets ErrJobAlreadyClaimed.
func (s *Storage) ClaimJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING id, status, file_name, file_size_bytes, raw_path, output_path,
		          forecast_year, error_message, created_at, completed_at`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.StatusParsing, jobID, domain.StatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}

	return &job, nil
}

// AdvanceStage moves a job to the given pipeline status
func (s *Storage) AdvanceStage(ctx context.Context, jobID string, status string) error {
	query := `UPDATE jobs SET status = $1 WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, status, jobID)
	if err != nil {
		return fmt.Errorf("failed to advance job %s to %s: %w", jobID, status, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// MarkFailed records a terminal failure with the error text shown to callers
func (s *Storage) MarkFailed(ctx context.Context, jobID, errorMessage string, at time.Time) error {
	query := `UPDATE jobs SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`

	if _, err := s.db.ExecContext(ctx, query, domain.StatusFailed, errorMessage, at, jobID); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}

	return nil
}

// MarkComplete records a successful pipeline run
func (s *Storage) MarkComplete(ctx context.Context, jobID, outputPath string, at time.Time) error {
	query := `UPDATE jobs SET status = $1, output_path = $2, completed_at = $3 WHERE id = $4`

	if _, err := s.db.ExecContext(ctx, query, domain.StatusComplete, outputPath, at, jobID); err != nil {
		return fmt.Errorf("failed to mark job %s complete: %w", jobID, err)
	}

	return nil
}

// SaveQualityReport stores the serialized quality report on the job row
func (s *Storage) SaveQualityReport(ctx context.Context, jobID string, report []byte) error {
	query := `UPDATE jobs SET quality_report = $1 WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, report, jobID); err != nil {
		return fmt.Errorf("failed to save quality report for job %s: %w", jobID, err)
	}

	return nil
}

// SaveSeries persists stage output points in chunks. Re-runs are tolerated
// via ON CONFLICT DO NOTHING on the (ts, job_id, stage) key.
func (s *Storage) SaveSeries(ctx context.Context, points []SeriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	query := `
		INSERT INTO time_series (ts, job_id, stage, value_kw)
		VALUES (:ts, :job_id, :stage, :value_kw)
		ON CONFLICT (ts, job_id, stage) DO NOTHING`

	for start := 0; start < len(points); start += seriesChunkSize {
		end := start + seriesChunkSize
		if end > len(points) {
			end = len(points)
		}
		if _, err := s.db.NamedExecContext(ctx, query, points[start:end]); err != nil {
			return fmt.Errorf("failed to save series chunk: %w", err)
		}
	}

	return nil
}

// SaveForecast persists the hourly forecast rows for a job
func (s *Storage) SaveForecast(ctx context.Context, jobID string, points []forecast.Point) error {
	if len(points) == 0 {
		return nil
	}

	type row struct {
		HourTS    time.Time `db:"hour_ts"`
		JobID     string    `db:"job_id"`
		Yhat      float64   `db:"yhat"`
		YhatLower float64   `db:"yhat_lower"`
		YhatUpper float64   `db:"yhat_upper"`
	}

	rows := make([]row, 0, len(points))
	for _, p := range points {
		rows = append(rows, row{
			HourTS:    p.HourTS,
			JobID:     jobID,
			Yhat:      p.Yhat,
			YhatLower: p.YhatLower,
			YhatUpper: p.YhatUpper,
		})
	}

	query := `
		INSERT INTO forecasts (hour_ts, job_id, yhat, yhat_lower, yhat_upper)
		VALUES (:hour_ts, :job_id, :yhat, :yhat_lower, :yhat_upper)
		ON CONFLICT (hour_ts, job_id) DO NOTHING`

	for start := 0; start < len(rows); start += seriesChunkSize {
		end := start + seriesChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := s.db.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return fmt.Errorf("failed to save forecast chunk: %w", err)
		}
	}

	return nil
}
