package handler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FREDERICO23/gridflow-api/internal/api/dto"
	"github.com/FREDERICO23/gridflow-api/internal/api/storage"
	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/normalize"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/quality"
)

// GetParsedSeries handles GET /api/v1/jobs/:job_id/parsed
func (h *JobHandler) GetParsedSeries(c *gin.Context) {
	h.serveSeries(c, domain.SeriesStageParsed, domain.MinStageParsed)
}

// GetNormalizedSeries handles GET /api/v1/jobs/:job_id/normalized
func (h *JobHandler) GetNormalizedSeries(c *gin.Context) {
	h.serveSeries(c, domain.SeriesStageNormalized, domain.MinStageNormalized)
}

func (h *JobHandler) serveSeries(c *gin.Context, stage, minStage string) {
	job, ok := h.jobAtStage(c, minStage)
	if !ok {
		return
	}

	rows, err := h.storage.GetSeries(c.Request.Context(), job.ID, stage)
	if err != nil {
		h.logger.Error("Failed to load series",
			slog.String("job_id", job.ID),
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load series",
		})
		return
	}

	response := dto.SeriesResponse{
		JobID:  job.ID,
		Stage:  stage,
		Count:  len(rows),
		Points: make([]dto.SeriesPointDTO, len(rows)),
	}
	for i, row := range rows {
		response.Points[i] = dto.SeriesPointDTO{
			Timestamp: row.TS.UTC().Format(time.RFC3339),
			ValueKW:   row.ValueKW,
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetEnrichment handles GET /api/v1/jobs/:job_id/enrichment
// Returns the normalized series joined with the weather and holiday caches.
func (h *JobHandler) GetEnrichment(c *gin.Context) {
	job, ok := h.jobAtStage(c, domain.MinStageEnrichment)
	if !ok {
		return
	}

	rows, err := h.storage.GetEnrichment(c.Request.Context(), job.ID, h.defaultRegion)
	if err != nil {
		h.logger.Error("Failed to load enrichment",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load enrichment",
		})
		return
	}

	response := dto.EnrichmentResponse{
		JobID:  job.ID,
		Region: h.defaultRegion,
		Count:  len(rows),
		Points: make([]dto.EnrichmentPointDTO, len(rows)),
	}
	for i, row := range rows {
		response.Points[i] = dto.EnrichmentPointDTO{
			Timestamp:      row.TS.UTC().Format(time.RFC3339),
			ValueKW:        row.ValueKW,
			Temperature2M:  row.Temperature2M,
			SolarRadiation: row.SolarRadiation,
			WindSpeed10M:   row.WindSpeed10M,
			Precipitation:  row.Precipitation,
			IsHoliday:      row.IsHoliday,
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetQualityReport handles GET /api/v1/jobs/:job_id/quality-report
// Serves the stored report; recomputes it from the normalized series when
// the stored copy is missing.
func (h *JobHandler) GetQualityReport(c *gin.Context) {
	job, ok := h.jobAtStage(c, domain.MinStageQuality)
	if !ok {
		return
	}

	report := job.QualityReport
	if len(report) == 0 {
		recomputed, err := h.recomputeQualityReport(c, job)
		if err != nil {
			h.logger.Error("Failed to recompute quality report",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "failed to load quality report",
			})
			return
		}
		report = recomputed
	}

	c.JSON(http.StatusOK, dto.QualityReportResponse{
		JobID:  job.ID,
		Report: report,
	})
}

func (h *JobHandler) recomputeQualityReport(c *gin.Context, job *domain.Job) ([]byte, error) {
	rows, err := h.storage.GetSeries(c.Request.Context(), job.ID, domain.SeriesStageNormalized)
	if err != nil {
		return nil, err
	}

	series := make([]normalize.HourlyRecord, len(rows))
	for i, row := range rows {
		rec := normalize.HourlyRecord{TS: row.TS.UTC(), Missing: row.ValueKW == nil}
		if row.ValueKW != nil {
			rec.ValueKW = *row.ValueKW
		}
		series[i] = rec
	}

	return json.Marshal(quality.Analyze(series, job.ID))
}

// GetForecast handles GET /api/v1/jobs/:job_id/forecast
func (h *JobHandler) GetForecast(c *gin.Context) {
	job, ok := h.jobAtStage(c, domain.MinStageForecast)
	if !ok {
		return
	}

	rows, err := h.loadForecast(c, job)
	if err != nil {
		return
	}

	response := dto.ForecastResponse{
		JobID:        job.ID,
		ForecastYear: job.ForecastYear,
		Count:        len(rows),
		Points:       make([]dto.ForecastPointDTO, len(rows)),
	}
	for i, row := range rows {
		response.Points[i] = dto.ForecastPointDTO{
			Timestamp: row.HourTS.UTC().Format(time.RFC3339),
			Yhat:      row.Yhat,
			YhatLower: row.YhatLower,
			YhatUpper: row.YhatUpper,
		}
	}

	c.JSON(http.StatusOK, response)
}

// DownloadForecast handles GET /api/v1/jobs/:job_id/forecast/download
// Streams the forecast as a CSV attachment.
func (h *JobHandler) DownloadForecast(c *gin.Context) {
	job, ok := h.jobAtStage(c, domain.MinStageForecast)
	if !ok {
		return
	}

	rows, err := h.loadForecast(c, job)
	if err != nil {
		return
	}

	fileName := fmt.Sprintf("forecast_%s_%d.csv", job.ID, job.ForecastYear)
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"timestamp", "yhat", "yhat_lower", "yhat_upper"})
	for _, row := range rows {
		_ = w.Write([]string{
			row.HourTS.UTC().Format(time.RFC3339),
			strconv.FormatFloat(row.Yhat, 'f', 3, 64),
			strconv.FormatFloat(row.YhatLower, 'f', 3, 64),
			strconv.FormatFloat(row.YhatUpper, 'f', 3, 64),
		})
	}
	w.Flush()
}

func (h *JobHandler) loadForecast(c *gin.Context, job *domain.Job) ([]storage.ForecastRow, error) {
	rows, err := h.storage.GetForecast(c.Request.Context(), job.ID)
	if err != nil {
		h.logger.Error("Failed to load forecast",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load forecast",
		})
		return nil, err
	}
	return rows, nil
}

// jobAtStage loads the job and enforces that its status has reached the
// minimum stage for the requested dataset. Failed jobs and not-yet-reached
// stages both answer 409 so callers can poll the job until it advances.
func (h *JobHandler) jobAtStage(c *gin.Context, minStage string) (*domain.Job, bool) {
	job, ok := h.loadJob(c)
	if !ok {
		return nil, false
	}

	if job.Status == domain.StatusFailed {
		c.JSON(http.StatusConflict, gin.H{
			"error":         "job failed before producing this data",
			"status":        job.Status,
			"error_message": job.ErrorMessage,
		})
		return nil, false
	}

	if !domain.StageReached(job.Status, minStage) {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "job has not reached this stage yet",
			"status": job.Status,
		})
		return nil, false
	}

	return job, true
}
