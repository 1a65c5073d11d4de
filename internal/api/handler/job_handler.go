package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FREDERICO23/gridflow-api/internal/api/dto"
	"github.com/FREDERICO23/gridflow-api/internal/api/storage"
	"github.com/FREDERICO23/gridflow-api/internal/domain"
)

var allowedExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".xls":  true,
}

// Upload handles POST /api/v1/uploads
// Accepts a load profile file, stores it, creates a queued job, and
// dispatches it to the worker queue.
func (h *JobHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "multipart field 'file' is required",
		})
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	extension := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[extension] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unsupported file type, expected .csv, .txt, .xlsx, or .xls",
		})
		return
	}

	if h.maxUploadSizeBytes > 0 && header.Size > h.maxUploadSizeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds the maximum upload size",
		})
		return
	}

	forecastYear, ok := h.parseForecastYear(c)
	if !ok {
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to read uploaded file",
		})
		return
	}

	jobID := uuid.New().String()
	rawPath, err := h.blobs.Put(c.Request.Context(), data, "uploads/"+jobID+"/"+fileName)
	if err != nil {
		h.logger.Error("Failed to store upload",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to store uploaded file",
		})
		return
	}

	job := domain.Job{
		ID:            jobID,
		Status:        domain.StatusQueued,
		FileName:      fileName,
		FileSizeBytes: int64(len(data)),
		RawPath:       rawPath,
		ForecastYear:  forecastYear,
		CreatedAt:     h.clock.Now().UTC(),
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create job",
		})
		return
	}

	payload, _ := json.Marshal(domain.JobMessage{JobID: job.ID})
	if err := h.publisher.PublishWithRetry(c.Request.Context(), payload, "application/json"); err != nil {
		// The job row stays queued; the message can be redispatched later.
		h.logger.Error("Failed to dispatch job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to dispatch job for processing",
		})
		return
	}

	h.logger.Info("Upload accepted",
		slog.String("job_id", job.ID),
		slog.String("file_name", job.FileName),
		slog.Int64("file_size_bytes", job.FileSizeBytes),
		slog.Int("forecast_year", job.ForecastYear),
	)

	c.JSON(http.StatusAccepted, dto.UploadResponse{
		JobID:        job.ID,
		Status:       job.Status,
		FileName:     job.FileName,
		ForecastYear: job.ForecastYear,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	})
}

func (h *JobHandler) parseForecastYear(c *gin.Context) (int, bool) {
	raw := c.PostForm("forecast_year")
	if raw == "" {
		return h.clock.Now().Year() + 1, true
	}

	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "forecast_year must be a year between 2000 and 2100",
		})
		return 0, false
	}
	return year, true
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs with status filtering and keyset
// pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid cursor",
		})
		return
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), storage.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	response := dto.ListJobsResponse{
		Jobs: make([]dto.JobDTO, len(jobs)),
	}
	for i, job := range jobs {
		response.Jobs[i] = toJobDTO(&job)
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		response.NextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, response)
}

// loadJob validates the path parameter and loads the job, writing the
// error response itself on failure.
func (h *JobHandler) loadJob(c *gin.Context) (*domain.Job, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return nil, false
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return nil, false
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get job",
		})
		return nil, false
	}

	return job, true
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	d := dto.JobDTO{
		JobID:         job.ID,
		Status:        job.Status,
		FileName:      job.FileName,
		FileSizeBytes: job.FileSizeBytes,
		ForecastYear:  job.ForecastYear,
		ErrorMessage:  job.ErrorMessage,
		OutputPath:    job.OutputPath,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return d
}
