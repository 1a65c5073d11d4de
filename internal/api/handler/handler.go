package handler

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/FREDERICO23/gridflow-api/internal/api/storage"
	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/shared/blobstore"
)

// JobStore is the persistence surface the handlers need.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	GetSeries(ctx context.Context, jobID, stage string) ([]storage.SeriesRow, error)
	GetForecast(ctx context.Context, jobID string) ([]storage.ForecastRow, error)
	GetEnrichment(ctx context.Context, jobID, region string) ([]storage.EnrichmentRow, error)
}

// Publisher dispatches job messages to the worker queue.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Logger             *slog.Logger
	Storage            JobStore
	Publisher          Publisher
	Blobs              blobstore.Store
	Clock              clockwork.Clock
	MaxUploadSizeBytes int64
	DefaultRegion      string
}

// JobHandler handles upload, job, and pipeline-data HTTP requests.
type JobHandler struct {
	logger             *slog.Logger
	storage            JobStore
	publisher          Publisher
	blobs              blobstore.Store
	clock              clockwork.Clock
	maxUploadSizeBytes int64
	defaultRegion      string
}

// NewJobHandler creates a new JobHandler instance.
func NewJobHandler(deps *Dependencies) *JobHandler {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JobHandler{
		logger:             deps.Logger,
		storage:            deps.Storage,
		publisher:          deps.Publisher,
		blobs:              deps.Blobs,
		clock:              clock,
		maxUploadSizeBytes: deps.MaxUploadSizeBytes,
		defaultRegion:      deps.DefaultRegion,
	}
}
