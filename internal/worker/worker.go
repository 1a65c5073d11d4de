package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/shared/rabbitmq"
)

// Config holds the dependencies and settings for the worker service.
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Runner        *Runner
	Concurrency   int
	JobTimeout    time.Duration
	PrefetchCount int
	QueueName     string
}

// Worker consumes job messages from RabbitMQ and drives the pipeline runner
// through a bounded pool of goroutines.
type Worker struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	runner        *Runner
	concurrency   int
	jobTimeout    time.Duration
	prefetchCount int
	queueName     string
	workerID      string

	jobsChan chan *domain.JobMessage
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance.
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	return &Worker{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		runner:        cfg.Runner,
		concurrency:   concurrency,
		jobTimeout:    cfg.JobTimeout,
		prefetchCount: prefetch,
		queueName:     cfg.QueueName,
		workerID:      fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		jobsChan:      make(chan *domain.JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start sets up the consumer, spawns the pool, and blocks dispatching
// messages until the context is canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)
	return nil
}

// Stop signals all worker goroutines and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	w.wg.Wait()

	w.logger.Info("All worker goroutines stopped",
		slog.String("worker_id", w.workerID),
	)
}
