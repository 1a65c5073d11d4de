package domain

import "time"

// Job status values, in strict pipeline order. A job only ever moves forward
// through these, or into StatusFailed from any non-terminal state.
const (
	StatusQueued       = "queued"
	StatusParsing      = "parsing"
	StatusNormalizing  = "normalizing"
	StatusEnriching    = "enriching"
	StatusQualityCheck = "quality_check"
	StatusForecasting  = "forecasting"
	StatusComplete     = "complete"
	StatusFailed       = "failed"
)

// stageOrder maps each forward status to its position in the pipeline.
// StatusFailed is deliberately absent: it is terminal, not ordered.
var stageOrder = map[string]int{
	StatusQueued:       0,
	StatusParsing:      1,
	StatusNormalizing:  2,
	StatusEnriching:    3,
	StatusQualityCheck: 4,
	StatusForecasting:  5,
	StatusComplete:     6,
}

// StageIndex returns the pipeline position of a status, or -1 for
// failed/unknown statuses.
func StageIndex(status string) int {
	idx, ok := stageOrder[status]
	if !ok {
		return -1
	}
	return idx
}

// StageReached reports whether a job at the given status has reached or
// passed minStage. Failed jobs never satisfy any stage.
func StageReached(status, minStage string) bool {
	cur := StageIndex(status)
	min := StageIndex(minStage)
	return cur >= 0 && min >= 0 && cur >= min
}

// Minimum status a job must have reached before each derived dataset can be
// served. A dataset is written during the stage *before* the listed status, so
// "status has advanced past the producer" is the availability signal.
const (
	MinStageParsed     = StatusNormalizing  // parsed rows persist during parsing
	MinStageNormalized = StatusEnriching    // normalized rows persist during normalizing
	MinStageEnrichment = StatusQualityCheck // enrichment caches fill during enriching
	MinStageQuality    = StatusForecasting  // report persists during quality_check
	MinStageForecast   = StatusComplete     // forecast rows persist during forecasting
)

// Time-series stage labels used in the time_series table.
const (
	SeriesStageParsed     = "parsed"
	SeriesStageNormalized = "normalized"
)

// Job is the aggregate root of one ingestion-to-forecast run.
type Job struct {
	ID            string     `db:"id"`
	Status        string     `db:"status"`
	FileName      string     `db:"file_name"`
	FileSizeBytes int64      `db:"file_size_bytes"`
	RawPath       string     `db:"raw_path"`
	OutputPath    string     `db:"output_path"`
	ForecastYear  int        `db:"forecast_year"`
	ErrorMessage  string     `db:"error_message"`
	QualityReport []byte     `db:"quality_report"` // JSON, written by the quality stage
	CreatedAt     time.Time  `db:"created_at"`
	CompletedAt   *time.Time `db:"completed_at"`
}

// JobMessage is the dispatch payload published to RabbitMQ on job creation.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
