package dto

import "encoding/json"

// UploadResponse is returned when an upload is accepted for processing.
type UploadResponse struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	FileName     string `json:"file_name"`
	ForecastYear int    `json:"forecast_year"`
	CreatedAt    string `json:"created_at"`
}

// JobDTO is the wire shape of a job.
type JobDTO struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	FileName      string `json:"file_name"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	ForecastYear  int    `json:"forecast_year"`
	ErrorMessage  string `json:"error_message,omitempty"`
	OutputPath    string `json:"output_path,omitempty"`
	CreatedAt     string `json:"created_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// ListJobsRequest holds the job listing query parameters.
type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is a page of jobs with an opaque continuation cursor.
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// SeriesPointDTO is one hour of a parsed or normalized series. ValueKW is
// null for unfilled gaps.
type SeriesPointDTO struct {
	Timestamp string   `json:"timestamp"`
	ValueKW   *float64 `json:"value_kw"`
}

// SeriesResponse wraps a per-job series payload.
type SeriesResponse struct {
	JobID  string           `json:"job_id"`
	Stage  string           `json:"stage"`
	Count  int              `json:"count"`
	Points []SeriesPointDTO `json:"points"`
}

// EnrichmentPointDTO is one normalized hour with its weather and holiday
// context.
type EnrichmentPointDTO struct {
	Timestamp      string   `json:"timestamp"`
	ValueKW        *float64 `json:"value_kw"`
	Temperature2M  *float64 `json:"temperature_2m"`
	SolarRadiation *float64 `json:"solar_radiation"`
	WindSpeed10M   *float64 `json:"wind_speed_10m"`
	Precipitation  *float64 `json:"precipitation"`
	IsHoliday      bool     `json:"is_holiday"`
}

// EnrichmentResponse wraps the enriched series payload.
type EnrichmentResponse struct {
	JobID  string               `json:"job_id"`
	Region string               `json:"region"`
	Count  int                  `json:"count"`
	Points []EnrichmentPointDTO `json:"points"`
}

// QualityReportResponse carries the stored quality report verbatim.
type QualityReportResponse struct {
	JobID  string          `json:"job_id"`
	Report json.RawMessage `json:"report"`
}

// ForecastPointDTO is one hour of the annual forecast.
type ForecastPointDTO struct {
	Timestamp string  `json:"timestamp"`
	Yhat      float64 `json:"yhat"`
	YhatLower float64 `json:"yhat_lower"`
	YhatUpper float64 `json:"yhat_upper"`
}

// ForecastResponse wraps the annual forecast payload.
type ForecastResponse struct {
	JobID        string             `json:"job_id"`
	ForecastYear int                `json:"forecast_year"`
	Count        int                `json:"count"`
	Points       []ForecastPointDTO `json:"points"`
}
