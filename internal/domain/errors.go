package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that's
	// already been picked up by another worker
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")

	// ErrParse marks unrecoverable input: no plausible columns, empty file,
	// or every timestamp failing to parse
	ErrParse = errors.New("parse error")

	// ErrValidation marks a value outside the accepted domain, e.g. a
	// degenerate series or an out-of-range forecast year
	ErrValidation = errors.New("validation error")

	// ErrEnrichmentUnavailable is soft: provider failure or a cache miss with
	// no proxy-year fallback. The pipeline proceeds without enrichment data.
	ErrEnrichmentUnavailable = errors.New("enrichment data unavailable")

	// ErrForecast marks engine invocation failure or empty training data
	ErrForecast = errors.New("forecast error")
)
