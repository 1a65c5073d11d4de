package normalize

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/parser"
)

// maxFillGapHours is the longest run of missing hours forward-filled from the
// last known value. Longer gaps stay null.
const maxFillGapHours = 2

// HourlyRecord is one hour of the normalized series. TS is timezone-aware and
// exactly on the hour; Missing marks unfilled gaps.
type HourlyRecord struct {
	TS      time.Time
	ValueKW float64
	Missing bool
}

// Normalizer resamples parsed load profiles to a strict 1-hour grid.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize localizes the parsed series to loc, buckets it into hourly means,
// and returns a contiguous hourly grid across the observed span. Naive
// timestamps are localized (ambiguous DST instants resolve to their first
// occurrence, skipped instants shift forward); short gaps are forward-filled.
func (n *Normalizer) Normalize(records []parser.Record, loc *time.Location) ([]HourlyRecord, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: cannot normalize an empty series", domain.ErrValidation)
	}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)
	var first, last time.Time

	for _, rec := range records {
		hour := hourBucket(localize(rec.TS, loc))
		if first.IsZero() || hour.Before(first) {
			first = hour
		}
		if last.IsZero() || hour.After(last) {
			last = hour
		}
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{}
			buckets[hour] = b
		}
		if !rec.Missing {
			b.sum += rec.ValueKW
			b.count++
		}
	}

	// Walk the span hour by hour. Adding absolute hours keeps the grid
	// regular across DST transitions.
	var out []HourlyRecord
	fillRun := 0
	var lastKnown float64
	haveKnown := false

	for t := first; !t.After(last); t = t.Add(time.Hour) {
		rec := HourlyRecord{TS: t, Missing: true}
		if b, ok := buckets[t]; ok && b.count > 0 {
			rec.ValueKW = b.sum / float64(b.count)
			rec.Missing = false
			lastKnown = rec.ValueKW
			haveKnown = true
			fillRun = 0
		} else if haveKnown && fillRun < maxFillGapHours {
			rec.ValueKW = lastKnown
			rec.Missing = false
			fillRun++
		}
		out = append(out, rec)
	}

	n.logger.Info("Normalized to hourly records",
		slog.Int("records", len(out)),
		slog.String("timezone", loc.String()),
	)
	return out, nil
}

// localize interprets a naive (UTC-frame) instant as wall-clock time in loc.
// Timestamps already carrying a real zone are converted instead.
func localize(t time.Time, loc *time.Location) time.Time {
	if t.Location() == time.UTC {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return t.In(loc)
}

// hourBucket floors a localized instant to its wall-clock hour.
func hourBucket(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
