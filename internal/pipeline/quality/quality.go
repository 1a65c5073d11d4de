package quality

import (
	"math"
	"sort"
	"time"

	"github.com/FREDERICO23/gridflow-api/internal/pipeline/normalize"
)

const (
	// outlierIQRFactor is deliberately wider than the conventional 1.5 so
	// normal demand spikes are not flagged.
	outlierIQRFactor = 3.0
	flatPeriodMin    = 3
	passCoverage     = 95.0
)

// Statistics holds descriptive statistics over the non-null values, each
// rounded to 3 decimals. Pointers are nil when no non-null values exist.
type Statistics struct {
	MeanKW *float64 `json:"mean_kw"`
	MinKW  *float64 `json:"min_kw"`
	MaxKW  *float64 `json:"max_kw"`
	StdKW  *float64 `json:"std_kw"`
	P5KW   *float64 `json:"p5_kw"`
	P95KW  *float64 `json:"p95_kw"`
}

// DateRange is the inclusive span of the analyzed series.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Outliers reports IQR-fence outlier detection results.
type Outliers struct {
	Count           int     `json:"count"`
	Method          string  `json:"method"`
	ThresholdFactor float64 `json:"threshold_factor"`
}

// FlatPeriods reports runs of at least flatPeriodMin consecutive equal values.
type FlatPeriods struct {
	Count               int `json:"count"`
	TotalHours          int `json:"total_hours"`
	MinConsecutiveHours int `json:"min_consecutive_hours"`
}

// Report is the immutable quality snapshot stored on the job.
type Report struct {
	JobID           string       `json:"job_id"`
	TotalRecords    int          `json:"total_records"`
	DateRange       *DateRange   `json:"date_range,omitempty"`
	CoveragePercent float64      `json:"coverage_percent"`
	MissingHours    int          `json:"missing_hours"`
	Statistics      *Statistics  `json:"statistics,omitempty"`
	Outliers        *Outliers    `json:"outliers,omitempty"`
	FlatPeriods     *FlatPeriods `json:"flat_periods,omitempty"`
	Passed          bool         `json:"passed"`
	Error           string       `json:"error,omitempty"`
}

// Analyze computes the statistical health report for a normalized hourly
// series. It is a pure function; an empty series yields a failed report
// rather than an error.
func Analyze(series []normalize.HourlyRecord, jobID string) Report {
	if len(series) == 0 {
		return Report{
			JobID:        jobID,
			TotalRecords: 0,
			Passed:       false,
			Error:        "No data",
		}
	}

	first := series[0].TS
	last := series[len(series)-1].TS

	clean := make([]float64, 0, len(series))
	for _, rec := range series {
		if !rec.Missing {
			clean = append(clean, rec.ValueKW)
		}
	}

	// Expected hours = full span from first to last timestamp, inclusive.
	spanHours := int(last.Sub(first)/time.Hour) + 1
	if spanHours < 1 {
		spanHours = 1
	}
	coverage := round2(float64(len(clean)) / float64(spanHours) * 100)

	report := Report{
		JobID:        jobID,
		TotalRecords: len(series),
		DateRange: &DateRange{
			Start: first.Format(time.RFC3339),
			End:   last.Format(time.RFC3339),
		},
		CoveragePercent: coverage,
		MissingHours:    spanHours - len(clean),
		Statistics:      describe(clean),
		Outliers: &Outliers{
			Count:           countOutliers(clean),
			Method:          "IQR",
			ThresholdFactor: outlierIQRFactor,
		},
		FlatPeriods: flatPeriods(series),
		Passed:      coverage >= passCoverage,
	}
	return report
}

func describe(clean []float64) *Statistics {
	if len(clean) == 0 {
		return &Statistics{}
	}
	mean := meanOf(clean)
	min, max := clean[0], clean[0]
	for _, v := range clean {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return &Statistics{
		MeanKW: round3p(mean),
		MinKW:  round3p(min),
		MaxKW:  round3p(max),
		StdKW:  round3p(sampleStd(clean, mean)),
		P5KW:   round3p(percentile(clean, 5)),
		P95KW:  round3p(percentile(clean, 95)),
	}
}

func countOutliers(clean []float64) int {
	if len(clean) == 0 {
		return 0
	}
	q1 := quantile(clean, 0.25)
	q3 := quantile(clean, 0.75)
	iqr := q3 - q1
	lower := q1 - outlierIQRFactor*iqr
	upper := q3 + outlierIQRFactor*iqr
	count := 0
	for _, v := range clean {
		if v < lower || v > upper {
			count++
		}
	}
	return count
}

// flatPeriods run-length encodes the series, treating nulls as a sentinel
// that never matches, and counts runs of >= flatPeriodMin equal values.
func flatPeriods(series []normalize.HourlyRecord) *FlatPeriods {
	fp := &FlatPeriods{MinConsecutiveHours: flatPeriodMin}
	runLen := 0
	var runVal float64
	haveRun := false

	flush := func() {
		if haveRun && runLen >= flatPeriodMin {
			fp.Count++
			fp.TotalHours += runLen
		}
	}
	for _, rec := range series {
		if rec.Missing {
			flush()
			haveRun = false
			runLen = 0
			continue
		}
		if haveRun && rec.ValueKW == runVal {
			runLen++
			continue
		}
		flush()
		haveRun = true
		runVal = rec.ValueKW
		runLen = 1
	}
	flush()
	return fp
}

func meanOf(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func sampleStd(vs []float64, mean float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vs)-1))
}

// percentile computes the p-th percentile with linear interpolation.
func percentile(vs []float64, p float64) float64 {
	return quantile(vs, p/100)
}

func quantile(vs []float64, q float64) float64 {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3p(v float64) *float64 {
	r := math.Round(v*1000) / 1000
	return &r
}
