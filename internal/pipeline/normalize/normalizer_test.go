package normalize

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/internal/pipeline/parser"
)

func newTestNormalizer() *Normalizer {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func naive(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNormalize_EmptyInput(t *testing.T) {
	_, err := newTestNormalizer().Normalize(nil, time.UTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNormalize_QuarterHourlyToMean(t *testing.T) {
	records := []parser.Record{
		{TS: naive(2024, 1, 1, 0, 0), ValueKW: 10},
		{TS: naive(2024, 1, 1, 0, 15), ValueKW: 20},
		{TS: naive(2024, 1, 1, 0, 30), ValueKW: 30},
		{TS: naive(2024, 1, 1, 0, 45), ValueKW: 40},
		{TS: naive(2024, 1, 1, 1, 0), ValueKW: 50},
	}

	out, err := newTestNormalizer().Normalize(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.InDelta(t, 25.0, out[0].ValueKW, 1e-9)
	assert.InDelta(t, 50.0, out[1].ValueKW, 1e-9)
	assert.False(t, out[0].Missing)
}

func TestNormalize_HourlyIdempotent(t *testing.T) {
	records := []parser.Record{
		{TS: naive(2024, 1, 1, 0, 0), ValueKW: 1},
		{TS: naive(2024, 1, 1, 1, 0), ValueKW: 2},
		{TS: naive(2024, 1, 1, 2, 0), ValueKW: 3},
	}

	out, err := newTestNormalizer().Normalize(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, rec := range out {
		assert.InDelta(t, float64(i+1), rec.ValueKW, 1e-9)
	}
}

func TestNormalize_ForwardFillShortGaps(t *testing.T) {
	records := []parser.Record{
		{TS: naive(2024, 1, 1, 0, 0), ValueKW: 5},
		// hours 1 and 2 absent
		{TS: naive(2024, 1, 1, 3, 0), ValueKW: 8},
	}

	out, err := newTestNormalizer().Normalize(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.False(t, out[1].Missing)
	assert.InDelta(t, 5.0, out[1].ValueKW, 1e-9)
	assert.False(t, out[2].Missing)
	assert.InDelta(t, 5.0, out[2].ValueKW, 1e-9)
	assert.InDelta(t, 8.0, out[3].ValueKW, 1e-9)
}

func TestNormalize_LongGapsStayMissing(t *testing.T) {
	records := []parser.Record{
		{TS: naive(2024, 1, 1, 0, 0), ValueKW: 5},
		// hours 1..3 absent, one beyond the fill limit
		{TS: naive(2024, 1, 1, 4, 0), ValueKW: 8},
	}

	out, err := newTestNormalizer().Normalize(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.False(t, out[1].Missing)
	assert.False(t, out[2].Missing)
	assert.True(t, out[3].Missing)
	assert.False(t, out[4].Missing)
}

func TestNormalize_MissingValuesNotAveraged(t *testing.T) {
	records := []parser.Record{
		{TS: naive(2024, 1, 1, 0, 0), ValueKW: 10},
		{TS: naive(2024, 1, 1, 0, 30), Missing: true},
	}

	out, err := newTestNormalizer().Normalize(records, time.UTC)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 10.0, out[0].ValueKW, 1e-9)
}

func TestNormalize_GridIsRegularAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 2024-03-31 01:00 to 04:00 local: 02:00 does not exist (spring forward).
	records := []parser.Record{
		{TS: naive(2024, 3, 31, 0, 0), ValueKW: 1},
		{TS: naive(2024, 3, 31, 1, 0), ValueKW: 2},
		{TS: naive(2024, 3, 31, 3, 0), ValueKW: 3},
		{TS: naive(2024, 3, 31, 4, 0), ValueKW: 4},
	}

	out, err := newTestNormalizer().Normalize(records, berlin)
	require.NoError(t, err)

	// Consecutive grid points are exactly one absolute hour apart.
	for i := 1; i < len(out); i++ {
		assert.Equal(t, time.Hour, out[i].TS.Sub(out[i-1].TS))
	}
}
