package enrichment

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenMeteoClient_FetchYear(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"latitude":   q.Get("latitude"),
			"start_date": q.Get("start_date"),
			"end_date":   q.Get("end_date"),
			"hourly":     q.Get("hourly"),
			"timezone":   q.Get("timezone"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hourly": {
				"time": ["2024-01-01T00:00", "2024-01-01T01:00", "bogus"],
				"temperature_2m": [1.5, null, 3.0],
				"shortwave_radiation": [0.0, 12.5, 20.0],
				"wind_speed_10m": [4.2, 4.4, 4.6],
				"precipitation": [0.0, 0.1, 0.2]
			}
		}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, 5*time.Second, testLogger())
	rows, err := client.FetchYear(context.Background(), 2024, "DE")
	require.NoError(t, err)

	assert.Equal(t, "52.52", gotQuery["latitude"])
	assert.Equal(t, "2024-01-01", gotQuery["start_date"])
	assert.Equal(t, "2024-12-31", gotQuery["end_date"])
	assert.Equal(t, "temperature_2m,shortwave_radiation,wind_speed_10m,precipitation", gotQuery["hourly"])
	assert.Equal(t, "UTC", gotQuery["timezone"])

	// The unparseable third timestamp is skipped.
	require.Len(t, rows, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].TS)
	assert.Equal(t, "DE", rows[0].CountryCode)
	require.NotNil(t, rows[0].Temperature2M)
	assert.InDelta(t, 1.5, *rows[0].Temperature2M, 1e-9)

	// Nulls survive as nil pointers instead of zeros.
	assert.Nil(t, rows[1].Temperature2M)
	require.NotNil(t, rows[1].SolarRadiation)
	assert.InDelta(t, 12.5, *rows[1].SolarRadiation, 1e-9)
}

func TestOpenMeteoClient_FetchYearUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, 5*time.Second, testLogger())
	_, err := client.FetchYear(context.Background(), 2024, "DE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenMeteoClient_UnknownRegionFallsBackToDefault(t *testing.T) {
	var gotLat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLat = r.URL.Query().Get("latitude")
		_, _ = w.Write([]byte(`{"hourly":{"time":[]}}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, 5*time.Second, testLogger())
	_, err := client.FetchYear(context.Background(), 2024, "XX")
	require.NoError(t, err)
	assert.Equal(t, "52.52", gotLat)
}

func TestNagerClient_FetchYear(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"date": "2024-01-01", "localName": "Neujahr", "name": "New Year's Day"},
			{"date": "2024-10-03", "localName": "", "name": "German Unity Day"},
			{"date": "invalid", "localName": "x", "name": "x"}
		]`))
	}))
	defer srv.Close()

	client := NewNagerClient(srv.URL, 5*time.Second, testLogger())
	rows, err := client.FetchYear(context.Background(), 2024, "DE")
	require.NoError(t, err)

	assert.Equal(t, "/2024/DE", gotPath)
	require.Len(t, rows, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].Day)
	assert.Equal(t, "Neujahr", rows[0].Name)
	// Falls back to the English name when no local name exists.
	assert.Equal(t, "German Unity Day", rows[1].Name)
	assert.Equal(t, "DE", rows[1].CountryCode)
}

func TestNagerClient_FetchYearUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewNagerClient(srv.URL, 5*time.Second, testLogger())
	_, err := client.FetchYear(context.Background(), 2024, "ZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
