package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Representative coordinates per region code (Berlin for DE).
var regionCoords = map[string][2]float64{
	"DE": {52.52, 13.41},
	"AT": {48.21, 16.37},
	"FR": {48.85, 2.35},
	"NL": {52.37, 4.90},
	"PL": {52.23, 21.01},
}

const defaultRegion = "DE"

// OpenMeteoClient implements WeatherProvider against the Open-Meteo
// historical weather archive.
type OpenMeteoClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenMeteoClient creates an archive client with a bounded request timeout.
func NewOpenMeteoClient(baseURL string, timeout time.Duration, logger *slog.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = "https://archive-api.open-meteo.com/v1/archive"
	}
	return &OpenMeteoClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type archiveResponse struct {
	Hourly struct {
		Time               []string   `json:"time"`
		Temperature2M      []*float64 `json:"temperature_2m"`
		ShortwaveRadiation []*float64 `json:"shortwave_radiation"`
		WindSpeed10M       []*float64 `json:"wind_speed_10m"`
		Precipitation      []*float64 `json:"precipitation"`
	} `json:"hourly"`
}

// FetchYear downloads one year of hourly weather for a region's
// representative coordinates.
func (c *OpenMeteoClient) FetchYear(ctx context.Context, year int, region string) ([]WeatherObservation, error) {
	coords, ok := regionCoords[region]
	if !ok {
		coords = regionCoords[defaultRegion]
	}

	params := url.Values{
		"latitude":   {fmt.Sprintf("%.2f", coords[0])},
		"longitude":  {fmt.Sprintf("%.2f", coords[1])},
		"start_date": {fmt.Sprintf("%d-01-01", year)},
		"end_date":   {fmt.Sprintf("%d-12-31", year)},
		"hourly":     {"temperature_2m,shortwave_radiation,wind_speed_10m,precipitation"},
		"timezone":   {"UTC"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	c.logger.Info("Fetching weather archive",
		slog.Int("year", year),
		slog.String("region", region),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather archive returned status %d: %s", resp.StatusCode, body)
	}

	var payload archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	hourly := payload.Hourly
	rows := make([]WeatherObservation, 0, len(hourly.Time))
	for i, raw := range hourly.Time {
		ts, err := time.ParseInLocation("2006-01-02T15:04", raw, time.UTC)
		if err != nil {
			continue
		}
		rows = append(rows, WeatherObservation{
			TS:             ts,
			CountryCode:    region,
			Temperature2M:  at(hourly.Temperature2M, i),
			SolarRadiation: at(hourly.ShortwaveRadiation, i),
			WindSpeed10M:   at(hourly.WindSpeed10M, i),
			Precipitation:  at(hourly.Precipitation, i),
		})
	}
	return rows, nil
}

func at(vs []*float64, i int) *float64 {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}
