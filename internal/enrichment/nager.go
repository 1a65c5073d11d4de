package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// NagerClient implements HolidayProvider against the Nager.Date public
// holiday registry.
type NagerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNagerClient creates a Nager.Date client with a bounded request timeout.
func NewNagerClient(baseURL string, timeout time.Duration, logger *slog.Logger) *NagerClient {
	if baseURL == "" {
		baseURL = "https://date.nager.at/api/v3/PublicHolidays"
	}
	return &NagerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type nagerHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// FetchYear downloads the public holidays of a year for a region code.
func (c *NagerClient) FetchYear(ctx context.Context, year int, region string) ([]Holiday, error) {
	u := fmt.Sprintf("%s/%d/%s", c.baseURL, year, region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build holiday request: %w", err)
	}

	c.logger.Info("Fetching public holidays",
		slog.Int("year", year),
		slog.String("region", region),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("holiday request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("holiday registry returned status %d: %s", resp.StatusCode, body)
	}

	var payload []nagerHoliday
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode holiday response: %w", err)
	}

	rows := make([]Holiday, 0, len(payload))
	for _, h := range payload {
		day, err := time.ParseInLocation("2006-01-02", h.Date, time.UTC)
		if err != nil {
			continue
		}
		name := h.LocalName
		if name == "" {
			name = h.Name
		}
		rows = append(rows, Holiday{Day: day, CountryCode: region, Name: name})
	}
	return rows, nil
}
