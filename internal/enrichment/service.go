package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/FREDERICO23/gridflow-api/internal/domain"
	"github.com/FREDERICO23/gridflow-api/internal/observability"
)

// minWeatherRows is the cache-hit threshold for a year of hourly weather.
// Below 8760/8784 to tolerate daylight-saving-length years.
const minWeatherRows = 8700

const upsertChunkSize = 500

// Store is the persistence surface of the enrichment caches.
type Store interface {
	CountWeather(ctx context.Context, year int, region string) (int, error)
	InsertWeather(ctx context.Context, rows []WeatherObservation) error
	WeatherYear(ctx context.Context, year int, region string) ([]WeatherObservation, error)
	CountHolidays(ctx context.Context, year int, region string) (int, error)
	InsertHolidays(ctx context.Context, rows []Holiday) error
	HolidayDays(ctx context.Context, year int, region string) ([]time.Time, error)
}

// Service is the fetch-once enrichment cache shared across all jobs. Both
// sub-caches are keyed by (year, region); concurrent fetches for the same key
// are safe because the upsert is conflict-tolerant.
type Service struct {
	store    Store
	weather  WeatherProvider
	holidays HolidayProvider
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewService creates the enrichment cache service backed by Postgres.
func NewService(db *sqlx.DB, weather WeatherProvider, holidays HolidayProvider, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    &sqlStore{db: db},
		weather:  weather,
		holidays: holidays,
		metrics:  metrics,
		logger:   logger,
	}
}

// EnsureWeather makes sure hourly weather for (year, region) is cached.
// A no-op when the cached row count already meets the threshold; otherwise
// one provider fetch followed by a conflict-safe upsert.
func (s *Service) EnsureWeather(ctx context.Context, year int, region string) error {
	cached, err := s.store.CountWeather(ctx, year, region)
	if err != nil {
		return fmt.Errorf("%w: weather cache count failed: %v", domain.ErrEnrichmentUnavailable, err)
	}
	if cached >= minWeatherRows {
		s.metrics.EnrichmentCache.WithLabelValues("weather", "hit").Inc()
		s.logger.Info("Weather cache hit",
			slog.Int("rows", cached),
			slog.Int("year", year),
			slog.String("region", region),
		)
		return nil
	}
	s.metrics.EnrichmentCache.WithLabelValues("weather", "miss").Inc()

	rows, err := s.weather.FetchYear(ctx, year, region)
	if err != nil {
		s.metrics.EnrichmentFetches.WithLabelValues("weather", "error").Inc()
		return fmt.Errorf("%w: weather fetch failed: %v", domain.ErrEnrichmentUnavailable, err)
	}
	if len(rows) == 0 {
		s.metrics.EnrichmentFetches.WithLabelValues("weather", "empty").Inc()
		s.logger.Warn("Weather provider returned no hourly data",
			slog.Int("year", year),
			slog.String("region", region),
		)
		return nil
	}
	s.metrics.EnrichmentFetches.WithLabelValues("weather", "success").Inc()

	if err := s.store.InsertWeather(ctx, rows); err != nil {
		return fmt.Errorf("%w: weather upsert failed: %v", domain.ErrEnrichmentUnavailable, err)
	}

	s.logger.Info("Cached weather rows",
		slog.Int("rows", len(rows)),
		slog.Int("year", year),
		slog.String("region", region),
	)
	return nil
}

// EnsureHolidays makes sure public holidays for (year, region) are cached.
func (s *Service) EnsureHolidays(ctx context.Context, year int, region string) error {
	cached, err := s.store.CountHolidays(ctx, year, region)
	if err != nil {
		return fmt.Errorf("%w: holiday cache count failed: %v", domain.ErrEnrichmentUnavailable, err)
	}
	if cached > 0 {
		s.metrics.EnrichmentCache.WithLabelValues("holidays", "hit").Inc()
		s.logger.Info("Holiday cache hit",
			slog.Int("year", year),
			slog.String("region", region),
		)
		return nil
	}
	s.metrics.EnrichmentCache.WithLabelValues("holidays", "miss").Inc()

	rows, err := s.holidays.FetchYear(ctx, year, region)
	if err != nil {
		s.metrics.EnrichmentFetches.WithLabelValues("holidays", "error").Inc()
		return fmt.Errorf("%w: holiday fetch failed: %v", domain.ErrEnrichmentUnavailable, err)
	}
	if len(rows) == 0 {
		s.metrics.EnrichmentFetches.WithLabelValues("holidays", "empty").Inc()
		s.logger.Warn("Holiday provider returned no holidays",
			slog.Int("year", year),
			slog.String("region", region),
		)
		return nil
	}
	s.metrics.EnrichmentFetches.WithLabelValues("holidays", "success").Inc()

	if err := s.store.InsertHolidays(ctx, rows); err != nil {
		return fmt.Errorf("%w: holiday upsert failed: %v", domain.ErrEnrichmentUnavailable, err)
	}

	s.logger.Info("Cached holidays",
		slog.Int("rows", len(rows)),
		slog.Int("year", year),
		slog.String("region", region),
	)
	return nil
}

// LoadWeather reads the cached weather dataset for (year, region). When the
// requested year is entirely absent it falls back to the prior year as a
// proxy for forecasting beyond archive coverage; the returned dataset carries
// the year actually served.
func (s *Service) LoadWeather(ctx context.Context, year int, region string) (*WeatherData, error) {
	rows, err := s.store.WeatherYear(ctx, year, region)
	if err != nil {
		return nil, fmt.Errorf("%w: weather load failed: %v", domain.ErrEnrichmentUnavailable, err)
	}
	if len(rows) > 0 {
		return &WeatherData{Year: year, Observations: rows}, nil
	}

	rows, err = s.store.WeatherYear(ctx, year-1, region)
	if err != nil {
		return nil, fmt.Errorf("%w: weather load failed: %v", domain.ErrEnrichmentUnavailable, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no weather data for %d or %d in region %s",
			domain.ErrEnrichmentUnavailable, year, year-1, region)
	}
	s.logger.Info("Using prior-year weather as proxy",
		slog.Int("requested_year", year),
		slog.Int("served_year", year-1),
		slog.String("region", region),
	)
	return &WeatherData{Year: year - 1, Observations: rows}, nil
}

// LoadHolidays reads the cached public holidays for (year, region) as dates.
func (s *Service) LoadHolidays(ctx context.Context, year int, region string) ([]time.Time, error) {
	days, err := s.store.HolidayDays(ctx, year, region)
	if err != nil {
		return nil, fmt.Errorf("%w: holiday load failed: %v", domain.ErrEnrichmentUnavailable, err)
	}
	return days, nil
}

// sqlStore is the Postgres-backed Store used in production.
type sqlStore struct {
	db *sqlx.DB
}

func (s *sqlStore) CountWeather(ctx context.Context, year int, region string) (int, error) {
	start, end := weatherYearBounds(year)
	var cached int
	err := s.db.GetContext(ctx, &cached,
		`SELECT COUNT(*) FROM weather_observations WHERE ts >= $1 AND ts < $2 AND country_code = $3`,
		start, end, region,
	)
	return cached, err
}

func (s *sqlStore) InsertWeather(ctx context.Context, rows []WeatherObservation) error {
	// Upsert in chunks to stay under the parameter limit. ON CONFLICT DO
	// NOTHING makes a concurrent fetch for the same key wasted work, not
	// corruption.
	for i := 0; i < len(rows); i += upsertChunkSize {
		chunk := rows[i:min(i+upsertChunkSize, len(rows))]
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO weather_observations
				(ts, country_code, temperature_2m, solar_radiation, wind_speed_10m, precipitation)
			VALUES
				(:ts, :country_code, :temperature_2m, :solar_radiation, :wind_speed_10m, :precipitation)
			ON CONFLICT (ts, country_code) DO NOTHING`,
			chunk,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) WeatherYear(ctx context.Context, year int, region string) ([]WeatherObservation, error) {
	start, end := weatherYearBounds(year)
	var rows []WeatherObservation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ts, country_code, temperature_2m, solar_radiation, wind_speed_10m, precipitation
		FROM weather_observations
		WHERE ts >= $1 AND ts < $2 AND country_code = $3
		ORDER BY ts`,
		start, end, region,
	)
	return rows, err
}

func (s *sqlStore) CountHolidays(ctx context.Context, year int, region string) (int, error) {
	var cached int
	err := s.db.GetContext(ctx, &cached,
		`SELECT COUNT(*) FROM public_holidays WHERE day >= $1 AND day <= $2 AND country_code = $3`,
		civilDate(year, time.January, 1), civilDate(year, time.December, 31), region,
	)
	return cached, err
}

func (s *sqlStore) InsertHolidays(ctx context.Context, rows []Holiday) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO public_holidays (day, country_code, name)
		VALUES (:day, :country_code, :name)
		ON CONFLICT (day, country_code) DO NOTHING`,
		rows,
	)
	return err
}

func (s *sqlStore) HolidayDays(ctx context.Context, year int, region string) ([]time.Time, error) {
	var days []time.Time
	err := s.db.SelectContext(ctx, &days, `
		SELECT day FROM public_holidays
		WHERE day >= $1 AND day <= $2 AND country_code = $3
		ORDER BY day`,
		civilDate(year, time.January, 1), civilDate(year, time.December, 31), region,
	)
	return days, err
}

func weatherYearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

func civilDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
