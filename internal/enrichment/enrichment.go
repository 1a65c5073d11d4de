package enrichment

import (
	"context"
	"time"
)

// WeatherObservation is one cached hourly weather row, keyed by
// (ts, country_code) and shared across all jobs for the same region/year.
type WeatherObservation struct {
	TS             time.Time `db:"ts"`
	CountryCode    string    `db:"country_code"`
	Temperature2M  *float64  `db:"temperature_2m"`
	SolarRadiation *float64  `db:"solar_radiation"`
	WindSpeed10M   *float64  `db:"wind_speed_10m"`
	Precipitation  *float64  `db:"precipitation"`
}

// Holiday is one cached public holiday, keyed by (day, country_code).
type Holiday struct {
	Day         time.Time `db:"day"`
	CountryCode string    `db:"country_code"`
	Name        string    `db:"name"`
}

// WeatherData is a loaded weather dataset. Year is the year actually served,
// which differs from the requested year when a prior-year proxy is returned.
type WeatherData struct {
	Year         int
	Observations []WeatherObservation
}

// WeatherProvider fetches a full year of hourly weather for a region.
type WeatherProvider interface {
	FetchYear(ctx context.Context, year int, region string) ([]WeatherObservation, error)
}

// HolidayProvider fetches the public holidays of a year for a region.
type HolidayProvider interface {
	FetchYear(ctx context.Context, year int, region string) ([]Holiday, error)
}
