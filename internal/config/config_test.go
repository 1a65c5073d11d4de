package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
server:
  port: 8080
  read_timeout: 30s
  write_timeout: 30s
  shutdown_timeout: 10s

database:
  host: localhost
  port: 5432
  user: gridflow
  password: gridflow
  database: gridflow
  sslmode: disable

rabbitmq:
  host: localhost
  port: 5672
  user: guest
  password: guest
  vhost: /
  exchange:
    name: gridflow.jobs
    type: direct
    durable: true
  queue:
    name: gridflow.jobs.process
    durable: true
  routing_key: job.process

auth:
  api_key: test-key

worker:
  concurrency: 4
  job_timeout: 10m
  shutdown_timeout: 30s

pipeline:
  default_region: DE
  enrichment_enabled: true
  interval_width: 0.95
`

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "gridflow", cfg.Database.Database)
	assert.Equal(t, "gridflow.jobs", cfg.RabbitMQ.Exchange.Name)
	assert.Equal(t, "gridflow.jobs.process", cfg.RabbitMQ.Queue.Name)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.True(t, cfg.Pipeline.EnrichmentEnabled)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", cfg.Pipeline.DefaultTimezone)
	assert.Equal(t, int64(200*1024*1024), cfg.Pipeline.MaxUploadSizeBytes)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.WeatherTimeout)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.HolidayTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.EngineTimeout)
	assert.Equal(t, 9090, cfg.Worker.MetricsPort)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: [not a port\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func loadValid(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(writeConfigFile(t, validYAML))
	require.NoError(t, err)
	return cfg
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad server port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Auth.APIKey = "" },
			wantErr: "auth api_key is required",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database host is required",
		},
		{
			name:    "missing exchange name",
			mutate:  func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr: "rabbitmq exchange name is required",
		},
		{
			name:    "interval width out of range",
			mutate:  func(c *Config) { c.Pipeline.IntervalWidth = 1.5 },
			wantErr: "interval_width must be between 0.50 and 0.99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadValid(t)
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Worker.Concurrency = 0 },
			wantErr: "worker concurrency must be greater than 0",
		},
		{
			name:    "zero job timeout",
			mutate:  func(c *Config) { c.Worker.JobTimeout = 0 },
			wantErr: "worker job_timeout must be greater than 0",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			wantErr: "worker shutdown_timeout must be greater than 0",
		},
		{
			name:    "missing queue name",
			mutate:  func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadValid(t)
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
