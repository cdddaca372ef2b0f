package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nepal_jobs/internal/errors"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  path: jobs.db
sources:
  merojob:
    enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.HTTP.RequestInterval)
	assert.Equal(t, 3, cfg.HTTP.Retry.MaxAttempts)
	assert.Equal(t, "https://api.merojob.com/api/v1/jobs/", cfg.Sources.MeroJob.BaseURL)
	assert.Equal(t, 50, cfg.Sources.MeroJob.PageSize)
	assert.Equal(t, 20, cfg.Sources.MeroJob.MaxPages)
	assert.Equal(t, 1, cfg.Sources.KumariJob.MaxPages)
	assert.False(t, cfg.Sources.KumariJob.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, PublisherNone, cfg.Publisher.Kind)
	assert.Equal(t, "jobs.new", cfg.Publisher.NATS.Subject)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("JOBS_DB_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(`
database:
  driver: postgres
  host: localhost
  dbname: jobs
  user: jobs
  password: ${JOBS_DB_PASSWORD}
sources:
  kumarijob:
    enabled: true
    deep_scrape: true
schedule:
  interval: 6h
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "host=localhost port=5432 user=jobs password=s3cret dbname=jobs sslmode=disable", cfg.Database.DSN())
	assert.True(t, cfg.Sources.KumariJob.DeepScrape)
	assert.Equal(t, 6*time.Hour, cfg.Schedule.Interval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing sqlite path",
			yaml: "sources:\n  merojob:\n    enabled: true\n",
		},
		{
			name: "postgres without host",
			yaml: "database:\n  driver: postgres\nsources:\n  merojob:\n    enabled: true\n",
		},
		{
			name: "unknown driver",
			yaml: "database:\n  driver: oracle\n  path: x\nsources:\n  merojob:\n    enabled: true\n",
		},
		{
			name: "no sources",
			yaml: "database:\n  path: jobs.db\n",
		},
		{
			name: "unknown publisher",
			yaml: "database:\n  path: jobs.db\nsources:\n  merojob:\n    enabled: true\npublisher:\n  kind: kafka\n",
		},
		{
			name: "interval too short",
			yaml: "database:\n  path: jobs.db\nsources:\n  merojob:\n    enabled: true\nschedule:\n  interval: 10s\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			assert.Nil(t, cfg)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: "+filepath.Join(dir, "jobs.db")+"\nsources:\n  merojob:\n    enabled: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "jobs.db"), cfg.Database.Path)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  merojob:\n    enabled: true\n"), 0o644))

	cfg, err := Load(path)
	assert.Nil(t, cfg)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	assert.ErrorContains(t, err, "database.path is required")
}

func TestDatabaseConfig_SQLiteDSN(t *testing.T) {
	d := DatabaseConfig{Driver: DriverSQLite, Path: "/var/lib/jobs.db"}
	assert.Equal(t, "file:/var/lib/jobs.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", d.DSN())
}
