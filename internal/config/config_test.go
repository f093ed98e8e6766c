package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/models"
)

const sample = `
server:
  port: 8081
  metrics_port: 9191
  shutdown_timeout: 5s
database:
  dialect: sqlite3
  dsn: "file::memory:?cache=shared"
auth:
  jwt_secret: "0123456789abcdef-test"
  token_ttl: 1h
logging:
  level: debug
defaults:
  tax_rate: "5"
  tax_timing: post_discount
  rounding_mode: nearest
  rounding_increment: "0.5"
  precision: 2
sync:
  flush_interval: 500ms
  batch_size: 10
kafka:
  brokers: ["localhost:9092"]
  topic: pos
`

func TestParse(t *testing.T) {
	t.Setenv("CAFEPOS_JWT_SECRET", "")
	t.Setenv("CAFEPOS_DB_DSN", "")

	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 8081, c.Server.Port)
	assert.Equal(t, 9191, c.Server.MetricsPort)
	assert.Equal(t, 5*time.Second, c.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, c.Server.ReadTimeout, "default applied")
	assert.Equal(t, time.Hour, c.Auth.TokenTTL)
	assert.Equal(t, 500*time.Millisecond, c.Sync.FlushInterval)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)

	s, err := c.DefaultSettings("outlet-1")
	require.NoError(t, err)
	assert.Equal(t, "outlet-1", s.OutletID)
	assert.Equal(t, "5", s.TaxRate.String())
	assert.Equal(t, models.RoundingNearest, s.RoundingMode)
	assert.Equal(t, "0.5", s.RoundingIncrement.String())
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("CAFEPOS_JWT_SECRET", "override-secret-0123456789")
	t.Setenv("CAFEPOS_DB_DSN", "/tmp/other.db")

	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "override-secret-0123456789", c.Auth.JWTSecret)
	assert.Equal(t, "/tmp/other.db", c.Database.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad dialect", func(c *Config) { c.Database.Dialect = "mysql" }, "database.dialect"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad batch", func(c *Config) { c.Sync.BatchSize = -1 }, "sync.batch_size"},
		{"bad tax timing", func(c *Config) { c.Defaults.TaxTiming = "sideways" }, "defaults"},
		{"bad increment", func(c *Config) {
			c.Defaults.RoundingMode = "up"
			c.Defaults.RoundingIncrement = "0.3"
		}, "defaults"},
		{"kafka without topic", func(c *Config) {
			c.Kafka.Brokers = []string{"b:9092"}
			c.Kafka.Topic = ""
		}, "kafka.topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.Auth.JWTSecret = "0123456789abcdef"
			require.NoError(t, c.Validate())

			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("CAFEPOS_JWT_SECRET", "")
	t.Setenv("CAFEPOS_DB_DSN", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Logging.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
