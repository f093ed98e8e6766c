// Package config loads the server configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cafepos/internal/models"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		MetricsPort     int           `yaml:"metrics_port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Database struct {
		Dialect      string `yaml:"dialect"` // sqlite3 or postgres
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		LogSQL       bool   `yaml:"log_sql"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Logging struct {
		Level      string `yaml:"level"` // trace, debug, info, warn, error, fatal, panic
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
	Defaults struct {
		TaxRate           string `yaml:"tax_rate"`
		TaxTiming         string `yaml:"tax_timing"`
		RoundingMode      string `yaml:"rounding_mode"`
		RoundingIncrement string `yaml:"rounding_increment"`
		Precision         int32  `yaml:"precision"`
		Currency          string `yaml:"currency"`
	} `yaml:"defaults"`
	Sync struct {
		FlushInterval time.Duration `yaml:"flush_interval"`
		BatchSize     int           `yaml:"batch_size"`
	} `yaml:"sync"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	MenuImport struct {
		Provider  string `yaml:"provider"` // openai or azure
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"menu_import"`
	MenuCacheTTL time.Duration `yaml:"menu_cache_ttl"`
}

// Default returns a configuration that runs locally against SQLite
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Dialect == "" {
		c.Database.Dialect = "sqlite3"
	}
	if c.Database.DSN == "" && c.Database.Dialect == "sqlite3" {
		c.Database.DSN = "cafepos.db"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 12 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 32
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 2
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 28
	}
	if c.Defaults.TaxRate == "" {
		c.Defaults.TaxRate = "0"
	}
	if c.Defaults.TaxTiming == "" {
		c.Defaults.TaxTiming = string(models.TaxPostDiscount)
	}
	if c.Defaults.RoundingMode == "" {
		c.Defaults.RoundingMode = string(models.RoundingNone)
	}
	if c.Defaults.RoundingIncrement == "" {
		c.Defaults.RoundingIncrement = "1"
	}
	if c.Sync.FlushInterval == 0 {
		c.Sync.FlushInterval = 2 * time.Second
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 50
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "cafepos.events"
	}
	if c.MenuImport.Provider == "" {
		c.MenuImport.Provider = "openai"
	}
	if c.MenuImport.APIKeyEnv == "" {
		c.MenuImport.APIKeyEnv = "OPENAI_API_KEY"
		if c.MenuImport.Provider == "azure" {
			c.MenuImport.APIKeyEnv = "AZURE_OPENAI_API_KEY"
		}
	}
	if c.MenuCacheTTL == 0 {
		c.MenuCacheTTL = time.Minute
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CAFEPOS_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("CAFEPOS_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: invalid port %d", c.Server.Port)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port: invalid port %d", c.Server.MetricsPort)
	}
	switch c.Database.Dialect {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.dialect: must be sqlite3 or postgres, got %q", c.Database.Dialect)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn: required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret: must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl: must be > 0")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size: must be > 0")
	}
	if c.Sync.FlushInterval <= 0 {
		return fmt.Errorf("sync.flush_interval: must be > 0")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic: required when brokers are set")
	}
	switch c.MenuImport.Provider {
	case "openai":
	case "azure":
		if c.MenuImport.Model != "" && c.MenuImport.BaseURL == "" {
			return fmt.Errorf("menu_import.base_url: the Azure endpoint is required")
		}
	default:
		return fmt.Errorf("menu_import.provider: must be openai or azure, got %q", c.MenuImport.Provider)
	}
	if _, err := c.DefaultSettings(""); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	return nil
}

// ParseLevel checks a logging level name
func ParseLevel(level string) (string, error) {
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return level, nil
	}
	return "", fmt.Errorf("unknown logging level %q", level)
}

// DefaultSettings builds the POS settings used by an outlet that has not saved its own
func (c *Config) DefaultSettings(outletID string) (models.Settings, error) {
	rate, err := decimal.NewFromString(c.Defaults.TaxRate)
	if err != nil {
		return models.Settings{}, fmt.Errorf("tax_rate: %w", err)
	}
	inc, err := decimal.NewFromString(c.Defaults.RoundingIncrement)
	if err != nil {
		return models.Settings{}, fmt.Errorf("rounding_increment: %w", err)
	}
	s := models.Settings{
		OutletID:          outletID,
		TaxRate:           rate,
		TaxTiming:         models.TaxTiming(c.Defaults.TaxTiming),
		RoundingMode:      models.RoundingMode(c.Defaults.RoundingMode),
		RoundingIncrement: inc,
		Precision:         c.Defaults.Precision,
		Currency:          c.Defaults.Currency,
	}
	if err := s.Validate(); err != nil {
		return models.Settings{}, err
	}
	return s, nil
}

// Parse unmarshals YAML, applies defaults and environment overrides, and validates
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Load reads and parses the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}
