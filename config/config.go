// Package config holds the service configuration file format.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/asaidimu/go-funnel/core/bullet"
)

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Logging   LoggingConfig  `yaml:"logging"`
	Schemas   []string       `yaml:"schemas"`
	Query     QueryConfig    `yaml:"query"`
	Templates string         `yaml:"templates"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// DatabaseConfig selects the SQLite file compiled groups are stored in. An
// empty path keeps them in memory.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	TablePrefix string `yaml:"table_prefix"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// QueryConfig sets the defaults of generated engine requests.
type QueryConfig struct {
	Duration        time.Duration `yaml:"duration"`
	AggregationSize int           `yaml:"aggregation_size"`
}

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Listen: ":8080"},
		Database: DatabaseConfig{Path: "funnel.db"},
		Logging:  LoggingConfig{Level: "info"},
		Query: QueryConfig{
			Duration:        bullet.DefaultDuration,
			AggregationSize: bullet.DefaultAggregationSize,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(content)
}

func Parse(content []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen is required")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Query.Duration < 0 {
		return fmt.Errorf("query.duration must not be negative")
	}
	if c.Query.AggregationSize < 0 {
		return fmt.Errorf("query.aggregation_size must not be negative")
	}
	return nil
}

// QueryOptions turns the query defaults into request options.
func (c *Config) QueryOptions() []bullet.QueryOption {
	return []bullet.QueryOption{
		bullet.WithDuration(c.Query.Duration),
		bullet.WithAggregation(bullet.Aggregation{Size: c.Query.AggregationSize}),
	}
}

// Logger builds the process logger: JSON output with ISO8601 timestamps, or
// zap's development console encoder when Development is set.
func (c LoggingConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	config := zap.NewProductionConfig()
	if c.Development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	return config.Build()
}
