package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asaidimu/go-funnel/core/bullet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  listen: "127.0.0.1:9000"
database:
  path: ":memory:"
  table_prefix: "fn_"
logging:
  level: debug
schemas:
  - schemas/events.yaml
  - schemas/extra
query:
  duration: 45s
  aggregation_size: 100
templates: templates
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "fn_", cfg.Database.TablePrefix)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"schemas/events.yaml", "schemas/extra"}, cfg.Schemas)
	assert.Equal(t, 45*time.Second, cfg.Query.Duration)
	assert.Equal(t, 100, cfg.Query.AggregationSize)
	assert.Equal(t, "templates", cfg.Templates)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Parse([]byte("logging:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, bullet.DefaultDuration, cfg.Query.Duration)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "serverr:\n  listen: x\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"empty listen", "server:\n  listen: \"\"\n"},
		{"negative size", "query:\n  aggregation_size: -1\n"},
		{"bad duration", "query:\n  duration: soon\n"},
		{"not yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funnel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \":7000\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Listen)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestQueryOptions(t *testing.T) {
	cfg := Default()
	cfg.Query.Duration = 5 * time.Second
	cfg.Query.AggregationSize = 10

	q := bullet.NewQuery(nil, cfg.QueryOptions()...)
	assert.Equal(t, int64(5000), q.Duration)
	assert.Equal(t, 10, q.Aggregation.Size)
	assert.Equal(t, bullet.AggregationRaw, q.Aggregation.Type)
}

func TestLogger(t *testing.T) {
	logger, err := LoggingConfig{Level: "debug"}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = LoggingConfig{Level: "chatty"}.Logger()
	assert.Error(t, err)
}
