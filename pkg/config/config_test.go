package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 60, c.Forecast.WindowLen)
	assert.Equal(t, 0.7, c.Forecast.TrainRatio)
	assert.Equal(t, 30, c.Forecast.CompareLast)
	assert.Equal(t, "10y", c.Forecast.Period)
	assert.Equal(t, 3, c.Forecast.RoundDigits)
	assert.Equal(t, 15*time.Second, c.Forecast.FetchTimeout)
	assert.Equal(t, "file", c.Model.Backend)
	assert.Equal(t, "yahoo", c.History.Source)
	assert.Equal(t, "0 22 * * 1-5", c.Warmup.Cron)
	assert.True(t, c.RateLimit.Enabled)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
forecast:
  window_len: 30
ratelimit:
  enabled: false
model:
  backend: serving
`))
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 30, c.Forecast.WindowLen)
	assert.Equal(t, 0.7, c.Forecast.TrainRatio)
	assert.False(t, c.RateLimit.Enabled)
	assert.Equal(t, "lstm", c.Model.Serving.Name)
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"ratio":        "forecast:\n  train_ratio: 1.5\n",
		"backend":      "model:\n  backend: onnx\n",
		"source":       "history:\n  source: csv\n",
		"clickhouse":   "history:\n  source: clickhouse\n",
		"kafka":        "kafka:\n  enabled: true\n",
		"collect":      "logging:\n  collect: true\n",
		"warmup":       "warmup:\n  enabled: true\n",
		"window":       "forecast:\n  window_len: -1\n",
		"serving name": "model:\n  backend: serving\n  serving:\n    name: \"\"\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("WARMUP_SYMBOLS", "AAPL,MSFT")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Warmup.Symbols)
}

func TestLoadWithEnvMissingFile(t *testing.T) {
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PRICESIGHT_TEST_VAR=hello\n"), 0o600))
	t.Setenv("PRICESIGHT_TEST_VAR", "")
	require.NoError(t, os.Unsetenv("PRICESIGHT_TEST_VAR"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "nope.env"), path))
	assert.Equal(t, "hello", os.Getenv("PRICESIGHT_TEST_VAR"))
}
