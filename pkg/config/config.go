package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PriceSight/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
		File   string `yaml:"file"`
		// Collect aggregates error logs and ships them to kafka.log_topic.
		Collect          bool          `yaml:"collect"`
		CollectInterval  time.Duration `yaml:"collect_interval" default:"30s"`
		CollectThreshold int           `yaml:"collect_threshold" default:"100"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Forecast struct {
		WindowLen      int           `yaml:"window_len" default:"60"`
		TrainRatio     float64       `yaml:"train_ratio" default:"0.7"`
		CompareLast    int           `yaml:"compare_last" default:"30"`
		Period         string        `yaml:"period" default:"10y"`
		FetchTimeout   time.Duration `yaml:"fetch_timeout" default:"15s"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"30s"`
		RoundDigits    int           `yaml:"round_digits" default:"3"`
	} `yaml:"forecast"`
	Model struct {
		Backend string `yaml:"backend" default:"file"`
		Path    string `yaml:"path" default:"models/lstm.json"`
		Serving struct {
			URL     string        `yaml:"url" default:"http://localhost:8501"`
			Name    string        `yaml:"name" default:"lstm"`
			Timeout time.Duration `yaml:"timeout" default:"10s"`
		} `yaml:"serving"`
		Preload bool `yaml:"preload" default:"true"`
	} `yaml:"model"`
	History struct {
		Source string `yaml:"source" default:"yahoo"`
		Yahoo  struct {
			BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			Proxy     string        `yaml:"proxy"`
			UserAgent string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; PriceSight/1.0)"`
			Timeout   time.Duration `yaml:"timeout" default:"10s"`
		} `yaml:"yahoo"`
		Cache struct {
			Enabled    bool          `yaml:"enabled" default:"true"`
			TTL        time.Duration `yaml:"ttl" default:"1h"`
			MemorySize int           `yaml:"memory_size" default:"256"`
			MemoryTTL  time.Duration `yaml:"memory_ttl" default:"5m"`
		} `yaml:"cache"`
	} `yaml:"history"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"pricesight"`

		PoolSize     int           `yaml:"pool_size" default:"10"`
		MinIdleConns int           `yaml:"min_idle_conns" default:"2"`
		PoolTimeout  time.Duration `yaml:"pool_timeout" default:"30s"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pricesight"`
		Table            string        `yaml:"table" default:"daily_closes"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		LogTopic     string   `yaml:"log_topic" default:"pricesight.logs"`
		IngestTopic  string   `yaml:"ingest_topic" default:"pricesight.bars"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"pricesight"`
			Workers     int           `yaml:"workers" default:"4"`
			BufferSize  int           `yaml:"buffer_size" default:"1000"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic    string        `yaml:"dlq_topic"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
			StartOffset string        `yaml:"start_offset" default:"latest"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	RateLimit struct {
		Enabled bool    `yaml:"enabled" default:"true"`
		RPS     float64 `yaml:"rps" default:"5"`
		Burst   int     `yaml:"burst" default:"10"`
	} `yaml:"ratelimit"`
	Warmup struct {
		Enabled bool     `yaml:"enabled"`
		Cron    string   `yaml:"cron" default:"0 22 * * 1-5"`
		Symbols []string `yaml:"symbols"`
	} `yaml:"warmup"`
}

// Default returns a Config populated from struct defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file falls back to defaults so the service can run from env alone.
func LoadWithEnv(path string) (*Config, error) {
	var c *Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if c, err = Default(); err != nil {
			return nil, err
		}
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		c, err = Default()
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MODEL_BACKEND"); v != "" {
		c.Model.Backend = v
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("MODEL_SERVING_URL"); v != "" {
		c.Model.Serving.URL = v
	}
	if v := os.Getenv("HISTORY_SOURCE"); v != "" {
		c.History.Source = v
	}
	if v := os.Getenv("YAHOO_PROXY"); v != "" {
		c.History.Yahoo.Proxy = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port := splitHostPort(v, c.Redis.Port)
		c.Redis.Enabled = true
		c.Redis.Host = host
		c.Redis.Port = port
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := os.Getenv("WARMUP_SYMBOLS"); v != "" {
		c.Warmup.Enabled = true
		c.Warmup.Symbols = util.SplitCSV(v)
	}
}

func splitHostPort(addr string, defPort int) (string, int) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], util.ParseIntDefault(addr[i+1:], defPort)
		}
	}
	return addr, defPort
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	f := c.Forecast
	if f.WindowLen < 1 {
		return fmt.Errorf("forecast.window_len must be positive")
	}
	if f.TrainRatio <= 0 || f.TrainRatio >= 1 {
		return fmt.Errorf("forecast.train_ratio must be in (0,1), got %s", strconv.FormatFloat(f.TrainRatio, 'f', -1, 64))
	}
	if f.CompareLast < 1 {
		return fmt.Errorf("forecast.compare_last must be positive")
	}
	if f.RoundDigits < 0 {
		return fmt.Errorf("forecast.round_digits must not be negative")
	}
	switch c.Model.Backend {
	case "file":
		if c.Model.Path == "" {
			return fmt.Errorf("model.path is required for the file backend")
		}
	case "serving":
		if c.Model.Serving.URL == "" || c.Model.Serving.Name == "" {
			return fmt.Errorf("model.serving.url and model.serving.name are required for the serving backend")
		}
	default:
		return fmt.Errorf("model.backend must be 'file' or 'serving', got '%s'", c.Model.Backend)
	}
	switch c.History.Source {
	case "yahoo":
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("history.source 'clickhouse' requires clickhouse.enabled")
		}
	default:
		return fmt.Errorf("history.source must be 'yahoo' or 'clickhouse', got '%s'", c.History.Source)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collect && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collect requires kafka.enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive")
	}
	if c.Warmup.Enabled && len(c.Warmup.Symbols) == 0 {
		return fmt.Errorf("warmup.symbols cannot be empty when warmup is enabled")
	}
	return nil
}
