// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgents is the rotation used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Edge/121.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Output   OutputConfig   `mapstructure:"output"`
	DB       DBConfig       `mapstructure:"db"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// SourceConfig describes the site being harvested and how politely.
type SourceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	UserAgents []string      `mapstructure:"user_agents"`
	JitterMin  time.Duration `mapstructure:"jitter_min"`
	JitterMax  time.Duration `mapstructure:"jitter_max"`
	// MaxRPS caps the aggregate request rate. Zero disables the cap.
	MaxRPS float64 `mapstructure:"max_rps"`
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// PipelineConfig governs the sweep and the worker pool.
type PipelineConfig struct {
	StartID          int64 `mapstructure:"start_id"`
	BatchSize        int   `mapstructure:"batch_size"`
	Concurrency      int   `mapstructure:"concurrency"`
	WriterQueueDepth int   `mapstructure:"writer_queue_depth"`
}

// OutputConfig points at the CSV dataset.
type OutputConfig struct {
	Path  string `mapstructure:"path"`
	FSync bool   `mapstructure:"fsync"`
}

// DBConfig controls the optional Postgres mirror. An empty DSN disables it.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ServerConfig controls the ops HTTP server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TracingConfig toggles OpenTelemetry spans, which are logged at debug level.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://www.goodreads.com/book/show")
	v.SetDefault("source.user_agents", DefaultUserAgents)
	v.SetDefault("source.jitter_min", 2*time.Second)
	v.SetDefault("source.jitter_max", 4*time.Second)
	v.SetDefault("source.max_rps", 0)
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("pipeline.start_id", 1)
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.writer_queue_depth", 256)
	v.SetDefault("output.path", "goodreads_dataset.csv")
	v.SetDefault("output.fsync", true)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "books")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.base_url must be an absolute URL")
	}
	if len(c.Source.UserAgents) == 0 {
		return fmt.Errorf("source.user_agents must not be empty")
	}
	if c.Source.JitterMin < 0 || c.Source.JitterMax < c.Source.JitterMin {
		return fmt.Errorf("source.jitter_min must be >= 0 and <= source.jitter_max")
	}
	if c.Source.MaxRPS < 0 {
		return fmt.Errorf("source.max_rps must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.Pipeline.StartID < 1 {
		return fmt.Errorf("pipeline.start_id must be >= 1")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Pipeline.WriterQueueDepth <= 0 {
		return fmt.Errorf("pipeline.writer_queue_depth must be > 0")
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("output.path is required")
	}
	return nil
}

// DBEnabled reports whether the Postgres mirror is configured.
func (c Config) DBEnabled() bool {
	return strings.TrimSpace(c.DB.DSN) != ""
}
