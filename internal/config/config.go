package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"salesforecast/internal/dataset"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Model     ModelConfig     `yaml:"model" envconfig:"MODEL"`
	Forecast  ForecastConfig  `yaml:"forecast" envconfig:"FORECAST"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	RequestTimeout  time.Duration `yaml:"request_timeout" split_words:"true"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" split_words:"true"`
	EnableCORS     bool            `yaml:"enable_cors" split_words:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true"`
	Burst   int     `yaml:"burst" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true"`
	Format   string `yaml:"format" split_words:"true"` // json or text
	Output   string `yaml:"output" split_words:"true"` // console, file or both
	FilePath string `yaml:"file_path" split_words:"true"`
}

// ModelConfig locates the pretrained model artifact
type ModelConfig struct {
	Path   string `yaml:"path" split_words:"true"`
	WarmUp bool   `yaml:"warm_up" split_words:"true"`
}

// ForecastConfig controls uploads and forecast requests
type ForecastConfig struct {
	Horizons          []int    `yaml:"horizons" split_words:"true"`
	AllowAnyHorizon   bool     `yaml:"allow_any_horizon" split_words:"true"`
	MaxHorizon        int      `yaml:"max_horizon" split_words:"true"`
	ExpectedFeatures  []string `yaml:"expected_features" split_words:"true"`
	ProductAttributes []string `yaml:"product_attributes" split_words:"true"`
	StoreAttributes   []string `yaml:"store_attributes" split_words:"true"`
	MaxRows           int      `yaml:"max_rows" split_words:"true"`
	MaxFutureRows     int      `yaml:"max_future_rows" split_words:"true"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes" split_words:"true"`
	Sheet             string   `yaml:"sheet" split_words:"true"`
}

// Schema returns the product/store attribute split
func (f ForecastConfig) Schema() dataset.Schema {
	return dataset.Schema{
		ProductAttributes: append([]string(nil), f.ProductAttributes...),
		StoreAttributes:   append([]string(nil), f.StoreAttributes...),
	}
}

// HorizonAllowed reports whether a forecast of n days may be requested
func (f ForecastConfig) HorizonAllowed(n int) bool {
	if n <= 0 || n > f.MaxHorizon {
		return false
	}
	if f.AllowAnyHorizon {
		return true
	}
	for _, h := range f.Horizons {
		if h == n {
			return true
		}
	}
	return false
}

// SessionConfig bounds the in-memory session store
type SessionConfig struct {
	Capacity        int           `yaml:"capacity" split_words:"true"`
	TTL             time.Duration `yaml:"ttl" split_words:"true"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" split_words:"true"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" split_words:"true"`
	Environment    string  `yaml:"environment" split_words:"true"`
	TraceExporter  string  `yaml:"trace_exporter" split_words:"true"`  // stdout or none
	MetricExporter string  `yaml:"metric_exporter" split_words:"true"` // prometheus or none
	SampleRatio    float64 `yaml:"sample_ratio" split_words:"true"`
}

// Load builds the configuration from defaults, then the YAML config file if
// one is found, then SALES_* environment variables
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return fmt.Errorf("unsupported log output %q", c.Logging.Output)
	}

	if c.Model.Path == "" {
		return fmt.Errorf("model path must be set")
	}

	f := c.Forecast
	if f.MaxHorizon <= 0 {
		return fmt.Errorf("max horizon must be positive")
	}
	if !f.AllowAnyHorizon && len(f.Horizons) == 0 {
		return fmt.Errorf("at least one forecast horizon must be configured")
	}
	for _, h := range f.Horizons {
		if h <= 0 || h > f.MaxHorizon {
			return fmt.Errorf("horizon %d must be between 1 and %d", h, f.MaxHorizon)
		}
	}
	if f.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if f.MaxRows < 0 {
		return fmt.Errorf("max rows must not be negative")
	}
	if f.MaxFutureRows <= 0 {
		return fmt.Errorf("max future rows must be positive")
	}
	if err := f.Schema().Validate(); err != nil {
		return fmt.Errorf("invalid attribute schema: %w", err)
	}

	if c.Session.Capacity <= 0 {
		return fmt.Errorf("session capacity must be positive")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter %q", c.Telemetry.TraceExporter)
	}
	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter %q", c.Telemetry.MetricExporter)
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	schema := dataset.DefaultSchema()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Model: ModelConfig{
			Path:   DefaultModelPath,
			WarmUp: true,
		},
		Forecast: ForecastConfig{
			Horizons:          append([]int(nil), DefaultHorizons...),
			MaxHorizon:        DefaultMaxHorizon,
			ProductAttributes: schema.ProductAttributes,
			StoreAttributes:   schema.StoreAttributes,
			MaxRows:           DefaultMaxRows,
			MaxFutureRows:     DefaultMaxFutureRows,
			MaxUploadBytes:    DefaultMaxUpload,
		},
		Session: SessionConfig{
			Capacity:        DefaultSessionCapacity,
			TTL:             DefaultSessionTTL,
			CleanupInterval: DefaultCleanupInterval,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "sales-forecast",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
