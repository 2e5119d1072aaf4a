package config

import "time"

// Application constants
const (
	// Application Info
	AppName = "Sales Forecast"

	// EnvPrefix namespaces every environment variable, e.g. SALES_SERVER_PORT
	EnvPrefix = "SALES"
	// ConfigFileEnv names an explicit YAML config file
	ConfigFileEnv = "SALES_CONFIG_FILE"

	// Forecast defaults
	DefaultModelPath     = "models/forecast_model.json"
	DefaultMaxHorizon    = 365
	DefaultMaxRows       = 1_000_000
	DefaultMaxFutureRows = 5_000_000
	DefaultMaxUpload     = 50 << 20 // 50MB

	// Session defaults
	DefaultSessionCapacity = 256
	DefaultSessionTTL      = time.Hour
	DefaultCleanupInterval = 5 * time.Minute

	// API Endpoints
	APIBasePath     = "/api/v1"
	HealthEndpoint  = "/health"
	MetricsEndpoint = "/metrics"
)

// DefaultHorizons are the forecast lengths offered by the dashboard, in days
var DefaultHorizons = []int{30, 60}
