// Package config provides centralized configuration management for the
// forecast service. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration values
// throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file (SALES_CONFIG_FILE, config.yaml or configs/config.yaml)
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SALES_<SECTION>_<FIELD>:
//
//	SALES_SERVER_PORT=8080
//	SALES_MODEL_PATH=models/forecast_model.json
//	SALES_FORECAST_HORIZONS=30,60
//	SALES_FORECAST_ALLOW_ANY_HORIZON=true
//	SALES_FORECAST_EXPECTED_FEATURES=SKU,Store_ID,Item_MRP,Month,DayOfWeek
//	SALES_FORECAST_MAX_ROWS=500000
//	SALES_SESSION_TTL=30m
//	SALES_LOGGING_LEVEL=debug
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Testing
//
// For testing, use config.Default() to create a configuration with sensible
// defaults that don't require environment variables or external resources.
package config
