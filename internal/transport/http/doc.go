// Package http implements the HTTP handlers of the forecast API. Handlers
// only decode and validate requests, call the service layer and encode
// responses; all forecasting logic lives in internal/services.
//
// # Routes
//
// ForecastHandler.Routes is mounted at /api/v1/forecasts:
//
//	POST   /                     multipart upload (file, horizon), 201
//	GET    /{id}                 session summary and selector options
//	PUT    /{id}/horizon         rerun with {"horizon": n}
//	GET    /{id}/rows            forecast table, ?offset=&limit=
//	GET    /{id}/totals          predicted sales per date
//	GET    /{id}/series          ?sku=&store=, at least one
//	POST   /{id}/stock-check     {"sku": "...", "current_stock": n}
//	GET    /{id}/export.csv      attachment forecast.csv
//	GET    /{id}/export.xlsx     attachment forecast.xlsx
//	DELETE /{id}                 204
//
// HealthHandler serves /health, /health/ready, /health/live and /version.
// MetricsHandler serves the Prometheus scrape endpoint and session store
// statistics under /metrics.
//
// # Error Handling
//
// Every failure is passed to errors.ErrorHandler, which writes an RFC 7807
// problem document:
//
//	{
//	    "type": "/errors/forecast/schema",
//	    "title": "Invalid Upload",
//	    "status": 422,
//	    "detail": "uploaded file is missing required columns: Store_ID",
//	    "instance": "/api/v1/forecasts",
//	    "missing_columns": ["Store_ID"],
//	    "request_id": "..."
//	}
//
// Responses never carry stack traces or wrapped causes.
package http
