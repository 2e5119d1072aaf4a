package api

import "time"

// DateLayout formats every date in API responses
const DateLayout = "2006-01-02"

// ForecastSummary describes a forecast session
type ForecastSummary struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Horizon  int    `json:"horizon"`

	HistoryRows int    `json:"history_rows"`
	HistoryFrom string `json:"history_from"`
	HistoryTo   string `json:"history_to"`

	ForecastRows int    `json:"forecast_rows"`
	ForecastFrom string `json:"forecast_from,omitempty"`
	ForecastTo   string `json:"forecast_to,omitempty"`

	SKUs     []string `json:"skus"`
	Stores   []string `json:"stores"`
	Features []string `json:"features"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Links map[string]string `json:"links,omitempty"`
}

// ForecastRow is one row of the forecast table
type ForecastRow struct {
	Date           string `json:"date"`
	SKU            string `json:"sku"`
	StoreID        string `json:"store_id"`
	PredictedSales int64  `json:"predicted_sales"`
}

// RowsResponse is one page of the forecast table
type RowsResponse struct {
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
	Total  int           `json:"total"`
	Rows   []ForecastRow `json:"rows"`
}

// DatePoint is a total for one date
type DatePoint struct {
	Date  string `json:"date"`
	Sales int64  `json:"sales"`
}

// SeriesResponse is a predicted sales series summed by date
type SeriesResponse struct {
	SKU    string      `json:"sku,omitempty"`
	Store  string      `json:"store,omitempty"`
	Total  int64       `json:"total"`
	Points []DatePoint `json:"points"`
}

// StockCheckResponse reports whether current stock covers the forecast
type StockCheckResponse struct {
	SKU          string `json:"sku"`
	Horizon      int    `json:"horizon"`
	CurrentStock int64  `json:"current_stock"`
	Forecast     int64  `json:"forecast"`
	Sufficient   bool   `json:"sufficient"`
	Shortfall    int64  `json:"shortfall"`
	Message      string `json:"message"`
}

// HealthResponse reports service health
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one readiness check
type CheckResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}
