// Package api contains the request and response contracts of the forecast
// HTTP API. Version v1 is the current stable API version.
package api

// UploadRequest holds the non-file fields of a multipart forecast upload
type UploadRequest struct {
	Horizon int `form:"horizon" validate:"required,gt=0"`
}

// HorizonRequest asks for a session to be re-forecast with a new horizon
type HorizonRequest struct {
	Horizon int `json:"horizon" validate:"required,gt=0"`
}

// StockCheckRequest compares current stock of one SKU with its forecast
type StockCheckRequest struct {
	SKU          string `json:"sku" validate:"identifier"`
	CurrentStock *int64 `json:"current_stock" validate:"required,gte=0"`
}

// RowsRequest pages through the forecast table
type RowsRequest struct {
	Offset int `query:"offset" validate:"gte=0"`
	Limit  int `query:"limit" validate:"min=1,max=1000"`
}

// SeriesRequest selects a per-SKU, per-store or per store and SKU series.
// At least one of the two must be set.
type SeriesRequest struct {
	SKU   string `query:"sku" validate:"omitempty,identifier"`
	Store string `query:"store" validate:"omitempty,identifier"`
}

// Paging defaults
const (
	DefaultRowsLimit = 100
	MaxRowsLimit     = 1000
)
