package http

import (
	"context"
	"io"

	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
	"salesforecast/internal/services"
	"salesforecast/internal/session"
)

// ForecastServiceInterface defines the forecast operations the handlers use
type ForecastServiceInterface interface {
	Upload(ctx context.Context, filename string, r io.Reader, horizon int) (*session.Session, error)
	Reforecast(ctx context.Context, id string, horizon int) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error

	Options(ctx context.Context, id string) (forecast.Options, error)
	Rows(ctx context.Context, id string, offset, limit int) ([]forecast.Row, int, error)
	Totals(ctx context.Context, id string) ([]forecast.DatePoint, error)
	Series(ctx context.Context, id string, filter forecast.Filter) ([]forecast.DatePoint, error)
	StockCheck(ctx context.Context, id, sku string, currentStock int64) (*services.StockReport, error)
	Export(ctx context.Context, id string, format exporter.Format, out io.Writer) error
}

var _ ForecastServiceInterface = (*services.ForecastService)(nil)
