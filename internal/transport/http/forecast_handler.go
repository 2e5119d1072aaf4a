package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
	"salesforecast/internal/middleware"
	"salesforecast/internal/session"
	api "salesforecast/pkg/contracts/api/v1"
)

// multipartMemory is the part of an upload kept in memory before spilling to
// a temp file
const multipartMemory = 8 << 20

// ForecastHandler handles forecast session requests
type ForecastHandler struct {
	service      ForecastServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	basePath     string
}

// NewForecastHandler creates a new forecast handler. basePath is the mount
// point of Routes and is used to build resource links.
func NewForecastHandler(service ForecastServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, basePath string) *ForecastHandler {
	return &ForecastHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "forecast_handler")),
		errorHandler: errorHandler,
		basePath:     strings.TrimSuffix(basePath, "/"),
	}
}

// Routes returns the forecast routes
func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/", h.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.With(middleware.ContentTypeValidator("application/json")).Put("/horizon", h.UpdateHorizon)
		r.Get("/rows", h.Rows)
		r.Get("/totals", h.Totals)
		r.Get("/series", h.Series)
		r.With(middleware.ContentTypeValidator("application/json")).Post("/stock-check", h.StockCheck)
		r.Get("/export.csv", h.exportAs(exporter.FormatCSV))
		r.Get("/export.xlsx", h.exportAs(exporter.FormatXLSX))
	})

	return r
}

// Create handles POST /forecasts
func (h *ForecastHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.errorHandler.HandleError(w, r, requestError("multipart form", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var req api.UploadRequest
	if raw := strings.TrimSpace(r.FormValue("horizon")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("horizon", "horizon must be a whole number of days"))
			return
		}
		req.Horizon = n
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "a CSV or XLSX sales history file is required"))
		return
	}
	defer file.Close()

	sess, err := h.service.Upload(r.Context(), header.Filename, file, req.Horizon)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary := h.summary(sess)
	w.Header().Set("Location", summary.Links["self"])
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, summary)
}

// Get handles GET /forecasts/{id}
func (h *ForecastHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, h.summary(sess))
}

// Delete handles DELETE /forecasts/{id}
func (h *ForecastHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateHorizon handles PUT /forecasts/{id}/horizon
func (h *ForecastHandler) UpdateHorizon(w http.ResponseWriter, r *http.Request) {
	var req api.HorizonRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, requestError("JSON body", err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	sess, err := h.service.Reforecast(r.Context(), chi.URLParam(r, "id"), req.Horizon)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, h.summary(sess))
}

// Rows handles GET /forecasts/{id}/rows
func (h *ForecastHandler) Rows(w http.ResponseWriter, r *http.Request) {
	offset, err := middleware.QueryInt(r, "offset", 0, math.MaxInt32, 0)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	limit, err := middleware.QueryInt(r, "limit", math.MinInt32, math.MaxInt32, api.DefaultRowsLimit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	req := api.RowsRequest{Offset: offset, Limit: limit}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rows, total, err := h.service.Rows(r.Context(), chi.URLParam(r, "id"), req.Offset, req.Limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	out := api.RowsResponse{
		Offset: req.Offset,
		Limit:  req.Limit,
		Total:  total,
		Rows:   make([]api.ForecastRow, len(rows)),
	}
	for i, row := range rows {
		out.Rows[i] = api.ForecastRow{
			Date:           row.Date.Format(api.DateLayout),
			SKU:            row.SKU,
			StoreID:        row.Store,
			PredictedSales: row.PredictedSales,
		}
	}
	render.JSON(w, r, out)
}

// Totals handles GET /forecasts/{id}/totals
func (h *ForecastHandler) Totals(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.Totals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, seriesResponse(forecast.Filter{}, points))
}

// Series handles GET /forecasts/{id}/series
func (h *ForecastHandler) Series(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := api.SeriesRequest{SKU: q.Get("sku"), Store: q.Get("store")}
	if req.SKU == "" && req.Store == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sku", "sku or store is required"))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filter := forecast.Filter{SKU: req.SKU, Store: req.Store}
	points, err := h.service.Series(r.Context(), chi.URLParam(r, "id"), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, seriesResponse(filter, points))
}

// StockCheck handles POST /forecasts/{id}/stock-check
func (h *ForecastHandler) StockCheck(w http.ResponseWriter, r *http.Request) {
	var req api.StockCheckRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, requestError("JSON body", err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := h.service.StockCheck(r.Context(), chi.URLParam(r, "id"), req.SKU, *req.CurrentStock)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	message := "Stock level is sufficient for forecasted demand."
	if !report.Sufficient {
		message = fmt.Sprintf("Current stock (%d) is less than forecasted demand (%d)", report.CurrentStock, report.Forecast)
	}
	render.JSON(w, r, api.StockCheckResponse{
		SKU:          report.SKU,
		Horizon:      report.Horizon,
		CurrentStock: report.CurrentStock,
		Forecast:     report.Forecast,
		Sufficient:   report.Sufficient,
		Shortfall:    report.Shortfall,
		Message:      message,
	})
}

// exportAs handles GET /forecasts/{id}/export.csv and export.xlsx. The file is
// rendered in full before the first byte is sent so failures still produce a
// problem response.
func (h *ForecastHandler) exportAs(format exporter.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var buf bytes.Buffer
		if err := h.service.Export(r.Context(), id, format, &buf); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			h.logger.WarnContext(r.Context(), "export write failed",
				slog.String("session_id", id),
				slog.String("format", string(format)),
				slog.String("error", err.Error()))
		}
	}
}

// summary converts a session into its API representation
func (h *ForecastHandler) summary(sess *session.Session) api.ForecastSummary {
	dims := sess.Dimensions
	out := api.ForecastSummary{
		ID:          sess.ID,
		Filename:    sess.Filename,
		Horizon:     sess.Horizon,
		HistoryRows: sess.History.Len(),
		HistoryFrom: dims.FirstDate.Format(api.DateLayout),
		HistoryTo:   dims.LastDate.Format(api.DateLayout),
		SKUs:        dims.SKUs,
		Stores:      dims.Stores,
		Features:    sess.Features,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
		Links:       h.links(sess.ID),
	}

	if sess.Result != nil {
		out.ForecastRows = sess.Result.Len()
		if opts, err := forecast.SelectorOptions(sess.Result); err == nil {
			out.SKUs, out.Stores = opts.SKUs, opts.Stores
		}
		if out.ForecastRows > 0 {
			out.ForecastFrom = dims.LastDate.AddDate(0, 0, 1).Format(api.DateLayout)
			out.ForecastTo = dims.LastDate.AddDate(0, 0, sess.Horizon).Format(api.DateLayout)
		}
	}
	return out
}

func (h *ForecastHandler) links(id string) map[string]string {
	self := h.basePath + "/" + id
	return map[string]string{
		"self":        self,
		"horizon":     self + "/horizon",
		"rows":        self + "/rows",
		"totals":      self + "/totals",
		"series":      self + "/series",
		"stock_check": self + "/stock-check",
		"export_csv":  self + "/export.csv",
		"export_xlsx": self + "/export.xlsx",
	}
}

func seriesResponse(filter forecast.Filter, points []forecast.DatePoint) api.SeriesResponse {
	out := api.SeriesResponse{
		SKU:    filter.SKU,
		Store:  filter.Store,
		Points: make([]api.DatePoint, len(points)),
	}
	for i, p := range points {
		out.Points[i] = api.DatePoint{Date: p.Date.Format(api.DateLayout), Sales: p.Sales}
		out.Total += p.Sales
	}
	return out
}

// requestError wraps a body decoding failure. Body size errors stay intact
// for the 413 mapping.
func requestError(what string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return apierrors.InvalidRequestWithError(fmt.Errorf("invalid %s: %w", what, err))
}
