package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"salesforecast/internal/config"
	"salesforecast/internal/dataset"
	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
	"salesforecast/internal/frame"
	"salesforecast/internal/infrastructure"
	"salesforecast/internal/model"
	"salesforecast/internal/session"
	"salesforecast/pkg/contracts/domain"
)

// ModelSource provides the shared forecasting model
type ModelSource interface {
	Get(ctx context.Context) (model.Model, error)
}

// ForecastService runs the upload-to-forecast pipeline and answers queries
// against stored sessions
type ForecastService struct {
	cfg     config.ForecastConfig
	models  ModelSource
	store   *session.Store
	engine  *forecast.Engine
	tracer  trace.Tracer
	metrics *infrastructure.Metrics
	logger  *slog.Logger
}

// ForecastServiceOption configures a ForecastService
type ForecastServiceOption func(*ForecastService)

// WithTracer sets the tracer used for pipeline stage spans
func WithTracer(tracer trace.Tracer) ForecastServiceOption {
	return func(s *ForecastService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMetrics sets the forecast metrics recorder
func WithMetrics(metrics *infrastructure.Metrics) ForecastServiceOption {
	return func(s *ForecastService) { s.metrics = metrics }
}

// NewForecastService creates a forecast service
func NewForecastService(cfg config.ForecastConfig, models ModelSource, store *session.Store, logger *slog.Logger, opts ...ForecastServiceOption) *ForecastService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "forecast_service"))

	s := &ForecastService{
		cfg:    cfg,
		models: models,
		store:  store,
		engine: forecast.NewEngine(logger),
		tracer: tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("ForecastService initialized",
		slog.Any("horizons", cfg.Horizons),
		slog.Bool("allow_any_horizon", cfg.AllowAnyHorizon),
		slog.Int("max_horizon", cfg.MaxHorizon))
	return s
}

// StockReport is a stock check against the forecast of one session
type StockReport struct {
	forecast.StockCheck
	Horizon int
}

// CheckHorizon rejects horizons outside the configured set
func (s *ForecastService) CheckHorizon(horizon int) error {
	if s.cfg.HorizonAllowed(horizon) {
		return nil
	}
	if s.cfg.AllowAnyHorizon {
		return fmt.Errorf("%w: %d, expected 1 to %d days", domain.ErrInvalidHorizon, horizon, s.cfg.MaxHorizon)
	}
	return fmt.Errorf("%w: %d, expected one of %v", domain.ErrInvalidHorizon, horizon, s.cfg.Horizons)
}

// Upload parses a sales history, forecasts horizon days past its last date
// and stores the result as a new session. Nothing is stored on failure.
func (s *ForecastService) Upload(ctx context.Context, filename string, r io.Reader, horizon int) (sess *session.Session, err error) {
	ctx, span := s.tracer.Start(ctx, "forecast.upload", trace.WithAttributes(
		attribute.String("upload.filename", filename),
		attribute.Int("forecast.horizon", horizon),
	))
	defer span.End()

	start := time.Now()
	rows := 0
	defer func() {
		s.finish(ctx, "upload", start, rows, err)
	}()

	if err := s.CheckHorizon(horizon); err != nil {
		return nil, err
	}

	m, err := s.model(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordUpload(ctx, history.Len())

	dims, err := s.dimensions(ctx, history)
	if err != nil {
		return nil, err
	}

	features := forecast.FeatureColumns(history)
	if err := s.checkFeatures(features, m); err != nil {
		return nil, err
	}

	result, err := s.run(ctx, m, dims, features, horizon)
	if err != nil {
		return nil, err
	}
	rows = result.Len()

	sess = s.store.Create(&session.Session{
		Filename:   filename,
		History:    history,
		Dimensions: dims,
		Features:   features,
		Horizon:    horizon,
		Result:     result,
	})
	span.SetAttributes(attribute.String("session.id", sess.ID))

	s.logger.InfoContext(ctx, "forecast created",
		slog.String("session_id", sess.ID),
		slog.String("filename", filename),
		slog.Int("history_rows", history.Len()),
		slog.Int("skus", len(dims.SKUs)),
		slog.Int("stores", len(dims.Stores)),
		slog.Int("horizon", horizon),
		slog.Int("forecast_rows", rows))
	return sess, nil
}

// Reforecast reruns a session's forecast with a new horizon and replaces the
// stored result
func (s *ForecastService) Reforecast(ctx context.Context, id string, horizon int) (sess *session.Session, err error) {
	ctx, span := s.tracer.Start(ctx, "forecast.reforecast", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.Int("forecast.horizon", horizon),
	))
	defer span.End()

	start := time.Now()
	rows := 0
	defer func() {
		s.finish(ctx, "reforecast", start, rows, err)
	}()

	if err := s.CheckHorizon(horizon); err != nil {
		return nil, err
	}
	current, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	m, err := s.model(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkFeatures(current.Features, m); err != nil {
		return nil, err
	}

	result, err := s.run(ctx, m, current.Dimensions, current.Features, horizon)
	if err != nil {
		return nil, err
	}
	rows = result.Len()

	sess, err = s.store.Replace(current.WithForecast(horizon, result))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "forecast updated",
		slog.String("session_id", id),
		slog.Int("previous_horizon", current.Horizon),
		slog.Int("horizon", horizon),
		slog.Int("forecast_rows", rows))
	return sess, nil
}

// Get returns a stored session
func (s *ForecastService) Get(_ context.Context, id string) (*session.Session, error) {
	return s.store.Get(id)
}

// Delete removes a stored session
func (s *ForecastService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "forecast deleted", slog.String("session_id", id))
	return nil
}

// Options lists the SKUs and stores of a session's forecast
func (s *ForecastService) Options(_ context.Context, id string) (forecast.Options, error) {
	_, result, err := s.result(id)
	if err != nil {
		return forecast.Options{}, err
	}
	return forecast.SelectorOptions(result)
}

// Rows returns one page of a session's forecast table and the total row count
func (s *ForecastService) Rows(_ context.Context, id string, offset, limit int) ([]forecast.Row, int, error) {
	_, result, err := s.result(id)
	if err != nil {
		return nil, 0, err
	}
	return forecast.Rows(result, offset, limit)
}

// Totals sums predicted sales per forecast date across all SKUs and stores
func (s *ForecastService) Totals(_ context.Context, id string) ([]forecast.DatePoint, error) {
	_, result, err := s.result(id)
	if err != nil {
		return nil, err
	}
	return forecast.TotalsByDate(result)
}

// Series sums predicted sales per date for one SKU, one store or both.
// Unknown identifiers are reported before an empty combination.
func (s *ForecastService) Series(_ context.Context, id string, filter forecast.Filter) ([]forecast.DatePoint, error) {
	sess, result, err := s.result(id)
	if err != nil {
		return nil, err
	}
	if filter.SKU != "" && !contains(sess.Dimensions.SKUs, filter.SKU) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSKU, filter.SKU)
	}
	if filter.Store != "" && !contains(sess.Dimensions.Stores, filter.Store) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStore, filter.Store)
	}
	return forecast.Series(result, filter)
}

// StockCheck compares currentStock with the forecast demand of sku over the
// session's horizon
func (s *ForecastService) StockCheck(ctx context.Context, id, sku string, currentStock int64) (*StockReport, error) {
	sess, result, err := s.result(id)
	if err != nil {
		return nil, err
	}
	check, err := forecast.CheckStock(result, sku, currentStock)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "stock checked",
		slog.String("session_id", id),
		slog.String("sku", sku),
		slog.Int64("current_stock", currentStock),
		slog.Int64("forecast", check.Forecast),
		slog.Bool("sufficient", check.Sufficient))
	return &StockReport{StockCheck: *check, Horizon: sess.Horizon}, nil
}

// Export writes a session's forecast table to out
func (s *ForecastService) Export(ctx context.Context, id string, format exporter.Format, out io.Writer) error {
	ctx, span := s.tracer.Start(ctx, "forecast.export", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("export.format", string(format)),
	))
	defer span.End()

	_, result, err := s.result(id)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return err
	}
	if err := exporter.Export(out, format, result); err != nil {
		infrastructure.RecordError(ctx, err)
		return fmt.Errorf("export %s: %w", format, err)
	}
	return nil
}

// result returns a session and its forecast
func (s *ForecastService) result(id string) (*session.Session, *frame.Frame, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if sess.Result == nil {
		return nil, nil, domain.ErrNoForecast
	}
	return sess, sess.Result, nil
}

func (s *ForecastService) model(ctx context.Context) (model.Model, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.load_model")
	defer span.End()

	m, err := s.models.Get(ctx)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	return m, nil
}

func (s *ForecastService) loadHistory(ctx context.Context, filename string, r io.Reader) (*frame.Frame, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.load_history")
	defer span.End()

	format, err := dataset.DetectFormat(filename, "")
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	history, err := dataset.LoadHistory(r, dataset.LoadOptions{
		Format:  format,
		Sheet:   s.cfg.Sheet,
		MaxRows: s.cfg.MaxRows,
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("upload.format", string(format)),
		attribute.Int("history.rows", history.Len()),
	)
	return history, nil
}

func (s *ForecastService) dimensions(ctx context.Context, history *frame.Frame) (*dataset.Dimensions, error) {
	ctx, span := s.tracer.Start(ctx, "forecast.extract_dimensions")
	defer span.End()

	dims, err := dataset.ExtractDimensions(history, s.cfg.Schema())
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("dimensions.skus", len(dims.SKUs)),
		attribute.Int("dimensions.stores", len(dims.Stores)),
	)
	return dims, nil
}

// checkFeatures compares the history feature columns with the configured
// feature list, when set, and with the model's own features
func (s *ForecastService) checkFeatures(features []string, m model.Model) error {
	if len(s.cfg.ExpectedFeatures) > 0 {
		if err := forecast.ValidateFeatures(features, s.cfg.ExpectedFeatures); err != nil {
			return err
		}
	}
	return forecast.ValidateFeatures(features, m.FeatureNames())
}

// run builds the future frame and scores it
func (s *ForecastService) run(ctx context.Context, m model.Model, dims *dataset.Dimensions, features []string, horizon int) (*frame.Frame, error) {
	buildCtx, span := s.tracer.Start(ctx, "forecast.build_future_frame")
	if err := forecast.CheckFutureSize(dims, horizon, s.cfg.MaxFutureRows); err != nil {
		infrastructure.RecordError(buildCtx, err)
		span.End()
		return nil, err
	}
	future, err := forecast.BuildFutureFrame(dims, horizon)
	if err != nil {
		infrastructure.RecordError(buildCtx, err)
		span.End()
		return nil, err
	}
	span.SetAttributes(attribute.Int("future.rows", future.Len()))
	span.End()

	predictCtx, span := s.tracer.Start(buildCtx, "forecast.predict")
	defer span.End()
	result, err := s.engine.Predict(predictCtx, m, future, features)
	if err != nil {
		infrastructure.RecordError(predictCtx, err)
		return nil, err
	}
	return result, nil
}

func (s *ForecastService) finish(ctx context.Context, operation string, start time.Time, rows int, err error) {
	outcome := Outcome(err)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("forecast.outcome", outcome))
	if err != nil {
		infrastructure.RecordError(ctx, err)
		level := slog.LevelWarn
		if outcome == OutcomeModelError || outcome == OutcomeInternal {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "forecast failed",
			slog.String("operation", operation),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()))
	}
	s.metrics.RecordForecast(ctx, operation, outcome, time.Since(start), rows)
}

// Forecast outcome labels
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeNotFound         = "not_found"
	OutcomeModelUnavailable = "model_unavailable"
	OutcomeModelError       = "model_error"
	OutcomeCanceled         = "canceled"
	OutcomeInternal         = "internal_error"
)

// Outcome classifies a pipeline error for metrics and logs
func Outcome(err error) string {
	var (
		schema    *domain.SchemaError
		empty     *domain.EmptyDatasetError
		mismatch  *domain.FeatureMismatchError
		notFound  *domain.ModelNotFoundError
		inference *domain.ModelInferenceError
	)
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &schema), errors.As(err, &empty), errors.As(err, &mismatch),
		errors.Is(err, domain.ErrInvalidHorizon):
		return OutcomeInvalidInput
	case errors.Is(err, domain.ErrSessionNotFound):
		return OutcomeNotFound
	case errors.As(err, &notFound):
		return OutcomeModelUnavailable
	case errors.As(err, &inference):
		return OutcomeModelError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeInternal
	}
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
