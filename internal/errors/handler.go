package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"salesforecast/internal/infrastructure"
	"salesforecast/pkg/contracts/domain"
)

// Common error types following RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
)

// Forecast pipeline error types
const (
	TypeSchema          = "/errors/forecast/schema"
	TypeEmptyDataset    = "/errors/forecast/empty-dataset"
	TypeModelNotFound   = "/errors/forecast/model-not-found"
	TypeFeatureMismatch = "/errors/forecast/feature-mismatch"
	TypeModelInference  = "/errors/forecast/model-inference"
	TypeInvariant       = "/errors/forecast/invariant"
)

// ErrorHandler converts errors into problem documents. Responses carry
// short human-readable messages; causes and stacks only go to the log.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)
	reqID := infrastructure.GetRequestID(r.Context())
	if reqID != "" {
		problem.WithExtension("request_id", reqID)
	}

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	_ = render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return NewProblemDetails(
			http.StatusRequestEntityTooLarge,
			TypePayloadTooLarge,
			"Payload Too Large",
			fmt.Sprintf("The upload exceeds the maximum allowed size of %d bytes", maxBytes.Limit),
			path,
		)
	}

	var schemaErr *domain.SchemaError
	if errors.As(err, &schemaErr) {
		problem := NewProblemDetails(http.StatusUnprocessableEntity, TypeSchema, "Invalid Upload", schemaErr.Error(), path)
		if len(schemaErr.Missing) > 0 {
			problem.WithExtension("missing_columns", schemaErr.Missing)
		}
		if schemaErr.Row > 0 {
			problem.WithExtension("row", schemaErr.Row)
			problem.WithExtension("column", schemaErr.Column)
		}
		return problem
	}

	var emptyErr *domain.EmptyDatasetError
	if errors.As(err, &emptyErr) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeEmptyDataset, "Empty Upload", emptyErr.Error(), path)
	}

	var modelErr *domain.ModelNotFoundError
	if errors.As(err, &modelErr) {
		return NewProblemDetails(http.StatusServiceUnavailable, TypeModelNotFound, "Model Unavailable", modelErr.Error(), path)
	}

	var featureErr *domain.FeatureMismatchError
	if errors.As(err, &featureErr) {
		problem := NewProblemDetails(http.StatusUnprocessableEntity, TypeFeatureMismatch, "Feature Mismatch", featureErr.Error(), path)
		if len(featureErr.Missing) > 0 {
			problem.WithExtension("missing_features", featureErr.Missing)
		}
		if len(featureErr.Unexpected) > 0 {
			problem.WithExtension("unexpected_features", featureErr.Unexpected)
		}
		return problem
	}

	var inferenceErr *domain.ModelInferenceError
	if errors.As(err, &inferenceErr) {
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeModelInference,
			"Prediction Failed",
			"The model could not produce a forecast for this upload",
			path,
		)
	}

	var invariantErr *domain.InvariantViolationError
	if errors.As(err, &invariantErr) {
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeInvariant,
			"Forecast Failed",
			"The forecast could not be produced",
			path,
		).WithExtension("invariant", invariantErr.Invariant)
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound, "Forecast Not Found",
			"The forecast session does not exist or has expired", path)
	case errors.Is(err, domain.ErrUnknownSKU), errors.Is(err, domain.ErrUnknownStore), errors.Is(err, domain.ErrNoSeriesData):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", err.Error(), path)
	case errors.Is(err, domain.ErrInvalidHorizon):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Invalid Horizon", err.Error(), path)
	case errors.Is(err, domain.ErrNoForecast):
		return NewProblemDetails(http.StatusConflict, TypeConflict, "No Forecast", err.Error(), path)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "CONFLICT":
		problemType = TypeConflict
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "UNSUPPORTED_MEDIA_TYPE":
		problemType = TypeUnsupportedMedia
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic logs a recovered panic and responds with a generic 500
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	)
	if reqID := infrastructure.GetRequestID(r.Context()); reqID != "" {
		problem.WithExtension("request_id", reqID)
	}
	_ = render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	)
	_ = render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllowed,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	)
	_ = render.Render(w, r, problem)
}
