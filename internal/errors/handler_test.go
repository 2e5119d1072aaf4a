package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/infrastructure"
	"salesforecast/internal/shared/testutil"
	"salesforecast/pkg/contracts/domain"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), w.Body.String())
	return got
}

func TestErrorToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"schema", &domain.SchemaError{Missing: []string{"Store_ID"}}, 422, TypeSchema},
		{"wrapped schema", fmt.Errorf("load: %w", &domain.SchemaError{Reason: "bad"}), 422, TypeSchema},
		{"empty dataset", &domain.EmptyDatasetError{}, 422, TypeEmptyDataset},
		{"model missing", &domain.ModelNotFoundError{Path: "m.json"}, 503, TypeModelNotFound},
		{"feature mismatch", &domain.FeatureMismatchError{Missing: []string{"Region"}}, 422, TypeFeatureMismatch},
		{"inference", &domain.ModelInferenceError{Reason: "nan"}, 500, TypeModelInference},
		{"invariant", &domain.InvariantViolationError{Invariant: "unique-keys"}, 500, TypeInvariant},
		{"session", domain.ErrSessionNotFound, 404, TypeNotFound},
		{"unknown sku", fmt.Errorf("%w: %q", domain.ErrUnknownSKU, "Z"), 404, TypeNotFound},
		{"no series", domain.ErrNoSeriesData, 404, TypeNotFound},
		{"horizon", domain.ErrInvalidHorizon, 400, TypeValidation},
		{"no forecast", domain.ErrNoForecast, 409, TypeConflict},
		{"too large", &http.MaxBytesError{Limit: 10}, 413, TypePayloadTooLarge},
		{"timeout", context.DeadlineExceeded, 504, TypeTimeout},
		{"api error", ErrValidation("limit", "limit must be at most 1000"), 400, TypeValidation},
		{"unknown", errors.New("disk on fire"), 500, TypeInternal},
	}

	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/forecasts", nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, "/api/v1/forecasts", p.Instance)
			assert.NotEmpty(t, p.Detail)
		})
	}
}

func TestErrorToProblemExtensions(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger)
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	p := h.ErrorToProblem(&domain.SchemaError{Missing: []string{"Store_ID"}}, r)
	assert.Equal(t, []string{"Store_ID"}, p.Extensions["missing_columns"])

	p = h.ErrorToProblem(&domain.SchemaError{Row: 3, Column: "Date", Value: "x", Reason: "not a day-first date"}, r)
	assert.Equal(t, 3, p.Extensions["row"])
	assert.Equal(t, "Date", p.Extensions["column"])

	p = h.ErrorToProblem(&domain.FeatureMismatchError{Missing: []string{"Region"}, Unexpected: []string{"Colour"}}, r)
	assert.Equal(t, []string{"Region"}, p.Extensions["missing_features"])
	assert.Equal(t, []string{"Colour"}, p.Extensions["unexpected_features"])
}

func TestHandleErrorHidesInternals(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/forecasts", nil)
	r = r.WithContext(infrastructure.WithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	cause := errors.New("xgboost: C stack overflow at 0xdeadbeef")
	h.HandleError(w, r, &domain.ModelInferenceError{Reason: "model returned an error", Cause: cause})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "0xdeadbeef")
	got := decodeProblem(t, w)
	assert.Equal(t, "req-1", got["request_id"])

	testutil.AssertLogContains(t, logs, slog.LevelError, "request failed")
	assert.True(t, logs.ContainsAttr("status", int64(500)))
}

func TestHandleErrorNil(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	w := httptest.NewRecorder()
	NewErrorHandler(logger).HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, w.Body.Len())
	assert.Zero(t, logs.Count())
}

func TestHandleErrorModelNotFoundMessage(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	w := httptest.NewRecorder()
	NewErrorHandler(logger).HandleError(w, httptest.NewRequest(http.MethodPost, "/", nil),
		&domain.ModelNotFoundError{Path: "xgb_forecasting_model.json", Cause: errors.New("no such file")})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	got := decodeProblem(t, w)
	assert.Equal(t, "model file 'xgb_forecasting_model.json' not found or unreadable", got["detail"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "request failed")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, w)["type"])

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodPatch, "/api/v1/forecasts", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, decodeProblem(t, w)["detail"], "PATCH")
}
