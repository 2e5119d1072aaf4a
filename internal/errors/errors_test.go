package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := NotFoundError("forecast")
	assert.Equal(t, "forecast not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "NOT_FOUND", err.ErrorCode)

	wrapped := InvalidRequestWithError(errors.New("bad json"))
	assert.Equal(t, "bad json", wrapped.Details)
	assert.Equal(t, http.StatusBadRequest, wrapped.StatusCode)
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("horizon", "horizon must be one of: 30, 60")
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)
	assert.Equal(t, "horizon must be one of: 30, 60", err.Message)

	details, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, []ValidationError{{Field: "horizon", Message: "horizon must be one of: 30, 60"}}, details.Errors)
}

func TestNewValidationErrors(t *testing.T) {
	err := NewValidationErrors([]ValidationError{
		{Field: "sku", Message: "sku is required"},
		{Field: "current_stock", Message: "current_stock must be greater than or equal to 0"},
	})
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Len(t, err.Details.(ValidationErrors).Errors, 2)
}

func TestAPIErrorRender(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	require.NoError(t, render.Render(w, r, ErrRateLimitExceeded))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.ErrorCode)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, ErrPayloadTooLarge)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestProblemDetailsJSON(t *testing.T) {
	p := NewProblemDetails(http.StatusUnprocessableEntity, TypeSchema, "Invalid Upload", "missing columns", "/api/v1/forecasts").
		WithExtension("missing_columns", []string{"Store_ID"}).
		WithExtension("status", 999)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeSchema, got["type"])
	assert.Equal(t, float64(422), got["status"], "standard members win over extensions")
	assert.Equal(t, []any{"Store_ID"}, got["missing_columns"])
	assert.Equal(t, "/api/v1/forecasts", got["instance"])

	var empty ProblemDetails
	empty.WithExtension("k", "v")
	assert.Equal(t, "v", empty.Extensions["k"])
}
