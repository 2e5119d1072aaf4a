package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/dataset"
	apierrors "salesforecast/internal/errors"
	"salesforecast/internal/exporter"
	"salesforecast/internal/forecast"
	"salesforecast/internal/middleware"
	"salesforecast/internal/services"
	"salesforecast/internal/session"
	"salesforecast/internal/shared/testutil"
	api "salesforecast/pkg/contracts/api/v1"
	"salesforecast/pkg/contracts/domain"
)

// MockForecastService is a mock implementation of ForecastServiceInterface
type MockForecastService struct {
	mock.Mock
}

func (m *MockForecastService) Upload(ctx context.Context, filename string, r io.Reader, horizon int) (*session.Session, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(filename, string(body), horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockForecastService) Reforecast(ctx context.Context, id string, horizon int) (*session.Session, error) {
	args := m.Called(id, horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockForecastService) Get(ctx context.Context, id string) (*session.Session, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockForecastService) Delete(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func (m *MockForecastService) Options(ctx context.Context, id string) (forecast.Options, error) {
	args := m.Called(id)
	return args.Get(0).(forecast.Options), args.Error(1)
}

func (m *MockForecastService) Rows(ctx context.Context, id string, offset, limit int) ([]forecast.Row, int, error) {
	args := m.Called(id, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]forecast.Row), args.Int(1), args.Error(2)
}

func (m *MockForecastService) Totals(ctx context.Context, id string) ([]forecast.DatePoint, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]forecast.DatePoint), args.Error(1)
}

func (m *MockForecastService) Series(ctx context.Context, id string, filter forecast.Filter) ([]forecast.DatePoint, error) {
	args := m.Called(id, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]forecast.DatePoint), args.Error(1)
}

func (m *MockForecastService) StockCheck(ctx context.Context, id, sku string, currentStock int64) (*services.StockReport, error) {
	args := m.Called(id, sku, currentStock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.StockReport), args.Error(1)
}

func (m *MockForecastService) Export(ctx context.Context, id string, format exporter.Format, out io.Writer) error {
	args := m.Called(id, format)
	if body, ok := args.Get(0).(string); ok {
		_, _ = io.WriteString(out, body)
	}
	return args.Error(1)
}

// sampleSession runs the pipeline over the sample history with a constant
// model
func sampleSession(t *testing.T, horizon int) *session.Session {
	t.Helper()
	history, err := dataset.LoadHistory(strings.NewReader(testutil.SampleHistoryCSV), dataset.LoadOptions{Format: dataset.FormatCSV})
	require.NoError(t, err)
	dims, err := dataset.ExtractDimensions(history, dataset.DefaultSchema())
	require.NoError(t, err)
	future, err := forecast.BuildFutureFrame(dims, horizon)
	require.NoError(t, err)
	features := forecast.FeatureColumns(history)
	result, err := forecast.NewEngine(nil).Predict(context.Background(),
		&testutil.StubModel{Features: features, Value: 4}, future, features)
	require.NoError(t, err)

	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	return &session.Session{
		ID:         "s-1",
		Filename:   "history.csv",
		History:    history,
		Dimensions: dims,
		Features:   features,
		Horizon:    horizon,
		Result:     result,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func newTestRouter(t *testing.T, svc ForecastServiceInterface) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewForecastHandler(svc, middleware.NewValidator(), logger, apierrors.NewErrorHandler(logger), "/api/v1/forecasts")
	return h.Routes()
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func multipartUpload(t *testing.T, filename, body, horizon string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if horizon != "" {
		require.NoError(t, mw.WriteField("horizon", horizon))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), w.Body.String())
	return got
}

func TestCreateForecast(t *testing.T) {
	sess := sampleSession(t, 30)
	svc := new(MockForecastService)
	svc.On("Upload", "history.csv", testutil.SampleHistoryCSV, 30).Return(sess, nil)
	router := newTestRouter(t, svc)

	w := serve(router, multipartUpload(t, "history.csv", testutil.SampleHistoryCSV, "30"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/v1/forecasts/s-1", w.Header().Get("Location"))

	var summary api.ForecastSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "s-1", summary.ID)
	assert.Equal(t, 30, summary.Horizon)
	assert.Equal(t, 4, summary.HistoryRows)
	assert.Equal(t, "2024-01-01", summary.HistoryFrom)
	assert.Equal(t, "2024-01-31", summary.HistoryTo)
	assert.Equal(t, 120, summary.ForecastRows)
	assert.Equal(t, "2024-02-01", summary.ForecastFrom)
	assert.Equal(t, "2024-03-01", summary.ForecastTo)
	assert.Equal(t, []string{"A", "B"}, summary.SKUs)
	assert.Equal(t, []string{"S1", "S2"}, summary.Stores)
	assert.Equal(t, "/api/v1/forecasts/s-1/export.csv", summary.Links["export_csv"])
	svc.AssertExpectations(t)
}

func TestCreateForecastValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   func(t *testing.T) *http.Request
		code  int
		field string
	}{
		{"missing horizon", func(t *testing.T) *http.Request {
			return multipartUpload(t, "history.csv", testutil.SampleHistoryCSV, "")
		}, http.StatusBadRequest, "horizon"},
		{"non-numeric horizon", func(t *testing.T) *http.Request {
			return multipartUpload(t, "history.csv", testutil.SampleHistoryCSV, "thirty")
		}, http.StatusBadRequest, "horizon"},
		{"negative horizon", func(t *testing.T) *http.Request {
			return multipartUpload(t, "history.csv", testutil.SampleHistoryCSV, "-3")
		}, http.StatusBadRequest, "horizon"},
		{"missing file", func(t *testing.T) *http.Request {
			return multipartUpload(t, "", "", "30")
		}, http.StatusBadRequest, "file"},
		{"json body", func(t *testing.T) *http.Request {
			return jsonRequest(http.MethodPost, "/", `{"horizon":30}`)
		}, http.StatusUnsupportedMediaType, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockForecastService)
			w := serve(newTestRouter(t, svc), tt.req(t))
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.field != "" {
				assert.Contains(t, w.Body.String(), `"field":"`+tt.field+`"`)
			}
			svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateForecastServiceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		wantType string
	}{
		{"schema", &domain.SchemaError{Missing: []string{"Store_ID"}}, http.StatusUnprocessableEntity, apierrors.TypeSchema},
		{"empty", &domain.EmptyDatasetError{}, http.StatusUnprocessableEntity, apierrors.TypeEmptyDataset},
		{"model missing", &domain.ModelNotFoundError{Path: "m.json"}, http.StatusServiceUnavailable, apierrors.TypeModelNotFound},
		{"features", &domain.FeatureMismatchError{Missing: []string{"Holiday"}}, http.StatusUnprocessableEntity, apierrors.TypeFeatureMismatch},
		{"inference", &domain.ModelInferenceError{Reason: "boom"}, http.StatusInternalServerError, apierrors.TypeModelInference},
		{"horizon", domain.ErrInvalidHorizon, http.StatusBadRequest, apierrors.TypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockForecastService)
			svc.On("Upload", "history.csv", mock.Anything, 30).Return(nil, tt.err)

			w := serve(newTestRouter(t, svc), multipartUpload(t, "history.csv", "x", "30"))
			assert.Equal(t, tt.code, w.Code)
			problem := decodeBody(t, w)
			assert.Equal(t, tt.wantType, problem["type"])
			assert.NotContains(t, w.Body.String(), "goroutine")
		})
	}
}

func TestGetAndDeleteForecast(t *testing.T) {
	sess := sampleSession(t, 30)
	svc := new(MockForecastService)
	svc.On("Get", "s-1").Return(sess, nil)
	svc.On("Get", "nope").Return(nil, domain.ErrSessionNotFound)
	svc.On("Delete", "s-1").Return(nil)
	svc.On("Delete", "nope").Return(domain.ErrSessionNotFound)
	router := newTestRouter(t, svc)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/s-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", decodeBody(t, w)["id"])

	w = serve(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apierrors.TypeNotFound, decodeBody(t, w)["type"])

	w = serve(router, httptest.NewRequest(http.MethodDelete, "/s-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodDelete, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateHorizon(t *testing.T) {
	updated := sampleSession(t, 60)
	svc := new(MockForecastService)
	svc.On("Reforecast", "s-1", 60).Return(updated, nil)
	svc.On("Reforecast", "s-1", 45).Return(nil, domain.ErrInvalidHorizon)
	router := newTestRouter(t, svc)

	w := serve(router, jsonRequest(http.MethodPut, "/s-1/horizon", `{"horizon": 60}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.EqualValues(t, 60, body["horizon"])
	assert.EqualValues(t, 240, body["forecast_rows"])

	w = serve(router, jsonRequest(http.MethodPut, "/s-1/horizon", `{"horizon": 45}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, jsonRequest(http.MethodPut, "/s-1/horizon", `{"horizon": 0}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, jsonRequest(http.MethodPut, "/s-1/horizon", `{"horizon":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "Reforecast", 2)
}

func TestRows(t *testing.T) {
	svc := new(MockForecastService)
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Rows", "s-1", 0, api.DefaultRowsLimit).Return([]forecast.Row{
		{Date: day, SKU: "A", Store: "S1", PredictedSales: 12},
	}, 120, nil)
	svc.On("Rows", "s-1", 10, 5).Return([]forecast.Row{}, 120, nil)
	router := newTestRouter(t, svc)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/s-1/rows", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var page api.RowsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 120, page.Total)
	assert.Equal(t, api.DefaultRowsLimit, page.Limit)
	assert.Equal(t, []api.ForecastRow{{Date: "2024-02-01", SKU: "A", StoreID: "S1", PredictedSales: 12}}, page.Rows)

	w = serve(router, httptest.NewRequest(http.MethodGet, "/s-1/rows?offset=10&limit=5", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	for _, q := range []string{"limit=0", "limit=5000", "offset=-1", "limit=abc"} {
		w = serve(router, httptest.NewRequest(http.MethodGet, "/s-1/rows?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestTotalsAndSeries(t *testing.T) {
	d1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	points := []forecast.DatePoint{{Date: d1, Sales: 10}, {Date: d2, Sales: 7}}

	svc := new(MockForecastService)
	svc.On("Totals", "s-1").Return(points, nil)
	svc.On("Series", "s-1", forecast.Filter{SKU: "A"}).Return(points, nil)
	svc.On("Series", "s-1", forecast.Filter{SKU: "A", Store: "S9"}).Return(nil, domain.ErrUnknownStore)
	router := newTestRouter(t, svc)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/s-1/totals", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var totals api.SeriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &totals))
	assert.Equal(t, int64(17), totals.Total)
	assert.Equal(t, "2024-02-02", totals.Points[1].Date)

	w = serve(router, httptest.NewRequest(http.MethodGet, "/s-1/series?sku=A", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A", decodeBody(t, w)["sku"])

	w = serve(router, httptest.NewRequest(http.MethodGet, "/s-1/series?sku=A&store=S9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, httptest.NewRequest(http.MethodGet, "/s-1/series", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockCheck(t *testing.T) {
	svc := new(MockForecastService)
	svc.On("StockCheck", "s-1", "A", int64(100)).Return(&services.StockReport{
		StockCheck: forecast.StockCheck{SKU: "A", CurrentStock: 100, Forecast: 120, Shortfall: 20},
		Horizon:    30,
	}, nil)
	svc.On("StockCheck", "s-1", "A", int64(150)).Return(&services.StockReport{
		StockCheck: forecast.StockCheck{SKU: "A", CurrentStock: 150, Forecast: 120, Sufficient: true},
		Horizon:    30,
	}, nil)
	svc.On("StockCheck", "s-1", "Z", int64(1)).Return(nil, domain.ErrUnknownSKU)
	router := newTestRouter(t, svc)

	w := serve(router, jsonRequest(http.MethodPost, "/s-1/stock-check", `{"sku":"A","current_stock":100}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var short api.StockCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &short))
	assert.False(t, short.Sufficient)
	assert.Equal(t, int64(20), short.Shortfall)
	assert.Equal(t, "Current stock (100) is less than forecasted demand (120)", short.Message)

	w = serve(router, jsonRequest(http.MethodPost, "/s-1/stock-check", `{"sku":"A","current_stock":150}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["sufficient"])

	w = serve(router, jsonRequest(http.MethodPost, "/s-1/stock-check", `{"sku":"Z","current_stock":1}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, body := range []string{`{"sku":"A"}`, `{"sku":"A","current_stock":-1}`, `{"current_stock":5}`, `not json`} {
		w = serve(router, jsonRequest(http.MethodPost, "/s-1/stock-check", body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestExport(t *testing.T) {
	svc := new(MockForecastService)
	svc.On("Export", "s-1", exporter.FormatCSV).Return("Date,SKU,Store_ID,Predicted_Sales\n", nil)
	svc.On("Export", "s-1", exporter.FormatXLSX).Return("PK", nil)
	svc.On("Export", "nope", exporter.FormatCSV).Return(nil, domain.ErrSessionNotFound)
	router := newTestRouter(t, svc)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/s-1/export.csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, exporter.FormatCSV.ContentType(), w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="forecast.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Date,SKU"))

	w = serve(router, httptest.NewRequest(http.MethodGet, "/s-1/export.xlsx", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="forecast.xlsx"`, w.Header().Get("Content-Disposition"))

	w = serve(router, httptest.NewRequest(http.MethodGet, "/nope/export.csv", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}
