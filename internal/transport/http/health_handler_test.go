package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforecast/internal/model"
	"salesforecast/internal/services"
	"salesforecast/internal/session"
	"salesforecast/internal/shared/testutil"
	"salesforecast/pkg/contracts/domain"
)

func healthRouter(t *testing.T, models services.ModelSource) http.Handler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	store, err := session.NewStore(4, 0)
	require.NoError(t, err)

	h := NewHealthHandler(services.NewHealthService(models, store, logger), logger)
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Get("/health/ready", h.ReadinessCheck)
	r.Get("/health/live", h.LivenessCheck)
	r.Get("/version", h.Version)
	return r
}

func TestHealthHandler(t *testing.T) {
	registry := model.NewRegistry(testutil.WriteArtifact(t, testutil.SampleLinearArtifact()), nil)
	router := healthRouter(t, registry)

	for path, status := range map[string]string{
		"/health":       services.StatusOK,
		"/health/ready": services.StatusReady,
		"/health/live":  services.StatusAlive,
	} {
		w := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, status, decodeBody(t, w)["status"], path)
	}

	w := serve(router, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w), "version")
}

func TestReadinessWithoutModel(t *testing.T) {
	registry := model.NewRegistryWithLoader("absent.json", func(path string) (model.Model, error) {
		return nil, &domain.ModelNotFoundError{Path: path, Cause: errors.New("no such file")}
	}, nil)
	router := healthRouter(t, registry)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, services.StatusNotReady, decodeBody(t, w)["status"])

	w = serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsHandler(t *testing.T) {
	store, err := session.NewStore(4, 0)
	require.NoError(t, err)
	store.Create(&session.Session{Filename: "a.csv"})

	t.Run("exporter enabled", func(t *testing.T) {
		prom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# HELP up\n"))
		})
		router := NewMetricsHandler(prom, store).Routes()

		w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "# HELP")

		w = serve(router, httptest.NewRequest(http.MethodGet, "/sessions", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decodeBody(t, w)["size"])
	})

	t.Run("exporter disabled", func(t *testing.T) {
		router := NewMetricsHandler(nil, store).Routes()
		w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
