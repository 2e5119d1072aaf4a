package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"salesforecast/internal/model"
	"salesforecast/internal/session"
	"salesforecast/pkg/contracts"
	api "salesforecast/pkg/contracts/api/v1"
)

// Health status values
const (
	StatusOK       = "ok"
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// HealthService provides health check functionality
type HealthService struct {
	models    ModelSource
	store     *session.Store
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a new health service. store may be nil.
func NewHealthService(models ModelSource, store *session.Store, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version))

	return &HealthService{
		models:    models,
		store:     store,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	status := api.HealthResponse{
		Status:    StatusOK,
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
	}

	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status.Status),
		slog.Duration("uptime", time.Since(hs.startTime)))
	return status
}

// ReadinessCheck reports ready once the model artifact can be loaded
func (hs *HealthService) ReadinessCheck(ctx context.Context) api.HealthResponse {
	status := api.HealthResponse{
		Status:    StatusReady,
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]api.CheckResult),
	}

	status.Checks["model"] = hs.checkModel(ctx)
	if hs.store != nil {
		stats := hs.store.Stats()
		status.Checks["sessions"] = api.CheckResult{
			Status: StatusReady,
			Detail: strconv.Itoa(stats.Size) + " active",
		}
	}

	for _, check := range status.Checks {
		if check.Status != StatusReady {
			status.Status = StatusNotReady
			break
		}
	}

	if status.Status != StatusReady {
		hs.logger.WarnContext(ctx, "readiness check failed",
			slog.String("model", status.Checks["model"].Detail))
	}
	return status
}

func (hs *HealthService) checkModel(ctx context.Context) api.CheckResult {
	m, err := hs.models.Get(ctx)
	if err != nil {
		return api.CheckResult{Status: StatusNotReady, Detail: err.Error()}
	}
	info := model.Describe(m)
	return api.CheckResult{
		Status: StatusReady,
		Detail: info.Kind + " model, " + strconv.Itoa(len(info.Features)) + " features",
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(_ context.Context) api.HealthResponse {
	return api.HealthResponse{
		Status:    StatusAlive,
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"api_version":  info.APIVersion,
		"model_format": info.ModelFormat,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
	}
}
