package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/trendpush/trendpush/internal/api/models"
	"github.com/trendpush/trendpush/internal/api/response"
	"github.com/trendpush/trendpush/internal/provider/resilience"
)

// Pinger checks a dependency. Satisfied by *pgxpool.Pool and the Redis client adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	backends  *resilience.Registry
	pingers   map[string]Pinger
}

// NewOpsHandler creates a new OpsHandler. backends and pingers may be nil.
func NewOpsHandler(version, buildTime string, backends *resilience.Registry, pingers map[string]Pinger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		backends:  backends,
		pingers:   pingers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready.
// An unreachable store fails readiness; an open push circuit only degrades it,
// since every instance shares the same backend.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	overall := models.HealthStatusOK
	var checks []models.DependencyStatus

	if h.backends != nil {
		for _, bh := range h.backends.GetAllHealth() {
			check := backendStatus(bh)
			if check.Status != models.HealthStatusOK {
				overall = worse(overall, models.HealthStatusDegraded)
			}
			checks = append(checks, check)
		}
	}

	names := make([]string, 0, len(h.pingers))
	for name := range h.pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := h.pingers[name]
		check := models.DependencyStatus{Name: name, Status: models.HealthStatusOK}
		if err := p.Ping(ctx); err != nil {
			msg := err.Error()
			check.Status = models.HealthStatusFail
			check.Message = &msg
			overall = models.HealthStatusFail
		}
		checks = append(checks, check)
	}

	status := http.StatusOK
	if overall == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}

	response.JSON(w, r, status, models.Health{
		Status: overall,
		Time:   models.Timestamp(time.Now()),
		Checks: checks,
	})
}

func backendStatus(bh *resilience.BackendHealth) models.DependencyStatus {
	check := models.DependencyStatus{
		Name:         bh.Name,
		Status:       models.HealthStatusOK,
		CircuitState: bh.CircuitState.String(),
	}
	switch {
	case bh.IsUnhealthy():
		check.Status = models.HealthStatusFail
	case bh.IsDegraded():
		check.Status = models.HealthStatusDegraded
	}
	if bh.LastSuccessAt != nil {
		ts := models.Timestamp(*bh.LastSuccessAt)
		check.LastSuccessAt = &ts
	}
	if bh.LastFailureAt != nil {
		ts := models.Timestamp(*bh.LastFailureAt)
		check.LastFailureAt = &ts
	}
	if bh.LastError != "" {
		msg := bh.LastError
		check.Message = &msg
	}
	return check
}

func worse(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
