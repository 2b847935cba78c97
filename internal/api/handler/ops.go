// Package handler provides HTTP handlers for the dashboard API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/canemap/canemap/internal/api/models"
	"github.com/canemap/canemap/internal/api/response"
	"github.com/canemap/canemap/internal/provider/resilience"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds the dependencies inspected by the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Checks    []ReadinessCheck

	// Sessions returns the number of live sessions.
	Sessions func() int
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing check answers 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{Status: models.HealthStatusOK, Time: models.Timestamp(h.now())}
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			health.Details = map[string]any{"failing": s.Name, "detail": s.Detail}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - backend provider and subsystem
// status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  []models.ProviderStatus{},
	}
	if h.cfg.Sessions != nil {
		status.ActiveSessions = h.cfg.Sessions()
	}
	if h.cfg.Registry != nil {
		for _, p := range h.cfg.Registry.All() {
			status.Providers = append(status.Providers, toProviderStatus(p))
		}
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	// An open provider breaker degrades the dashboard without failing it.
	for _, p := range status.Providers {
		ps := p.Status
		if ps == models.HealthStatusFail {
			ps = models.HealthStatusDegraded
		}
		status.Status = worst(status.Status, ps)
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	for _, c := range h.cfg.Checks {
		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err := c.Check(ctx); err != nil {
			s.Status = models.HealthStatusFail
			s.Detail = err.Error()
		}
		out = append(out, s)
	}
	return out
}

func toProviderStatus(h *resilience.Health) models.ProviderStatus {
	p := models.ProviderStatus{
		Provider:     h.Name,
		Status:       models.HealthStatusOK,
		CircuitState: h.State.String(),
		Message:      h.LastError,
	}
	switch h.State {
	case gobreaker.StateHalfOpen:
		p.Status = models.HealthStatusDegraded
	case gobreaker.StateOpen:
		p.Status = models.HealthStatusFail
	}
	if h.LastSuccessAt != nil {
		p.LastSuccessAt = models.NewTimestamp(*h.LastSuccessAt)
	}
	if h.LastFailureAt != nil {
		p.LastFailureAt = models.NewTimestamp(*h.LastFailureAt)
	}
	return p
}

// worst returns the more severe of two statuses.
func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := func(s models.HealthStatus) int {
		switch s {
		case models.HealthStatusFail:
			return 2
		case models.HealthStatusDegraded:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
