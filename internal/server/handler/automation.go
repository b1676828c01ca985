package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// AutomationEngine is the part of the automation engine the HTTP API drives.
type AutomationEngine interface {
	Config() domain.AutomationConfig
	UpdateConfig(patch domain.AutomationPatch) (domain.AutomationConfig, error)
	ResetConfig() domain.AutomationConfig
	Stats() domain.Stats
	ResetStats() domain.Stats
	Log() []domain.ExecutionRecord
	ToggleAutomation() bool
	ScanOnce(ctx context.Context) domain.ScanReport
}

// AutomationHandler serves the automation control endpoints.
type AutomationHandler struct {
	engine AutomationEngine
	logger *slog.Logger
}

// NewAutomationHandler creates an AutomationHandler.
func NewAutomationHandler(engine AutomationEngine, logger *slog.Logger) *AutomationHandler {
	return &AutomationHandler{engine: engine, logger: logger}
}

type executionLogResponse struct {
	Executions []domain.ExecutionRecord `json:"executions"`
}

type toggleResponse struct {
	IsRunning bool         `json:"is_running"`
	Stats     domain.Stats `json:"stats"`
}

// GetConfig returns the live tunables.
// GET /api/automation/config
func (h *AutomationHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Config())
}

// UpdateConfig applies a partial update. Fields left out keep their value.
// PATCH /api/automation/config
func (h *AutomationHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch domain.AutomationPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "patch contains no fields")
		return
	}

	cfg, err := h.engine.UpdateConfig(patch)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPatch) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: update automation config failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update automation config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// ResetConfig restores the default tunables.
// POST /api/automation/config/reset
func (h *AutomationHandler) ResetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ResetConfig())
}

// GetStats returns the running aggregate.
// GET /api/automation/stats
func (h *AutomationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// ResetStats zeroes the counters and clears the execution log.
// POST /api/automation/stats/reset
func (h *AutomationHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ResetStats())
}

// GetLog returns the most recent executions, newest first.
// GET /api/automation/log
func (h *AutomationHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	records := h.engine.Log()
	if records == nil {
		records = []domain.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, executionLogResponse{Executions: records})
}

// Toggle flips automatic scanning on or off.
// POST /api/automation/toggle
func (h *AutomationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	running := h.engine.ToggleAutomation()
	h.logger.InfoContext(r.Context(), "handler: automation toggled", slog.Bool("is_running", running))
	writeJSON(w, http.StatusOK, toggleResponse{IsRunning: running, Stats: h.engine.Stats()})
}

// Scan runs one scan cycle now, whether or not automation is running.
// Dispatched executions continue after the response is written.
// POST /api/automation/scan
func (h *AutomationHandler) Scan(w http.ResponseWriter, r *http.Request) {
	report := h.engine.ScanOnce(r.Context())
	writeJSON(w, http.StatusOK, report)
}
