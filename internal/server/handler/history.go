package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// ExecutionReader reads persisted execution history.
type ExecutionReader interface {
	GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.ExecutionRecord, error)
}

// HedgeReader reads persisted hedge outcomes.
type HedgeReader interface {
	ListByExecution(ctx context.Context, executionID string) ([]domain.HedgeOutcome, error)
}

// HistoryHandler serves persisted execution history.
type HistoryHandler struct {
	execs  ExecutionReader
	hedges HedgeReader
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler. hedges may be nil.
func NewHistoryHandler(execs ExecutionReader, hedges HedgeReader, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{execs: execs, hedges: hedges, logger: logger}
}

type historyResponse struct {
	Executions []domain.ExecutionRecord `json:"executions"`
	Limit      int                      `json:"limit"`
	Offset     int                      `json:"offset"`
}

type executionDetailResponse struct {
	Execution domain.ExecutionRecord `json:"execution"`
	Hedges    []domain.HedgeOutcome  `json:"hedges"`
}

// List returns persisted executions, newest first.
// GET /api/automation/history?limit=50&offset=0&since=...&until=...
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.execs.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list execution history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list execution history")
		return
	}
	if records == nil {
		records = []domain.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Executions: records, Limit: opts.Limit, Offset: opts.Offset})
}

// Get returns one persisted execution with its hedge attempts.
// GET /api/automation/history/{id}
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.execs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get execution failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}

	hedges := []domain.HedgeOutcome{}
	if h.hedges != nil {
		list, err := h.hedges.ListByExecution(r.Context(), id)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: list hedge outcomes failed",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to list hedge outcomes")
			return
		}
		if list != nil {
			hedges = list
		}
	}
	writeJSON(w, http.StatusOK, executionDetailResponse{Execution: rec, Hedges: hedges})
}
