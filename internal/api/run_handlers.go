package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/store"
)

const runTimeout = 3 * time.Second

// RunHandler exposes runs mirrored into the check repository.
type RunHandler struct {
	repo    store.CheckRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the repository and logger. repo may be nil when the
// mirror is disabled.
func NewRunHandler(repo store.CheckRepository, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{repo: repo, timeout: runTimeout, logger: logger}
}

// GetRun handles GET /v1/runs/{run_id}. It returns {"run": {...}} on success,
// 400 for malformed IDs, 404 for unknown runs, 503 when the mirror is
// disabled, or 500 otherwise.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "run_id"))
	if raw == "" {
		return uuid.Nil, errors.New("run_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run_id: %w", err)
	}
	return id, nil
}

type runDTO struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   *string `json:"finished_at,omitempty"`
	Total        *int    `json:"total"`
	Checked      int     `json:"checked"`
	Available    int     `json:"available"`
	Taken        int     `json:"taken"`
	Errors       int     `json:"errors"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

func toRunDTO(run store.Run) runDTO {
	dto := runDTO{
		ID:           run.ID.String(),
		Status:       string(run.Status),
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		Checked:      run.Counts.Checked,
		Available:    run.Counts.Available,
		Taken:        run.Counts.Taken,
		Errors:       run.Counts.Errors,
		ErrorMessage: run.ErrorMessage,
	}
	if run.Total >= 0 {
		total := run.Total
		dto.Total = &total
	}
	if run.FinishedAt != nil {
		ts := run.FinishedAt.UTC().Format(time.RFC3339)
		dto.FinishedAt = &ts
	}
	return dto
}
