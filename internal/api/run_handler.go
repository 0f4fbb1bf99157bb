package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

const runLookupTimeout = 3 * time.Second

// RunReader loads recorded runs.
type RunReader interface {
	LatestRun(ctx context.Context) (catalog.RunSummary, error)
}

// RunHandler serves run records.
type RunHandler struct {
	runs    RunReader
	running func() bool
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the run reader. running may be nil.
func NewRunHandler(runs RunReader, running func() bool, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		runs:    runs,
		running: running,
		timeout: runLookupTimeout,
		logger:  logger,
	}
}

// Latest handles GET /v1/runs/latest. It returns {"run": {...}, "in_progress":
// bool} on success, 404 before the first run, 503 without a reader, or 500 if
// the lookup fails.
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.runs.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "no runs recorded")
			return
		}
		h.logger.Error("load latest run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	inProgress := false
	if h.running != nil {
		inProgress = h.running()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":         toRunDTO(run),
		"in_progress": inProgress,
	})
}

type runDTO struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Categories int        `json:"categories"`
	Products   int        `json:"products"`
	Failures   int        `json:"failures"`
	Error      string     `json:"error,omitempty"`
	ReportURI  string     `json:"report_uri,omitempty"`
}

func toRunDTO(run catalog.RunSummary) runDTO {
	dto := runDTO{
		RunID:      run.RunID,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt,
		Categories: run.Categories,
		Products:   run.Products,
		Failures:   run.Failures,
		Error:      run.ErrorText,
		ReportURI:  run.ReportURI,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		dto.FinishedAt = &finished
	}
	return dto
}
