package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oddsworks/bigsmall/internal/service"
)

// StatusService defines the aggregate read methods the status handler
// requires from the service layer.
type StatusService interface {
	Stats(ctx context.Context) (service.Stats, error)
	GetBalance(ctx context.Context) (service.Balance, error)
}

// StatusHandler serves engine-wide counters and the treasury position.
type StatusHandler struct {
	svc    StatusService
	mode   string
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler with the given service, run mode
// and logger.
func NewStatusHandler(svc StatusService, mode string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		svc:    svc,
		mode:   mode,
		logger: logger,
	}
}

// statsResponse wraps the counters with the run mode for dashboards.
type statsResponse struct {
	Mode string `json:"mode"`
	service.Stats
}

// GetStats responds with round counters and the engine run mode.
// GET /api/stats
func (h *StatusHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Mode:  h.mode,
		Stats: stats,
	})
}

// GetBalance responds with the treasury totals, split into stake held for the
// open round and the retained remainder.
// GET /api/balance
func (h *StatusHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetBalance(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
