package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// RoundQueryService defines the read-side methods the round handler requires
// from the service layer. It is declared locally so the handler package does
// not depend on the concrete service implementation.
type RoundQueryService interface {
	GetCurrentRound(ctx context.Context) (*domain.Round, error)
	GetRound(ctx context.Context, id int64) (*domain.Round, error)
}

// RoundHandler serves round query endpoints.
type RoundHandler struct {
	rounds RoundQueryService
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler with the given service and logger.
func NewRoundHandler(rounds RoundQueryService, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{
		rounds: rounds,
		logger: logger,
	}
}

// GetCurrent returns the open round, or 404 if none is accepting bids.
// GET /api/rounds/current
func (h *RoundHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.GetCurrentRound(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// GetRound returns a round by id, open or archived.
// GET /api/rounds/{id}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}

	round, err := h.rounds.GetRound(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}
