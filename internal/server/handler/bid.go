package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/service"
)

// BidService defines the methods the bid handler requires from the service
// layer.
type BidService interface {
	PlaceBid(ctx context.Context, bettor string, roundID int64, side domain.Side, amount int64) (domain.Bid, error)
	GetBid(ctx context.Context, roundID, bidID int64) (service.BidDetail, error)
}

// BidHandler serves bid placement and lookup endpoints.
type BidHandler struct {
	bids   BidService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler with the given service and logger.
func NewBidHandler(bids BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{
		bids:   bids,
		logger: logger,
	}
}

// placeBidRequest is the body for POST /api/rounds/{id}/bids.
type placeBidRequest struct {
	Bettor string      `json:"bettor"`
	Side   domain.Side `json:"side"`
	Amount int64       `json:"amount"`
}

// placeBidResponse echoes the accepted bid along with its round.
type placeBidResponse struct {
	RoundID int64      `json:"round_id"`
	Bid     domain.Bid `json:"bid"`
}

// PlaceBid stakes an amount on one side of a round.
// POST /api/rounds/{id}/bids
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	roundID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}

	var req placeBidRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Bettor == "" {
		writeError(w, http.StatusBadRequest, "bettor is required")
		return
	}
	if !req.Side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be big or small")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), req.Bettor, roundID, req.Side, req.Amount)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeBidResponse{
		RoundID: roundID,
		Bid:     bid,
	})
}

// GetBid returns a single bid within a round.
// GET /api/rounds/{id}/bids/{bidId}
func (h *BidHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	roundID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}
	bidID, err := pathID(r, "bidId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bid id")
		return
	}

	detail, err := h.bids.GetBid(r.Context(), roundID, bidID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
