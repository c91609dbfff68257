package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/oddsworks/bigsmall/internal/domain"
)

// AdminService defines the authority-only methods the admin handler requires
// from the service layer.
type AdminService interface {
	CreateRound(ctx context.Context, actor string) (*domain.Round, error)
	EqualizeBids(ctx context.Context, actor string, roundID int64) (*domain.Round, error)
	ProcessRound(ctx context.Context, actor string, d1, d2, d3 int) (*domain.Round, error)
	SetFeePercent(ctx context.Context, actor string, percent int64) error
	TransferAuthority(ctx context.Context, actor, newAuthority string) error
	Withdraw(ctx context.Context, actor, receiver string, amount int64) error
}

// AdminHandler serves the authority's lifecycle and treasury endpoints. All of
// its routes sit behind token authentication; requests act as the configured
// authority account.
type AdminHandler struct {
	svc    AdminService
	logger *slog.Logger

	mu    sync.RWMutex
	actor string
}

// NewAdminHandler creates an AdminHandler acting as the given authority.
func NewAdminHandler(svc AdminService, authority string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:    svc,
		actor:  authority,
		logger: logger,
	}
}

func (h *AdminHandler) authority() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.actor
}

// CreateRound opens a new betting round.
// POST /api/rounds
func (h *AdminHandler) CreateRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.svc.CreateRound(r.Context(), h.authority())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// Equalize closes bidding on a round and refunds the surplus side.
// POST /api/rounds/{id}/equalize
func (h *AdminHandler) Equalize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round id")
		return
	}

	round, err := h.svc.EqualizeBids(r.Context(), h.authority(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// processRequest is the body for POST /api/rounds/process.
type processRequest struct {
	Dice [3]int `json:"dice"`
}

// Process settles the equalized round with the given dice outcome and pays
// the winning side.
// POST /api/rounds/process
func (h *AdminHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	round, err := h.svc.ProcessRound(r.Context(), h.authority(), req.Dice[0], req.Dice[1], req.Dice[2])
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// setFeeRequest is the body for PUT /api/admin/fee.
type setFeeRequest struct {
	FeePercent int64 `json:"fee_percent"`
}

// SetFee updates the fee taken from future bids.
// PUT /api/admin/fee
func (h *AdminHandler) SetFee(w http.ResponseWriter, r *http.Request) {
	var req setFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SetFeePercent(r.Context(), h.authority(), req.FeePercent); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"fee_percent": req.FeePercent})
}

// transferAuthorityRequest is the body for POST /api/admin/authority.
type transferAuthorityRequest struct {
	Authority string `json:"authority"`
}

// TransferAuthority hands control of the engine to a new authority account.
// Subsequent admin requests act as the new authority.
// POST /api/admin/authority
func (h *AdminHandler) TransferAuthority(w http.ResponseWriter, r *http.Request) {
	var req transferAuthorityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.TransferAuthority(r.Context(), h.authority(), req.Authority); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.mu.Lock()
	h.actor = req.Authority
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"authority": req.Authority})
}

// withdrawRequest is the body for POST /api/admin/withdraw.
type withdrawRequest struct {
	Receiver string `json:"receiver"`
	Amount   int64  `json:"amount"`
}

// Withdraw pays retained treasury funds out to a receiver account.
// POST /api/admin/withdraw
func (h *AdminHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Receiver == "" {
		writeError(w, http.StatusBadRequest, "receiver is required")
		return
	}

	if err := h.svc.Withdraw(r.Context(), h.authority(), req.Receiver, req.Amount); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"receiver": req.Receiver,
		"amount":   req.Amount,
	})
}
