package api

import (
	"net/http"

	"github.com/fastprodman/wagerledger/internal/amount"
	"github.com/fastprodman/wagerledger/internal/services/bets"
)

type createBetRequest struct {
	BetID       uint64   `json:"betId"`
	Description string   `json:"description"`
	AuthorID    *uint64  `json:"authorId"`
	Outcomes    []string `json:"outcomes"`
}

type stakeRequest struct {
	TenantID uint64 `json:"tenantId"`
	UserID   uint64 `json:"userId"`
	Outcome  uint32 `json:"outcome"`
	// Amount is "N" for an absolute stake or "P%" for a share of the balance.
	Amount string `json:"amount"`
}

type resolveRequest struct {
	Outcome uint32 `json:"outcome"`
}

// CreateBetHandler handles POST /tenants/{tenantId}/bets
func (h *HandlerProvider) CreateBetHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "tenantId")
	if !ok {
		return
	}

	var req createBetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bet, err := h.bets.Create(r.Context(), bets.NewBet{
		ID:          req.BetID,
		Tenant:      ids[0],
		Description: req.Description,
		Author:      req.AuthorID,
		Outcomes:    req.Outcomes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// GetBetHandler handles GET /bets/{betId}
func (h *HandlerProvider) GetBetHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "betId")
	if !ok {
		return
	}

	bet, err := h.bets.Status(r.Context(), ids[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bet)
}

// ListOutcomesHandler handles GET /bets/{betId}/outcomes
func (h *HandlerProvider) ListOutcomesHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "betId")
	if !ok {
		return
	}

	outcomes, err := h.bets.Outcomes(r.Context(), ids[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type outcomeJSON struct {
		Index       uint32 `json:"index"`
		Description string `json:"description"`
	}

	out := make([]outcomeJSON, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, outcomeJSON{Index: o.Index, Description: o.Description})
	}

	writeJSON(w, http.StatusOK, map[string]any{"betId": ids[0], "outcomes": out})
}

// LockBetHandler handles POST /bets/{betId}/lock
func (h *HandlerProvider) LockBetHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "betId")
	if !ok {
		return
	}

	err := h.bets.Lock(r.Context(), ids[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

// StakeHandler handles POST /bets/{betId}/stakes
func (h *HandlerProvider) StakeHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "betId")
	if !ok {
		return
	}

	var req stakeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	spec, err := amount.Parse(req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.bets.Stake(r.Context(), bets.StakeRequest{
		BetID:   ids[0],
		Outcome: req.Outcome,
		Tenant:  req.TenantID,
		User:    req.UserID,
		Amount:  spec,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// AbortBetHandler handles POST /bets/{betId}/abort
func (h *HandlerProvider) AbortBetHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "betId")
	if !ok {
		return
	}

	updates, err := h.bets.Abort(r.Context(), ids[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updatesResponse{Updates: nonNil(updates)})
}

// ResolveBetHandler handles POST /bets/{betId}/resolve
func (h *HandlerProvider) ResolveBetHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "betId")
	if !ok {
		return
	}

	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.bets.Resolve(r.Context(), ids[0], req.Outcome)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res.Updates = nonNil(res.Updates)

	writeJSON(w, http.StatusOK, res)
}

