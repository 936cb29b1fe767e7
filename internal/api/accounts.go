package api

import (
	"net/http"

	"github.com/fastprodman/wagerledger/internal/model"
)

type createAccountRequest struct {
	UserID  uint64 `json:"userId"`
	Balance uint64 `json:"balance"`
}

type deltaRequest struct {
	Delta int64 `json:"delta"`
}

type balanceRequest struct {
	Balance uint64 `json:"balance"`
}

type incomeRequest struct {
	Amount uint64 `json:"amount"`
}

type updatesResponse struct {
	Updates []model.AccountUpdate `json:"updates"`
}

// CreateAccountHandler handles POST /tenants/{tenantId}/accounts
func (h *HandlerProvider) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "tenantId")
	if !ok {
		return
	}

	var req createAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	up, err := h.accounts.Create(r.Context(), ids[0], req.UserID, req.Balance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, up)
}

// ListAccountsHandler handles GET /tenants/{tenantId}/accounts
func (h *HandlerProvider) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "tenantId")
	if !ok {
		return
	}

	list, err := h.accounts.List(r.Context(), ids[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tenantId": ids[0], "accounts": nonNil(list)})
}

// GetBalanceHandler handles GET /tenants/{tenantId}/accounts/{userId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "tenantId", "userId")
	if !ok {
		return
	}

	balance, err := h.accounts.Balance(r.Context(), ids[0], ids[1])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{"tenantId": ids[0], "userId": ids[1], "balance": balance})
}

// ApplyDeltaHandler handles POST /tenants/{tenantId}/accounts/{userId}/delta
func (h *HandlerProvider) ApplyDeltaHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "tenantId", "userId")
	if !ok {
		return
	}

	var req deltaRequest
	if !decodeBody(w, r, &req) {
		return
	}

	up, err := h.accounts.ApplyDelta(r.Context(), ids[0], ids[1], req.Delta)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, up)
}

// ResetHandler handles POST /tenants/{tenantId}/reset
func (h *HandlerProvider) ResetHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "tenantId")
	if !ok {
		return
	}

	var req balanceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updates, err := h.accounts.ResetAll(r.Context(), ids[0], req.Balance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updatesResponse{Updates: nonNil(updates)})
}

// IncomeHandler handles POST /tenants/{tenantId}/income
func (h *HandlerProvider) IncomeHandler(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "tenantId")
	if !ok {
		return
	}

	var req incomeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updates, err := h.accounts.ApplyIncome(r.Context(), ids[0], req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updatesResponse{Updates: nonNil(updates)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
