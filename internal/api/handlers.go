package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/services/bets"
)

type AccountService interface {
	Create(ctx context.Context, tenant, user, initial uint64) (model.AccountUpdate, error)
	Balance(ctx context.Context, tenant, user uint64) (uint64, error)
	ApplyDelta(ctx context.Context, tenant, user uint64, delta int64) (model.AccountUpdate, error)
	ResetAll(ctx context.Context, tenant, balance uint64) ([]model.AccountUpdate, error)
	ApplyIncome(ctx context.Context, tenant, amount uint64) ([]model.AccountUpdate, error)
	List(ctx context.Context, tenant uint64) ([]model.AccountStatus, error)
}

type BetEngine interface {
	Create(ctx context.Context, nb bets.NewBet) (model.Bet, error)
	Outcomes(ctx context.Context, betID uint64) ([]model.Outcome, error)
	Status(ctx context.Context, betID uint64) (model.Bet, error)
	Lock(ctx context.Context, betID uint64) error
	Stake(ctx context.Context, req bets.StakeRequest) (bets.StakeResult, error)
	Abort(ctx context.Context, betID uint64) ([]model.AccountUpdate, error)
	Resolve(ctx context.Context, betID uint64, winning uint32) (bets.Resolution, error)
}

// HandlerProvider exposes the ledger services as HTTP handlers.
type HandlerProvider struct {
	accounts AccountService
	bets     BetEngine
}

func NewHandler(accounts AccountService, engine BetEngine) *HandlerProvider {
	return &HandlerProvider{accounts: accounts, bets: engine}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps ledger error kinds to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, model.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, model.ErrBetLocked):
		writeError(w, http.StatusConflict, "bet is locked")
	case errors.Is(err, model.ErrMultipleOutcomeStake):
		writeError(w, http.StatusConflict, "already staked on another outcome")
	case errors.Is(err, model.ErrParse), errors.Is(err, model.ErrInvalidBet):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIDParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}

	return id, nil
}

// decodeBody reads a JSON body of at most 1MB, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")

		return false
	}

	return true
}

// pathIDs parses the named uint path params in order, writing 400 on failure.
func pathIDs(w http.ResponseWriter, r *http.Request, names ...string) ([]uint64, bool) {
	ids := make([]uint64, len(names))

	for i, name := range names {
		id, err := parseIDParam(r, name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}

		ids[i] = id
	}

	return ids, true
}
