package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fastprodman/wagerledger/internal/metrics"
)

// Deps are the collaborators of the router. Health and Live are optional.
type Deps struct {
	Accounts AccountService
	Bets     BetEngine
	// Health reports whether the ledger store is reachable.
	Health func(ctx context.Context) error
	// Live streams ledger events, e.g. the WebSocket hub.
	Live http.Handler
}

// NewRouter registers all API endpoints on a chi router.
func NewRouter(d Deps) http.Handler {
	h := NewHandler(d.Accounts, d.Bets)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			err := d.Health(r.Context())
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if d.Live != nil {
		r.Method(http.MethodGet, "/ws", d.Live)
	}

	r.Route("/tenants/{tenantId}", func(r chi.Router) {
		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/accounts", h.ListAccountsHandler)
		r.Get("/accounts/{userId}/balance", h.GetBalanceHandler)
		r.Post("/accounts/{userId}/delta", h.ApplyDeltaHandler)
		r.Post("/reset", h.ResetHandler)
		r.Post("/income", h.IncomeHandler)
		r.Post("/bets", h.CreateBetHandler)
	})

	r.Route("/bets/{betId}", func(r chi.Router) {
		r.Get("/", h.GetBetHandler)
		r.Get("/outcomes", h.ListOutcomesHandler)
		r.Post("/lock", h.LockBetHandler)
		r.Post("/stakes", h.StakeHandler)
		r.Post("/abort", h.AbortBetHandler)
		r.Post("/resolve", h.ResolveBetHandler)
	})

	return r
}
