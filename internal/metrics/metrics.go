// Package metrics provides Prometheus instrumentation for the ledger.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fastprodman/wagerledger/internal/model"
)

var (
	// StakesTotal counts accepted stakes.
	StakesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_stakes_total",
		Help: "Total number of accepted stakes",
	})

	// StakedCoins is the cumulative amount escrowed by stakes.
	StakedCoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_staked_coins_total",
		Help: "Coins escrowed by stakes",
	})

	ResolutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_resolutions_total",
		Help: "Total number of resolved bets",
	})

	AbortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_aborts_total",
		Help: "Total number of aborted bets",
	})

	// PaidOutCoins counts coins credited by resolutions.
	PaidOutCoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_paid_out_coins_total",
		Help: "Coins credited to winners",
	})

	// RefundedCoins counts coins returned by aborts.
	RefundedCoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_refunded_coins_total",
		Help: "Coins refunded by aborted bets",
	})

	// ForfeitedCoins counts pools resolved with nobody on the winning outcome.
	ForfeitedCoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_forfeited_coins_total",
		Help: "Pool coins left unclaimed at resolution",
	})

	// PurgedBets counts tombstoned bets removed at start-up.
	PurgedBets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_purged_bets_total",
		Help: "Tombstoned bets physically removed",
	})

	// OperationErrors counts failed service operations by error kind.
	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerledger_operation_errors_total",
		Help: "Failed ledger operations",
	}, []string{"op", "kind"})

	// EventsPublished counts post-commit events by type and result.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerledger_events_published_total",
		Help: "Ledger events handed to publishers",
	}, []string{"type", "result"})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerledger_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wagerledger_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{model.ErrNotFound, "not_found"},
	{model.ErrInsufficientFunds, "insufficient_funds"},
	{model.ErrBetLocked, "bet_locked"},
	{model.ErrAlreadyExists, "already_exists"},
	{model.ErrMultipleOutcomeStake, "multiple_outcome_stake"},
	{model.ErrParse, "parse"},
	{model.ErrInvalidBet, "invalid_bet"},
	{model.ErrStore, "store"},
}

// ErrorKind returns the label used for err in OperationErrors.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return "other"
}

// ObserveError records a failed op. A nil err is ignored.
func ObserveError(op string, err error) {
	if err == nil {
		return
	}

	OperationErrors.WithLabelValues(op, ErrorKind(err)).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics labeled by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is needed for WebSocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}

	w.status = http.StatusSwitchingProtocols

	return h.Hijack()
}
