package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fastprodman/wagerledger/internal/model"
)

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("stake: %w", model.ErrBetLocked), "bet_locked"},
		{model.WrapStore("commit", errors.New("eof")), "store"},
		{fmt.Errorf("x: %w", model.ErrNotFound), "not_found"},
		{errors.New("boom"), "other"},
	}

	for _, tc := range tests {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v): want %q, got %q", tc.err, tc.want, got)
		}
	}
}

func TestObserveError(t *testing.T) {
	t.Parallel()

	c := OperationErrors.WithLabelValues("metrics_test", "parse")
	before := testutil.ToFloat64(c)

	ObserveError("metrics_test", fmt.Errorf("amount: %w", model.ErrParse))
	ObserveError("metrics_test", nil)

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("want 1 increment, got %v", got)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/metrics-test/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	c := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics-test/{id}", "418")
	before := testutil.ToFloat64(c)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics-test/42", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status: %d", rec.Code)
	}

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("want 1 request recorded under route pattern, got %v", got)
	}
}
