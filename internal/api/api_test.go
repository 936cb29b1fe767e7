package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fastprodman/wagerledger/internal/events"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/services/accounts"
	"github.com/fastprodman/wagerledger/internal/services/bets"
	"github.com/fastprodman/wagerledger/internal/store/memory"
)

func newTestRouter(t *testing.T, pub events.Publisher, live http.Handler) http.Handler {
	t.Helper()

	st := memory.New()
	acc := accounts.New(st, accounts.WithPublisher(pub))

	return NewRouter(Deps{
		Accounts: acc,
		Bets:     bets.New(st, acc),
		Health:   st.Ping,
		Live:     live,
	})
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer

	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}

	return rec.Code, out
}

func mustDo(t *testing.T, h http.Handler, method, path string, body any, want int) map[string]any {
	t.Helper()

	code, out := do(t, h, method, path, body)
	if code != want {
		t.Fatalf("%s %s: want %d, got %d (%v)", method, path, want, code, out)
	}

	return out
}

func balance(t *testing.T, h http.Handler, user int) float64 {
	t.Helper()

	out := mustDo(t, h, http.MethodGet, fmt.Sprintf("/tenants/1/accounts/%d/balance", user), nil, http.StatusOK)

	return out["balance"].(float64)
}

func TestAPI_BetFlow(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, events.Nop{}, nil)

	for user := 1; user <= 3; user++ {
		mustDo(t, h, http.MethodPost, "/tenants/1/accounts", map[string]any{"userId": user, "balance": 100}, http.StatusCreated)
	}

	mustDo(t, h, http.MethodPost, "/tenants/1/bets", map[string]any{
		"betId": 9, "description": "who wins", "outcomes": []string{"red", "blue"},
	}, http.StatusCreated)

	for _, s := range []map[string]any{
		{"tenantId": 1, "userId": 1, "outcome": 0, "amount": "10"},
		{"tenantId": 1, "userId": 2, "outcome": 1, "amount": "40"},
		{"tenantId": 1, "userId": 3, "outcome": 0, "amount": "50%"},
	} {
		mustDo(t, h, http.MethodPost, "/bets/9/stakes", s, http.StatusOK)
	}

	list := mustDo(t, h, http.MethodGet, "/tenants/1/accounts", nil, http.StatusOK)
	accs := list["accounts"].([]any)
	if first := accs[0].(map[string]any); first["balance"].(float64) != 90 || first["inBet"].(float64) != 10 {
		t.Fatalf("account list: %v", accs)
	}

	outs := mustDo(t, h, http.MethodGet, "/bets/9/outcomes", nil, http.StatusOK)
	if len(outs["outcomes"].([]any)) != 2 {
		t.Fatalf("outcomes: %v", outs)
	}

	mustDo(t, h, http.MethodPost, "/bets/9/lock", nil, http.StatusOK)

	code, _ := do(t, h, http.MethodPost, "/bets/9/stakes", map[string]any{"tenantId": 1, "userId": 1, "amount": "1"})
	if code != http.StatusConflict {
		t.Fatalf("stake on locked bet: want 409, got %d", code)
	}

	status := mustDo(t, h, http.MethodGet, "/bets/9", nil, http.StatusOK)
	if status["isOpen"].(bool) || status["description"] != "who wins" {
		t.Fatalf("status: %v", status)
	}

	res := mustDo(t, h, http.MethodPost, "/bets/9/resolve", map[string]any{"outcome": 0}, http.StatusOK)
	if res["pool"].(float64) != 100 || len(res["updates"].([]any)) != 2 {
		t.Fatalf("resolution: %v", res)
	}

	for user, want := range map[int]float64{1: 107, 2: 60, 3: 133} {
		if got := balance(t, h, user); got != want {
			t.Errorf("user %d: want %v, got %v", user, want, got)
		}
	}

	mustDo(t, h, http.MethodGet, "/bets/9", nil, http.StatusNotFound)
}

func TestAPI_AccountOperations(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, events.Nop{}, nil)

	mustDo(t, h, http.MethodPost, "/tenants/1/accounts", map[string]any{"userId": 1, "balance": 50}, http.StatusCreated)
	mustDo(t, h, http.MethodPost, "/tenants/1/accounts", map[string]any{"userId": 1, "balance": 50}, http.StatusConflict)

	up := mustDo(t, h, http.MethodPost, "/tenants/1/accounts/1/delta", map[string]any{"delta": -20}, http.StatusOK)
	if up["balance"].(float64) != 30 || up["diff"].(float64) != -20 {
		t.Fatalf("delta: %v", up)
	}

	mustDo(t, h, http.MethodPost, "/tenants/1/accounts/1/delta", map[string]any{"delta": -31}, http.StatusConflict)

	inc := mustDo(t, h, http.MethodPost, "/tenants/1/income", map[string]any{"amount": 5}, http.StatusOK)
	if len(inc["updates"].([]any)) != 1 || balance(t, h, 1) != 35 {
		t.Fatalf("income: %v", inc)
	}

	mustDo(t, h, http.MethodPost, "/tenants/1/reset", map[string]any{"balance": 100}, http.StatusOK)

	if got := balance(t, h, 1); got != 100 {
		t.Fatalf("after reset: %v", got)
	}

	reset := mustDo(t, h, http.MethodPost, "/tenants/7/reset", map[string]any{"balance": 1}, http.StatusOK)
	if updates := reset["updates"].([]any); len(updates) != 0 {
		t.Fatalf("empty tenant reset: %v", updates)
	}

	mustDo(t, h, http.MethodGet, "/tenants/1/accounts/2/balance", nil, http.StatusNotFound)
}

func TestAPI_BadRequests(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, events.Nop{}, nil)
	mustDo(t, h, http.MethodPost, "/tenants/1/accounts", map[string]any{"userId": 1, "balance": 50}, http.StatusCreated)
	mustDo(t, h, http.MethodPost, "/tenants/1/bets", map[string]any{
		"betId": 1, "description": "d", "outcomes": []string{"a", "b"},
	}, http.StatusCreated)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"non-numeric tenant", http.MethodGet, "/tenants/abc/accounts", nil, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/tenants/1/accounts", nil, http.StatusBadRequest},
		{"malformed JSON", http.MethodPost, "/tenants/1/accounts", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/tenants/1/accounts", map[string]any{"userId": 2, "bonus": 1}, http.StatusBadRequest},
		{"single outcome", http.MethodPost, "/tenants/1/bets", map[string]any{"betId": 2, "description": "d", "outcomes": []string{"a"}}, http.StatusBadRequest},
		{"malformed amount", http.MethodPost, "/bets/1/stakes", map[string]any{"tenantId": 1, "userId": 1, "amount": "ten"}, http.StatusBadRequest},
		{"fraction above 100%", http.MethodPost, "/bets/1/stakes", map[string]any{"tenantId": 1, "userId": 1, "amount": "150%"}, http.StatusBadRequest},
		{"stake too large", http.MethodPost, "/bets/1/stakes", map[string]any{"tenantId": 1, "userId": 1, "amount": "51"}, http.StatusConflict},
		{"unknown bet", http.MethodPost, "/bets/2/lock", nil, http.StatusNotFound},
		{"unknown winning outcome", http.MethodPost, "/bets/1/resolve", map[string]any{"outcome": 4}, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, out := do(t, h, tc.method, tc.path, tc.body)
			if code != tc.want {
				t.Fatalf("want %d, got %d (%v)", tc.want, code, out)
			}

			if out["error"] == nil {
				t.Fatalf("error body missing: %v", out)
			}
		})
	}
}

func TestAPI_MultipleOutcomeStakeConflict(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, events.Nop{}, nil)
	mustDo(t, h, http.MethodPost, "/tenants/1/accounts", map[string]any{"userId": 1, "balance": 50}, http.StatusCreated)
	mustDo(t, h, http.MethodPost, "/tenants/1/bets", map[string]any{
		"betId": 1, "description": "d", "outcomes": []string{"a", "b"},
	}, http.StatusCreated)

	mustDo(t, h, http.MethodPost, "/bets/1/stakes", map[string]any{"tenantId": 1, "userId": 1, "outcome": 0, "amount": "5"}, http.StatusOK)
	mustDo(t, h, http.MethodPost, "/bets/1/stakes", map[string]any{"tenantId": 1, "userId": 1, "outcome": 1, "amount": "5"}, http.StatusConflict)

	aborted := mustDo(t, h, http.MethodPost, "/bets/1/abort", nil, http.StatusOK)
	if updates := aborted["updates"].([]any); len(updates) != 1 {
		t.Fatalf("abort: %v", aborted)
	}

	if got := balance(t, h, 1); got != 50 {
		t.Fatalf("after abort: %v", got)
	}
}

func TestAPI_Health(t *testing.T) {
	t.Parallel()

	ok := NewRouter(Deps{Health: func(context.Context) error { return nil }})
	mustDo(t, ok, http.MethodGet, "/healthz", nil, http.StatusOK)

	down := NewRouter(Deps{Health: func(context.Context) error { return model.WrapStore("ping", errors.New("refused")) }})
	mustDo(t, down, http.MethodGet, "/healthz", nil, http.StatusServiceUnavailable)

	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "wagerledger_") {
		t.Fatalf("metrics endpoint: %d", rec.Code)
	}
}

func TestAPI_LiveEvents(t *testing.T) {
	t.Parallel()

	hub := events.NewHub()
	srv := httptest.NewServer(newTestRouter(t, hub, hub))

	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })

	conn, _, err := websocket.DefaultDialer.DialContext(t.Context(), "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ws client never registered")
		}

		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/tenants/4/accounts", "application/json", strings.NewReader(`{"userId":1,"balance":10}`))
	if err != nil {
		t.Fatal(err)
	}

	_ = resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var e events.Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatal(err)
	}

	if e.Type != events.AccountCreated || e.Tenant != 4 || len(e.Updates) != 1 {
		t.Fatalf("event: %+v", e)
	}
}
