package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fastprodman/wagerledger/internal/metrics"
	"github.com/fastprodman/wagerledger/internal/model"
)

// Recorder collects published events; safe for concurrent use.
type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)

	return r.err
}

func TestNew_ForBet(t *testing.T) {
	t.Parallel()

	updates := []model.AccountUpdate{{Tenant: 3, User: 1, Diff: -10, Balance: 90}}
	e := New(BetStaked, 3, updates).ForBet(7)

	if e.ID.String() == "" || e.At.IsZero() {
		t.Fatalf("id and timestamp must be set: %+v", e)
	}
	if e.BetID == nil || *e.BetID != 7 || e.Tenant != 3 || len(e.Updates) != 1 {
		t.Fatalf("unexpected event: %+v", e)
	}

	other := New(BetStaked, 3, nil)
	if other.ID == e.ID {
		t.Fatal("event ids must be unique")
	}
}

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	t.Parallel()

	errA := errors.New("a down")
	a := &recorder{err: errA}
	b := &recorder{}

	err := Multi{a, b}.Publish(t.Context(), New(TenantIncome, 1, nil))
	if !errors.Is(err, errA) {
		t.Fatalf("want joined error, got %v", err)
	}

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("both publishers must receive the event: a=%d b=%d", len(a.events), len(b.events))
	}
}

func TestEmit_CountsFailures(t *testing.T) {
	t.Parallel()

	failed := metrics.EventsPublished.WithLabelValues(string(TenantReset), "error")
	before := testutil.ToFloat64(failed)

	Emit(t.Context(), &recorder{err: errors.New("down")}, New(TenantReset, 1, nil))

	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Fatalf("want 1 failure counted, got %v", got)
	}
}
