package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/services/accounts"
	"github.com/fastprodman/wagerledger/internal/store/memory"
)

type flakyIncome struct {
	tenants []uint64
	fail    uint64
	calls   atomic.Int32
}

func (f *flakyIncome) Tenants(context.Context) ([]uint64, error) { return f.tenants, nil }

func (f *flakyIncome) ApplyIncome(_ context.Context, tenant, amount uint64) ([]model.AccountUpdate, error) {
	f.calls.Add(1)

	if tenant == f.fail {
		return nil, model.WrapStore("add", errors.New("down"))
	}

	return []model.AccountUpdate{{Tenant: tenant, User: 1, Diff: int64(amount), Balance: amount}}, nil
}

func TestRunIncome_CreditsEveryTenant(t *testing.T) {
	t.Parallel()

	svc := accounts.New(memory.New())

	for _, acc := range []model.Account{{Tenant: 1, User: 1, Balance: 10}, {Tenant: 1, User: 2}, {Tenant: 2, User: 1, Balance: 5}} {
		_, err := svc.Create(t.Context(), acc.Tenant, acc.User, acc.Balance)
		if err != nil {
			t.Fatal(err)
		}
	}

	err := RunIncome(t.Context(), svc, 20)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []model.Account{{Tenant: 1, User: 1, Balance: 30}, {Tenant: 1, User: 2, Balance: 20}, {Tenant: 2, User: 1, Balance: 25}} {
		got, err := svc.Balance(t.Context(), want.Tenant, want.User)
		if err != nil || got != want.Balance {
			t.Errorf("%d/%d: want %d, got %d (%v)", want.Tenant, want.User, want.Balance, got, err)
		}
	}
}

func TestRunIncome_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	f := &flakyIncome{tenants: []uint64{1, 2, 3}, fail: 2}

	err := RunIncome(t.Context(), f, 5)
	if !errors.Is(err, model.ErrStore) {
		t.Fatalf("want store error, got %v", err)
	}

	if f.calls.Load() != 3 {
		t.Fatalf("want every tenant attempted, got %d", f.calls.Load())
	}
}

func TestScheduler_RunsIncomeJob(t *testing.T) {
	t.Parallel()

	f := &flakyIncome{tenants: []uint64{1}}
	s := New(t.Context())

	err := s.AddIncome("* * * * * *", f, 1)
	if err != nil {
		t.Fatal(err)
	}

	s.Start()

	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	deadline := time.Now().Add(3 * time.Second)
	for f.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("income job never ran")
		}

		time.Sleep(20 * time.Millisecond)
	}
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	t.Parallel()

	err := New(t.Context()).AddIncome("every tuesday", &flakyIncome{}, 1)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
