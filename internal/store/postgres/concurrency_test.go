package postgres

import (
	"errors"
	"sync"
	"testing"

	"github.com/fastprodman/wagerledger/internal/amount"
	"github.com/fastprodman/wagerledger/internal/infra/pgtestutil"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/services/accounts"
	"github.com/fastprodman/wagerledger/internal/services/bets"
)

func newLedger(t *testing.T) (*accounts.Service, *bets.Engine) {
	t.Helper()

	st := New(pgtestutil.NewTestDB(t))
	acc := accounts.New(st)

	return acc, bets.New(st, acc)
}

// runTogether starts fns at once and waits for all of them.
func runTogether(fns ...func()) {
	var wg sync.WaitGroup

	start := make(chan struct{})

	for _, fn := range fns {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start
			fn()
		}()
	}

	close(start)
	wg.Wait()
}

func TestStake_ConcurrentOutcomesOfOneUser(t *testing.T) {
	t.Parallel()

	acc, engine := newLedger(t)
	ctx := t.Context()

	_, err := acc.Create(ctx, 1, 1, 1000)
	if err != nil {
		t.Fatal(err)
	}

	for round := range 20 {
		betID := uint64(round + 1)

		_, err = engine.Create(ctx, bets.NewBet{ID: betID, Tenant: 1, Description: "d", Outcomes: []string{"a", "b"}})
		if err != nil {
			t.Fatal(err)
		}

		errs := make([]error, 2)
		stake := func(outcome uint32) func() {
			return func() {
				_, errs[outcome] = engine.Stake(ctx, bets.StakeRequest{
					BetID: betID, Outcome: outcome, Tenant: 1, User: 1, Amount: amount.Absolute(1),
				})
			}
		}

		runTogether(stake(0), stake(1))

		ok := 0

		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case !errors.Is(err, model.ErrMultipleOutcomeStake):
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}

		if ok != 1 {
			t.Fatalf("round %d: %d stakes succeeded, want exactly 1 (%v)", round, ok, errs)
		}

		bet, err := engine.Status(ctx, betID)
		if err != nil {
			t.Fatal(err)
		}

		held := 0

		for _, o := range bet.Outcomes {
			held += len(o.Wagers)
		}

		if held != 1 {
			t.Fatalf("round %d: user holds %d outcomes", round, held)
		}
	}

	got, err := acc.Balance(ctx, 1, 1)
	if err != nil || got != 980 {
		t.Fatalf("balance: got %d err %v, want 980", got, err)
	}
}

func TestResetAll_ConcurrentStakesLeaveNoLiveWagers(t *testing.T) {
	t.Parallel()

	const users = 8

	acc, engine := newLedger(t)
	ctx := t.Context()

	for u := uint64(1); u <= users; u++ {
		_, err := acc.Create(ctx, 1, u, 100)
		if err != nil {
			t.Fatal(err)
		}
	}

	for round := range 10 {
		betID := uint64(round + 1)

		_, err := engine.Create(ctx, bets.NewBet{ID: betID, Tenant: 1, Description: "d", Outcomes: []string{"a", "b"}})
		if err != nil {
			t.Fatal(err)
		}

		var (
			mu   sync.Mutex
			errs []error
		)

		record := func(err error) {
			mu.Lock()
			defer mu.Unlock()

			errs = append(errs, err)
		}

		fns := []func(){func() {
			_, err := acc.ResetAll(ctx, 1, 100)
			record(err)
		}}

		for u := uint64(1); u <= users; u++ {
			fns = append(fns, func() {
				_, err := engine.Stake(ctx, bets.StakeRequest{
					BetID: betID, Outcome: uint32(u % 2), Tenant: 1, User: u, Amount: amount.Absolute(10),
				})
				record(err)
			})
		}

		runTogether(fns...)

		for _, err := range errs {
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}

		list, err := acc.List(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}

		for _, a := range list {
			if a.Balance != 100 || a.InBet != 0 {
				t.Fatalf("round %d: user %d has balance %d and %d in bets after reset", round, a.User, a.Balance, a.InBet)
			}
		}

		_, err = engine.Stake(ctx, bets.StakeRequest{
			BetID: betID, Tenant: 1, User: 1, Amount: amount.Absolute(1),
		})
		if !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("round %d: stake on discarded bet: %v", round, err)
		}
	}
}
