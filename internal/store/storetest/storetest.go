// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

// Run exercises a store created fresh by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAccountDuplicate", testInsertAccountDuplicate},
		{"BalanceMissing", testBalanceMissing},
		{"AddBalance", testAddBalance},
		{"AddBalanceOverdraftRollsBack", testAddBalanceOverdraft},
		{"CreditOverflowIsRejected", testCreditOverflow},
		{"TenantBalances", testTenantBalances},
		{"AccountsAndTenants", testAccountsAndTenants},
		{"InsertBetAndOutcomes", testInsertBetAndOutcomes},
		{"InsertBetDuplicate", testInsertBetDuplicate},
		{"SetOpen", testSetOpen},
		{"AddWagerAccumulates", testAddWagerAccumulates},
		{"AddWagerUnknownOutcome", testAddWagerUnknownOutcome},
		{"TombstoneHidesTenantWagers", testTombstone},
		{"TombstoneTenantBets", testTombstoneTenantBets},
		{"PurgeTombstoned", testPurgeTombstoned},
		{"CallbackErrorRollsBack", testRollback},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.fn(t, newStore(t))
		})
	}
}

func inTx(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) error {
	t.Helper()

	ctx := t.Context()

	return s.InTx(ctx, func(tx store.Tx) error { return fn(ctx, tx) })
}

func mustTx(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()

	err := inTx(t, s, fn)
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()

	if !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func seedAccounts(t *testing.T, s store.Store, tenant uint64, balances map[uint64]uint64) {
	t.Helper()

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		for user, b := range balances {
			err := tx.InsertAccount(ctx, model.Account{Tenant: tenant, User: user, Balance: b})
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func seedBet(t *testing.T, s store.Store, id, tenant uint64, outcomes ...string) {
	t.Helper()

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		err := tx.InsertBet(ctx, model.BetInfo{ID: id, Tenant: tenant, Description: "bet", Open: true})
		if err != nil {
			return err
		}

		for i, d := range outcomes {
			err = tx.InsertOutcome(ctx, id, uint32(i), d)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func balanceOf(t *testing.T, s store.Store, tenant, user uint64) uint64 {
	t.Helper()

	var b uint64

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = tx.Balance(ctx, tenant, user)

		return err
	})

	return b
}

func testInsertAccountDuplicate(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{7: 100})

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertAccount(ctx, model.Account{Tenant: 1, User: 7, Balance: 5})
	})
	expectErr(t, err, model.ErrAlreadyExists)

	if got := balanceOf(t, s, 1, 7); got != 100 {
		t.Fatalf("balance changed to %d", got)
	}
}

func testBalanceMissing(t *testing.T, s store.Store) {
	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Balance(ctx, 1, 1)
		return err
	})
	expectErr(t, err, model.ErrNotFound)

	err = inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddBalance(ctx, 1, 1, 10)
		return err
	})
	expectErr(t, err, model.ErrNotFound)
}

func testAddBalance(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{7: 100})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		up, err := tx.AddBalance(ctx, 1, 7, -40)
		if err != nil {
			return err
		}

		want := model.AccountUpdate{Tenant: 1, User: 7, Diff: -40, Balance: 60}
		if up != want {
			t.Errorf("update: want %+v, got %+v", want, up)
		}

		up, err = tx.AddBalance(ctx, 1, 7, 15)
		if err != nil {
			return err
		}

		if up.Balance != 75 || up.Diff != 15 {
			t.Errorf("credit: got %+v", up)
		}

		return nil
	})

	if got := balanceOf(t, s, 1, 7); got != 75 {
		t.Fatalf("balance: want 75, got %d", got)
	}
}

func testAddBalanceOverdraft(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{7: 100})

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddBalance(ctx, 1, 7, -30)
		if err != nil {
			return err
		}

		_, err = tx.AddBalance(ctx, 1, 7, -71)

		return err
	})
	expectErr(t, err, model.ErrInsufficientFunds)

	if got := balanceOf(t, s, 1, 7); got != 100 {
		t.Fatalf("balance after rollback: want 100, got %d", got)
	}
}

func testCreditOverflow(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{1: math.MaxInt64 - 5, 2: 10})

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddBalance(ctx, 1, 1, 6)
		return err
	})
	expectErr(t, err, model.ErrParse)

	err = inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddTenantBalances(ctx, 1, 6)
		return err
	})
	expectErr(t, err, model.ErrParse)

	if got := balanceOf(t, s, 1, 1); got != math.MaxInt64-5 {
		t.Fatalf("balance after rejected credit: %d", got)
	}

	if got := balanceOf(t, s, 1, 2); got != 10 {
		t.Fatalf("income must roll back for every account, got %d", got)
	}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		up, err := tx.AddBalance(ctx, 1, 1, 5)
		if err == nil && up.Balance != math.MaxInt64 {
			t.Errorf("credit up to the limit: %+v", up)
		}

		return err
	})
}

func testTenantBalances(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{1: 10, 2: 250})
	seedAccounts(t, s, 2, map[uint64]uint64{1: 5})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		ups, err := tx.SetTenantBalances(ctx, 1, 100)
		if err != nil {
			return err
		}

		want := []model.AccountUpdate{
			{Tenant: 1, User: 1, Diff: 90, Balance: 100},
			{Tenant: 1, User: 2, Diff: -150, Balance: 100},
		}
		assertUpdates(t, want, ups)

		ups, err = tx.AddTenantBalances(ctx, 1, 7)
		if err != nil {
			return err
		}

		want = []model.AccountUpdate{
			{Tenant: 1, User: 1, Diff: 7, Balance: 107},
			{Tenant: 1, User: 2, Diff: 7, Balance: 107},
		}
		assertUpdates(t, want, ups)

		ups, err = tx.AddTenantBalances(ctx, 9, 7)
		if err != nil {
			return err
		}

		if len(ups) != 0 {
			t.Errorf("unknown tenant: want no updates, got %+v", ups)
		}

		return nil
	})

	if got := balanceOf(t, s, 2, 1); got != 5 {
		t.Fatalf("other tenant touched: %d", got)
	}
}

func testAccountsAndTenants(t *testing.T, s store.Store) {
	seedAccounts(t, s, 3, map[uint64]uint64{9: 1, 2: 2})
	seedAccounts(t, s, 1, map[uint64]uint64{4: 4})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		accs, err := tx.Accounts(ctx, 3)
		if err != nil {
			return err
		}

		if len(accs) != 2 || accs[0].User != 2 || accs[1].User != 9 || accs[1].Balance != 1 {
			t.Errorf("accounts: got %+v", accs)
		}

		tenants, err := tx.Tenants(ctx)
		if err != nil {
			return err
		}

		if len(tenants) != 2 || tenants[0] != 1 || tenants[1] != 3 {
			t.Errorf("tenants: got %v", tenants)
		}

		return nil
	})
}

func testInsertBetAndOutcomes(t *testing.T, s store.Store) {
	author := uint64(42)

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		err := tx.InsertBet(ctx, model.BetInfo{ID: 5, Tenant: 1, Description: "who wins", Author: &author, Open: true})
		if err != nil {
			return err
		}

		for i, d := range []string{"red", "blue"} {
			err = tx.InsertOutcome(ctx, 5, uint32(i), d)
			if err != nil {
				return err
			}
		}

		return nil
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		info, err := tx.Bet(ctx, 5, store.LockShared)
		if err != nil {
			return err
		}

		if info.Tenant != 1 || info.Description != "who wins" || !info.Open || info.Tombstoned ||
			info.Author == nil || *info.Author != 42 {
			t.Errorf("bet: got %+v", info)
		}

		outs, err := tx.Outcomes(ctx, 5)
		if err != nil {
			return err
		}

		if len(outs) != 2 || outs[0].Description != "red" || outs[1].Index != 1 {
			t.Errorf("outcomes: got %+v", outs)
		}

		_, err = tx.Bet(ctx, 6, store.LockNone)
		expectErr(t, err, model.ErrNotFound)

		return nil
	})
}

func testInsertBetDuplicate(t *testing.T, s store.Store) {
	seedBet(t, s, 5, 1, "a", "b")

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertBet(ctx, model.BetInfo{ID: 5, Tenant: 2, Description: "again", Open: true})
	})
	expectErr(t, err, model.ErrAlreadyExists)
}

func testSetOpen(t *testing.T, s store.Store) {
	seedBet(t, s, 5, 1, "a", "b")

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.SetOpen(ctx, 5, false)
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		info, err := tx.Bet(ctx, 5, store.LockExclusive)
		if err != nil {
			return err
		}

		if info.Open {
			t.Errorf("bet still open")
		}

		return nil
	})

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.SetOpen(ctx, 99, false)
	})
	expectErr(t, err, model.ErrNotFound)
}

func testAddWagerAccumulates(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{1: 100, 2: 100})
	seedBet(t, s, 5, 1, "a", "b")

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		for _, w := range []model.Wager{
			{BetID: 5, Outcome: 0, Tenant: 1, User: 2, Amount: 10},
			{BetID: 5, Outcome: 0, Tenant: 1, User: 1, Amount: 4},
			{BetID: 5, Outcome: 1, Tenant: 1, User: 1, Amount: 3},
		} {
			_, err := tx.AddWager(ctx, w)
			if err != nil {
				return err
			}
		}

		total, err := tx.AddWager(ctx, model.Wager{BetID: 5, Outcome: 0, Tenant: 1, User: 2, Amount: 5})
		if err != nil {
			return err
		}

		if total != 15 {
			t.Errorf("accumulated: want 15, got %d", total)
		}

		return nil
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		ws, err := tx.Wagers(ctx, 5, 0)
		if err != nil {
			return err
		}

		if len(ws) != 2 || ws[0].User != 1 || ws[0].Amount != 4 || ws[1].User != 2 || ws[1].Amount != 15 {
			t.Errorf("wagers: got %+v", ws)
		}

		ws, err = tx.UserWagers(ctx, 5, 1)
		if err != nil {
			return err
		}

		if len(ws) != 2 || ws[0].Outcome != 0 || ws[1].Outcome != 1 {
			t.Errorf("user wagers: got %+v", ws)
		}

		ws, err = tx.TenantWagers(ctx, 1)
		if err != nil {
			return err
		}

		if len(ws) != 3 {
			t.Errorf("tenant wagers: got %+v", ws)
		}

		return nil
	})
}

func testAddWagerUnknownOutcome(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{1: 100})
	seedBet(t, s, 5, 1, "a", "b")

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddWager(ctx, model.Wager{BetID: 5, Outcome: 2, Tenant: 1, User: 1, Amount: 1})
		return err
	})
	expectErr(t, err, model.ErrNotFound)

	err = inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddWager(ctx, model.Wager{BetID: 5, Outcome: 0, Tenant: 1, User: 8, Amount: 1})
		return err
	})
	expectErr(t, err, model.ErrNotFound)
}

func testTombstone(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{1: 100})
	seedBet(t, s, 5, 1, "a", "b")
	seedBet(t, s, 6, 1, "a", "b")

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		for _, bet := range []uint64{5, 6} {
			_, err := tx.AddWager(ctx, model.Wager{BetID: bet, Outcome: 1, Tenant: 1, User: 1, Amount: 2})
			if err != nil {
				return err
			}
		}

		return tx.Tombstone(ctx, 5)
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		info, err := tx.Bet(ctx, 5, store.LockNone)
		if err != nil {
			return err
		}

		if !info.Tombstoned {
			t.Errorf("bet 5 not tombstoned")
		}

		ws, err := tx.TenantWagers(ctx, 1)
		if err != nil {
			return err
		}

		if len(ws) != 1 || ws[0].BetID != 6 {
			t.Errorf("tenant wagers: got %+v", ws)
		}

		return nil
	})

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.Tombstone(ctx, 5)
	})
	expectErr(t, err, model.ErrNotFound)

	err = inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.Tombstone(ctx, 77)
	})
	expectErr(t, err, model.ErrNotFound)
}

func testTombstoneTenantBets(t *testing.T, s store.Store) {
	seedBet(t, s, 5, 1, "a", "b")
	seedBet(t, s, 6, 1, "a", "b")
	seedBet(t, s, 7, 2, "a", "b")

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.Tombstone(ctx, 5)
	})

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.TombstoneTenantBets(ctx, 1)
		if err != nil {
			return err
		}

		if n != 1 {
			t.Errorf("tombstoned: want 1, got %d", n)
		}

		info, err := tx.Bet(ctx, 7, store.LockNone)
		if err != nil {
			return err
		}

		if info.Tombstoned {
			t.Errorf("other tenant's bet tombstoned")
		}

		return nil
	})
}

func testPurgeTombstoned(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{1: 100})
	seedBet(t, s, 5, 1, "a", "b")
	seedBet(t, s, 6, 1, "a", "b")

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddWager(ctx, model.Wager{BetID: 5, Outcome: 0, Tenant: 1, User: 1, Amount: 9})
		if err != nil {
			return err
		}

		return tx.Tombstone(ctx, 5)
	})

	n, err := s.PurgeTombstoned(t.Context())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}

	if n != 1 {
		t.Fatalf("purged: want 1, got %d", n)
	}

	mustTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Bet(ctx, 6, store.LockNone)
		if err != nil {
			return err
		}

		ws, err := tx.Wagers(ctx, 5, 0)
		if err != nil {
			return err
		}

		if len(ws) != 0 {
			t.Errorf("orphan wagers left: %+v", ws)
		}

		return nil
	})

	err = inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Bet(ctx, 5, store.LockNone)
		return err
	})
	expectErr(t, err, model.ErrNotFound)

	// The bet id is free again once purged.
	seedBet(t, s, 5, 1, "x", "y")
}

func testRollback(t *testing.T, s store.Store) {
	seedAccounts(t, s, 1, map[uint64]uint64{1: 100})

	boom := errors.New("boom")

	err := inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AddBalance(ctx, 1, 1, 50)
		if err != nil {
			return err
		}

		err = tx.InsertBet(ctx, model.BetInfo{ID: 1, Tenant: 1, Description: "d", Open: true})
		if err != nil {
			return err
		}

		return boom
	})
	if !errors.Is(err, boom) || errors.Is(err, model.ErrStore) {
		t.Fatalf("want callback error returned as is, got %v", err)
	}

	if got := balanceOf(t, s, 1, 1); got != 100 {
		t.Fatalf("balance after rollback: want 100, got %d", got)
	}

	err = inTx(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Bet(ctx, 1, store.LockNone)
		return err
	})
	expectErr(t, err, model.ErrNotFound)
}

func assertUpdates(t *testing.T, want, got []model.AccountUpdate) {
	t.Helper()

	if len(want) != len(got) {
		t.Errorf("updates: want %+v, got %+v", want, got)
		return
	}

	for i := range want {
		if want[i] != got[i] {
			t.Errorf("update %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}
