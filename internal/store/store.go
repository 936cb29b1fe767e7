// Package store defines the ledger store the services run against. The
// services never hold state of their own: every operation opens a
// transaction, reads and writes through Tx, and commits or rolls back
// before returning.
//
// Implementations: postgres (durable) and memory (tests, local runs).
package store

import (
	"context"

	"github.com/fastprodman/wagerledger/internal/model"
)

// LockMode selects how Tx.Bet locks the bet row for the rest of the
// transaction. Stores that serialize whole transactions may ignore it.
type LockMode uint8

const (
	LockNone LockMode = iota
	// LockShared blocks terminal transitions while a stake is in flight.
	LockShared
	// LockExclusive is taken by lock, resolve and abort.
	LockExclusive
)

// Store is the transaction factory.
type Store interface {
	// InTx runs fn in one transaction. It commits if fn returns nil and
	// rolls back otherwise; fn's error is returned as is.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// PurgeTombstoned physically removes every tombstoned bet together
	// with its outcomes and wagers. Run once at start-up.
	PurgeTombstoned(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
}

// Tx is the set of reads and writes available inside a transaction.
// Missing rows are reported as model.ErrNotFound, key collisions as
// model.ErrAlreadyExists, a balance or wager that would go negative as
// model.ErrInsufficientFunds; any other failure is a *model.StoreError.
type Tx interface {
	AccountsTx
	BetsTx
}

type AccountsTx interface {
	InsertAccount(ctx context.Context, acc model.Account) error

	// Balance reads the balance and, where supported, locks the account
	// row until the transaction ends.
	Balance(ctx context.Context, tenant, user uint64) (uint64, error)

	// AddBalance adds delta (possibly negative) and returns the update.
	AddBalance(ctx context.Context, tenant, user uint64, delta int64) (model.AccountUpdate, error)

	// SetTenantBalances sets every account on tenant to balance.
	SetTenantBalances(ctx context.Context, tenant, balance uint64) ([]model.AccountUpdate, error)

	// AddTenantBalances credits every account on tenant by amount.
	AddTenantBalances(ctx context.Context, tenant, amount uint64) ([]model.AccountUpdate, error)

	// Accounts lists the accounts of a tenant ordered by user.
	Accounts(ctx context.Context, tenant uint64) ([]model.Account, error)

	// Tenants lists tenants that have at least one account.
	Tenants(ctx context.Context) ([]uint64, error)
}

type BetsTx interface {
	InsertBet(ctx context.Context, bet model.BetInfo) error
	InsertOutcome(ctx context.Context, betID uint64, index uint32, description string) error

	// Bet returns the bet row including its tombstone state.
	Bet(ctx context.Context, betID uint64, mode LockMode) (model.BetInfo, error)
	SetOpen(ctx context.Context, betID uint64, open bool) error

	// Outcomes lists the outcome slots of a bet ordered by index, without wagers.
	Outcomes(ctx context.Context, betID uint64) ([]model.Outcome, error)

	// Wagers scans the wagers of one (bet, outcome), ordered by user.
	Wagers(ctx context.Context, betID uint64, outcome uint32) ([]model.Wager, error)

	// UserWagers lists the wagers a user holds on a bet.
	UserWagers(ctx context.Context, betID, user uint64) ([]model.Wager, error)

	// TenantWagers scans every wager on live (not tombstoned) bets of a tenant.
	TenantWagers(ctx context.Context, tenant uint64) ([]model.Wager, error)

	// AddWager inserts the wager if absent, then adds w.Amount to it and
	// returns the accumulated amount.
	AddWager(ctx context.Context, w model.Wager) (uint64, error)

	// Tombstone marks a bet as logically deleted.
	Tombstone(ctx context.Context, betID uint64) error

	// TombstoneTenantBets marks every live bet of a tenant as deleted.
	TombstoneTenantBets(ctx context.Context, tenant uint64) (int64, error)
}
