// Package accounts is the account service: balance reads and writes, bulk
// tenant operations, and the post-commit side effects (balance cache,
// ledger events) shared with the bet engine.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/fastprodman/wagerledger/internal/cache"
	"github.com/fastprodman/wagerledger/internal/events"
	"github.com/fastprodman/wagerledger/internal/metrics"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

type Service struct {
	store store.Store
	cache cache.Balances
	pub   events.Publisher
}

type Option func(*Service)

func WithCache(c cache.Balances) Option {
	return func(s *Service) { s.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, cache: cache.Nop{}, pub: events.Nop{}}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create opens an account with an initial balance.
func (s *Service) Create(ctx context.Context, tenant, user, initial uint64) (model.AccountUpdate, error) {
	if initial > math.MaxInt64 {
		return model.AccountUpdate{}, fmt.Errorf("create account: initial balance %d: %w", initial, model.ErrParse)
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertAccount(ctx, model.Account{Tenant: tenant, User: user, Balance: initial})
	})
	if err != nil {
		metrics.ObserveError("create_account", err)
		return model.AccountUpdate{}, fmt.Errorf("create account: %w", err)
	}

	up := model.AccountUpdate{Tenant: tenant, User: user, Diff: int64(initial), Balance: initial}
	s.Committed(ctx, events.New(events.AccountCreated, tenant, []model.AccountUpdate{up}))

	return up, nil
}

// Balance reads through the cache.
func (s *Service) Balance(ctx context.Context, tenant, user uint64) (uint64, error) {
	entry, err := s.cache.Get(ctx, tenant, user)
	if err != nil {
		slog.WarnContext(ctx, "balance cache read", "tenant", tenant, "user", user, "error", err)
	}

	if entry.Hit {
		return entry.Balance, nil
	}

	var balance uint64

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		balance, err = tx.Balance(ctx, tenant, user)

		return err
	})
	if err != nil {
		metrics.ObserveError("get_balance", err)
		return 0, fmt.Errorf("get balance: %w", err)
	}

	err = s.cache.Fill(ctx, tenant, user, entry.Gen, balance)
	if err != nil {
		slog.WarnContext(ctx, "balance cache fill", "tenant", tenant, "user", user, "error", err)
	}

	return balance, nil
}

// ApplyDelta adds a signed delta in its own transaction.
func (s *Service) ApplyDelta(ctx context.Context, tenant, user uint64, delta int64) (model.AccountUpdate, error) {
	var up model.AccountUpdate

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		up, err = s.ApplyDeltaTx(ctx, tx, tenant, user, delta)

		return err
	})
	if err != nil {
		metrics.ObserveError("apply_delta", err)
		return model.AccountUpdate{}, fmt.Errorf("apply delta: %w", err)
	}

	s.Committed(ctx, events.New(events.AccountDelta, tenant, []model.AccountUpdate{up}))

	return up, nil
}

// ApplyDeltaTx adds delta inside the caller's transaction. A result below
// zero fails with model.ErrInsufficientFunds; nothing is clamped.
func (s *Service) ApplyDeltaTx(ctx context.Context, tx store.Tx, tenant, user uint64, delta int64) (model.AccountUpdate, error) {
	up, err := tx.AddBalance(ctx, tenant, user, delta)
	if err != nil {
		return model.AccountUpdate{}, fmt.Errorf("account %d/%d delta %d: %w", tenant, user, delta, err)
	}

	return up, nil
}

// ResetAll sets every account of a tenant to balance and discards all of
// the tenant's live bets, atomically. Discarded stakes are not refunded.
func (s *Service) ResetAll(ctx context.Context, tenant, balance uint64) ([]model.AccountUpdate, error) {
	if balance > math.MaxInt64 {
		return nil, fmt.Errorf("reset balances: balance %d: %w", balance, model.ErrParse)
	}

	var (
		updates []model.AccountUpdate
		dropped int64
	)

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error

		// Bets first: stakes lock a bet before the staking account.
		dropped, err = tx.TombstoneTenantBets(ctx, tenant)
		if err != nil {
			return fmt.Errorf("discard bets: %w", err)
		}

		updates, err = tx.SetTenantBalances(ctx, tenant, balance)
		if err != nil {
			return fmt.Errorf("set balances: %w", err)
		}

		return nil
	})
	if err != nil {
		metrics.ObserveError("reset_all", err)
		return nil, fmt.Errorf("reset balances: %w", err)
	}

	slog.InfoContext(ctx, "tenant reset", "tenant", tenant, "balance", balance,
		"accounts", len(updates), "bets_discarded", dropped)

	s.Committed(ctx, events.New(events.TenantReset, tenant, updates))

	return updates, nil
}

// ApplyIncome credits every account of a tenant by amount.
func (s *Service) ApplyIncome(ctx context.Context, tenant, amount uint64) ([]model.AccountUpdate, error) {
	if amount > math.MaxInt64 {
		return nil, fmt.Errorf("apply income: amount %d: %w", amount, model.ErrParse)
	}

	var updates []model.AccountUpdate

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		updates, err = tx.AddTenantBalances(ctx, tenant, amount)

		return err
	})
	if err != nil {
		metrics.ObserveError("apply_income", err)
		return nil, fmt.Errorf("apply income: %w", err)
	}

	s.Committed(ctx, events.New(events.TenantIncome, tenant, updates))

	return updates, nil
}

// List returns every account of a tenant with the coins it holds in live bets.
func (s *Service) List(ctx context.Context, tenant uint64) ([]model.AccountStatus, error) {
	var (
		accounts []model.Account
		wagers   []model.Wager
	)

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error

		accounts, err = tx.Accounts(ctx, tenant)
		if err != nil {
			return err
		}

		wagers, err = tx.TenantWagers(ctx, tenant)

		return err
	})
	if err != nil {
		metrics.ObserveError("list_accounts", err)
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	inBet := make(map[uint64]uint64, len(accounts))
	for _, w := range wagers {
		inBet[w.User] += w.Amount
	}

	out := make([]model.AccountStatus, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, model.AccountStatus{User: a.User, Balance: a.Balance, InBet: inBet[a.User]})
	}

	return out, nil
}

// Tenants lists tenants that have accounts.
func (s *Service) Tenants(ctx context.Context) ([]uint64, error) {
	var tenants []uint64

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		tenants, err = tx.Tenants(ctx)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	return tenants, nil
}

// Committed runs the side effects of a committed transaction: the touched
// balances are dropped from the cache, then e is published. Failures are
// logged only.
func (s *Service) Committed(ctx context.Context, e events.Event) {
	err := s.cache.Invalidate(ctx, e.Updates)
	if err != nil {
		slog.WarnContext(ctx, "balance cache invalidate", "tenant", e.Tenant, "type", e.Type, "error", err)
	}

	events.Emit(ctx, s.pub, e)
}
