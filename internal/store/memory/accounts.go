package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/fastprodman/wagerledger/internal/model"
)

func (tx *memTx) InsertAccount(_ context.Context, acc model.Account) error {
	key := accountKey{acc.Tenant, acc.User}
	if _, ok := tx.state.accounts[key]; ok {
		return fmt.Errorf("account %d/%d: %w", acc.Tenant, acc.User, model.ErrAlreadyExists)
	}

	tx.state.accounts[key] = acc.Balance

	return nil
}

func (tx *memTx) Balance(_ context.Context, tenant, user uint64) (uint64, error) {
	balance, ok := tx.state.accounts[accountKey{tenant, user}]
	if !ok {
		return 0, fmt.Errorf("account %d/%d: %w", tenant, user, model.ErrNotFound)
	}

	return balance, nil
}

func (tx *memTx) AddBalance(_ context.Context, tenant, user uint64, delta int64) (model.AccountUpdate, error) {
	key := accountKey{tenant, user}

	balance, ok := tx.state.accounts[key]
	if !ok {
		return model.AccountUpdate{}, fmt.Errorf("account %d/%d: %w", tenant, user, model.ErrNotFound)
	}

	if delta < 0 {
		debit := uint64(-delta)
		if debit > balance {
			return model.AccountUpdate{}, fmt.Errorf("debit %d from %d: %w", debit, balance, model.ErrInsufficientFunds)
		}
		balance -= debit
	} else {
		if uint64(delta) > math.MaxInt64-balance {
			return model.AccountUpdate{}, fmt.Errorf("credit %d to %d: balance out of range: %w", delta, balance, model.ErrParse)
		}
		balance += uint64(delta)
	}

	tx.state.accounts[key] = balance

	return model.AccountUpdate{Tenant: tenant, User: user, Diff: delta, Balance: balance}, nil
}

func (tx *memTx) SetTenantBalances(_ context.Context, tenant, balance uint64) ([]model.AccountUpdate, error) {
	var updates []model.AccountUpdate

	for key, old := range tx.state.accounts {
		if key.tenant != tenant {
			continue
		}

		tx.state.accounts[key] = balance
		updates = append(updates, model.AccountUpdate{
			Tenant:  tenant,
			User:    key.user,
			Diff:    int64(balance) - int64(old),
			Balance: balance,
		})
	}

	sortUpdates(updates)

	return updates, nil
}

func (tx *memTx) AddTenantBalances(_ context.Context, tenant, amount uint64) ([]model.AccountUpdate, error) {
	for key, balance := range tx.state.accounts {
		if key.tenant == tenant && amount > math.MaxInt64-balance {
			return nil, fmt.Errorf("income %d to %d: balance out of range: %w", amount, balance, model.ErrParse)
		}
	}

	var updates []model.AccountUpdate

	for key, balance := range tx.state.accounts {
		if key.tenant != tenant {
			continue
		}

		balance += amount
		tx.state.accounts[key] = balance
		updates = append(updates, model.AccountUpdate{
			Tenant:  tenant,
			User:    key.user,
			Diff:    int64(amount),
			Balance: balance,
		})
	}

	sortUpdates(updates)

	return updates, nil
}

func (tx *memTx) Accounts(_ context.Context, tenant uint64) ([]model.Account, error) {
	var accounts []model.Account

	for key, balance := range tx.state.accounts {
		if key.tenant == tenant {
			accounts = append(accounts, model.Account{Tenant: tenant, User: key.user, Balance: balance})
		}
	}

	slices.SortFunc(accounts, func(a, b model.Account) int { return cmp.Compare(a.User, b.User) })

	return accounts, nil
}

func (tx *memTx) Tenants(_ context.Context) ([]uint64, error) {
	seen := make(map[uint64]struct{})
	for key := range tx.state.accounts {
		seen[key.tenant] = struct{}{}
	}

	tenants := make([]uint64, 0, len(seen))
	for t := range seen {
		tenants = append(tenants, t)
	}

	slices.Sort(tenants)

	return tenants, nil
}

func sortUpdates(updates []model.AccountUpdate) {
	slices.SortFunc(updates, func(a, b model.AccountUpdate) int { return cmp.Compare(a.User, b.User) })
}
