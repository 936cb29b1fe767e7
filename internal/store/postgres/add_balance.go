package postgres

import (
	"context"

	"github.com/fastprodman/wagerledger/internal/model"
)

// AddBalance relies on the accounts_balance_non_negative CHECK to reject
// overdrafts; the violation maps to model.ErrInsufficientFunds.
func (t *pgTx) AddBalance(ctx context.Context, tenant, user uint64, delta int64) (model.AccountUpdate, error) {
	var balance uint64

	err := t.tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $3
		WHERE tenant_id = $1 AND user_id = $2
		RETURNING balance
	`, tenant, user, delta).Scan(&balance)
	if err != nil {
		return model.AccountUpdate{}, mapErr("add balance", err)
	}

	return model.AccountUpdate{Tenant: tenant, User: user, Diff: delta, Balance: balance}, nil
}
