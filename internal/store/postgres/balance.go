package postgres

import (
	"context"
)

// Balance locks the account row (FOR UPDATE) until the transaction ends.
func (t *pgTx) Balance(ctx context.Context, tenant, user uint64) (uint64, error) {
	var balance uint64

	err := t.tx.QueryRowContext(ctx, `
		SELECT balance
		FROM accounts
		WHERE tenant_id = $1 AND user_id = $2
		FOR UPDATE
	`, tenant, user).Scan(&balance)
	if err != nil {
		return 0, mapErr("lock/get balance", err)
	}

	return balance, nil
}
