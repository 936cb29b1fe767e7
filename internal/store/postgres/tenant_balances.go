package postgres

import (
	"context"
	"database/sql"

	"github.com/fastprodman/wagerledger/internal/model"
)

// lockTenantAccounts locks the tenant's accounts in user order, the order
// in which payouts and refunds credit them.
func (t *pgTx) lockTenantAccounts(ctx context.Context, tenant uint64) error {
	_, err := t.tx.ExecContext(ctx, `
		SELECT user_id
		FROM accounts
		WHERE tenant_id = $1
		ORDER BY user_id
		FOR UPDATE
	`, tenant)
	if err != nil {
		return mapErr("lock tenant accounts", err)
	}

	return nil
}

func (t *pgTx) SetTenantBalances(ctx context.Context, tenant, balance uint64) ([]model.AccountUpdate, error) {
	err := t.lockTenantAccounts(ctx, tenant)
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		UPDATE accounts a
		SET balance = $2
		FROM accounts old
		WHERE a.tenant_id = $1
		  AND old.tenant_id = a.tenant_id
		  AND old.user_id = a.user_id
		RETURNING a.user_id, $2::BIGINT - old.balance, a.balance
	`, tenant, balance)
	if err != nil {
		return nil, mapErr("set tenant balances", err)
	}
	defer rows.Close()

	return scanUpdates(tenant, rows)
}

func (t *pgTx) AddTenantBalances(ctx context.Context, tenant, amount uint64) ([]model.AccountUpdate, error) {
	err := t.lockTenantAccounts(ctx, tenant)
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2
		WHERE tenant_id = $1
		RETURNING user_id, $2::BIGINT, balance
	`, tenant, amount)
	if err != nil {
		return nil, mapErr("add tenant balances", err)
	}
	defer rows.Close()

	return scanUpdates(tenant, rows)
}

func scanUpdates(tenant uint64, rows *sql.Rows) ([]model.AccountUpdate, error) {
	var updates []model.AccountUpdate

	for rows.Next() {
		u := model.AccountUpdate{Tenant: tenant}

		err := rows.Scan(&u.User, &u.Diff, &u.Balance)
		if err != nil {
			return nil, mapErr("scan account update", err)
		}

		updates = append(updates, u)
	}

	err := rows.Err()
	if err != nil {
		return nil, mapErr("iterate account updates", err)
	}

	sortUpdates(updates)

	return updates, nil
}
