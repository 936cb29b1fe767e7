package postgres

import (
	"cmp"
	"context"
	"slices"

	"github.com/fastprodman/wagerledger/internal/model"
)

func (t *pgTx) Accounts(ctx context.Context, tenant uint64) ([]model.Account, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT user_id, balance
		FROM accounts
		WHERE tenant_id = $1
		ORDER BY user_id
	`, tenant)
	if err != nil {
		return nil, mapErr("list accounts", err)
	}
	defer rows.Close()

	var accounts []model.Account

	for rows.Next() {
		acc := model.Account{Tenant: tenant}

		err := rows.Scan(&acc.User, &acc.Balance)
		if err != nil {
			return nil, mapErr("scan account", err)
		}

		accounts = append(accounts, acc)
	}

	err = rows.Err()
	if err != nil {
		return nil, mapErr("iterate accounts", err)
	}

	return accounts, nil
}

func (t *pgTx) Tenants(ctx context.Context) ([]uint64, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT DISTINCT tenant_id
		FROM accounts
		ORDER BY tenant_id
	`)
	if err != nil {
		return nil, mapErr("list tenants", err)
	}
	defer rows.Close()

	var tenants []uint64

	for rows.Next() {
		var id uint64

		err := rows.Scan(&id)
		if err != nil {
			return nil, mapErr("scan tenant", err)
		}

		tenants = append(tenants, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, mapErr("iterate tenants", err)
	}

	return tenants, nil
}

// UPDATE ... RETURNING has no ORDER BY.
func sortUpdates(updates []model.AccountUpdate) {
	slices.SortFunc(updates, func(a, b model.AccountUpdate) int { return cmp.Compare(a.User, b.User) })
}
