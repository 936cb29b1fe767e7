package postgres

import (
	"context"

	"github.com/fastprodman/wagerledger/internal/model"
)

func (t *pgTx) InsertAccount(ctx context.Context, acc model.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (tenant_id, user_id, balance)
		VALUES ($1, $2, $3)
	`, acc.Tenant, acc.User, acc.Balance)
	if err != nil {
		return mapErr("insert account", err)
	}

	return nil
}
