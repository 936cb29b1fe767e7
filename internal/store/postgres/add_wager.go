package postgres

import (
	"context"

	"github.com/fastprodman/wagerledger/internal/model"
)

func (t *pgTx) AddWager(ctx context.Context, w model.Wager) (uint64, error) {
	var amount uint64

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO wagers (bet_id, outcome_index, tenant_id, user_id, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bet_id, outcome_index, user_id)
		DO UPDATE SET amount = wagers.amount + EXCLUDED.amount
		RETURNING amount
	`, w.BetID, w.Outcome, w.Tenant, w.User, w.Amount).Scan(&amount)
	if err != nil {
		return 0, mapErr("add wager", err)
	}

	return amount, nil
}
