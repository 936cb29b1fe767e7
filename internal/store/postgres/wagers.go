package postgres

import (
	"context"
	"database/sql"

	"github.com/fastprodman/wagerledger/internal/model"
)

const wagerColumns = `w.bet_id, w.outcome_index, w.tenant_id, w.user_id, w.amount`

func (t *pgTx) Wagers(ctx context.Context, betID uint64, outcome uint32) ([]model.Wager, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers w
		WHERE w.bet_id = $1 AND w.outcome_index = $2
		ORDER BY w.user_id
	`, betID, outcome)
	if err != nil {
		return nil, mapErr("list wagers", err)
	}
	defer rows.Close()

	return scanWagers(rows)
}

func (t *pgTx) UserWagers(ctx context.Context, betID, user uint64) ([]model.Wager, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers w
		WHERE w.bet_id = $1 AND w.user_id = $2
		ORDER BY w.outcome_index
	`, betID, user)
	if err != nil {
		return nil, mapErr("list user wagers", err)
	}
	defer rows.Close()

	return scanWagers(rows)
}

func (t *pgTx) TenantWagers(ctx context.Context, tenant uint64) ([]model.Wager, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers w
		WHERE w.tenant_id = $1
		  AND NOT EXISTS (SELECT 1 FROM bet_tombstones t WHERE t.bet_id = w.bet_id)
		ORDER BY w.bet_id, w.outcome_index, w.user_id
	`, tenant)
	if err != nil {
		return nil, mapErr("list tenant wagers", err)
	}
	defer rows.Close()

	return scanWagers(rows)
}

func scanWagers(rows *sql.Rows) ([]model.Wager, error) {
	var wagers []model.Wager

	for rows.Next() {
		var w model.Wager

		err := rows.Scan(&w.BetID, &w.Outcome, &w.Tenant, &w.User, &w.Amount)
		if err != nil {
			return nil, mapErr("scan wager", err)
		}

		wagers = append(wagers, w)
	}

	err := rows.Err()
	if err != nil {
		return nil, mapErr("iterate wagers", err)
	}

	return wagers, nil
}
