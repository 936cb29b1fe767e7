package postgres

import (
	"context"

	"github.com/fastprodman/wagerledger/internal/model"
)

func (t *pgTx) Outcomes(ctx context.Context, betID uint64) ([]model.Outcome, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT outcome_index, description
		FROM outcomes
		WHERE bet_id = $1
		ORDER BY outcome_index
	`, betID)
	if err != nil {
		return nil, mapErr("list outcomes", err)
	}
	defer rows.Close()

	var outcomes []model.Outcome

	for rows.Next() {
		var o model.Outcome

		err := rows.Scan(&o.Index, &o.Description)
		if err != nil {
			return nil, mapErr("scan outcome", err)
		}

		outcomes = append(outcomes, o)
	}

	err = rows.Err()
	if err != nil {
		return nil, mapErr("iterate outcomes", err)
	}

	return outcomes, nil
}
