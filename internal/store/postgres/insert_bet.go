package postgres

import (
	"context"
	"database/sql"

	"github.com/fastprodman/wagerledger/internal/model"
)

func (t *pgTx) InsertBet(ctx context.Context, bet model.BetInfo) error {
	var author sql.NullInt64
	if bet.Author != nil {
		author = sql.NullInt64{Int64: int64(*bet.Author), Valid: true}
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets (bet_id, tenant_id, description, author_id, is_open)
		VALUES ($1, $2, $3, $4, $5)
	`, bet.ID, bet.Tenant, bet.Description, author, bet.Open)
	if err != nil {
		return mapErr("insert bet", err)
	}

	return nil
}

func (t *pgTx) InsertOutcome(ctx context.Context, betID uint64, index uint32, description string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outcomes (bet_id, outcome_index, description)
		VALUES ($1, $2, $3)
	`, betID, index, description)
	if err != nil {
		return mapErr("insert outcome", err)
	}

	return nil
}
