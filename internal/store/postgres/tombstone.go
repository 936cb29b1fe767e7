package postgres

import (
	"context"
	"fmt"

	"github.com/fastprodman/wagerledger/internal/model"
)

func (t *pgTx) Tombstone(ctx context.Context, betID uint64) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO bet_tombstones (bet_id)
		VALUES ($1)
		ON CONFLICT (bet_id) DO NOTHING
	`, betID)
	if err != nil {
		return mapErr("tombstone bet", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return mapErr("rows affected", err)
	}

	if affected == 0 {
		return fmt.Errorf("bet %d already tombstoned: %w", betID, model.ErrNotFound)
	}

	return nil
}

// TombstoneTenantBets first locks every bet row of the tenant, waiting for
// in-flight stakes that hold a shared lock. Stakes that start later block on
// the bet row and then see the tombstone.
func (t *pgTx) TombstoneTenantBets(ctx context.Context, tenant uint64) (int64, error) {
	_, err := t.tx.ExecContext(ctx, `
		SELECT bet_id
		FROM bets
		WHERE tenant_id = $1
		ORDER BY bet_id
		FOR UPDATE
	`, tenant)
	if err != nil {
		return 0, mapErr("lock tenant bets", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO bet_tombstones (bet_id)
		SELECT bet_id FROM bets WHERE tenant_id = $1
		ON CONFLICT (bet_id) DO NOTHING
	`, tenant)
	if err != nil {
		return 0, mapErr("tombstone tenant bets", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr("rows affected", err)
	}

	return n, nil
}
