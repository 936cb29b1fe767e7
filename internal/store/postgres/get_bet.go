package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

var lockClause = map[store.LockMode]string{
	store.LockNone:      "",
	store.LockShared:    "FOR SHARE",
	store.LockExclusive: "FOR UPDATE",
}

// Bet reads the bet row under the requested lock, then the tombstone in a
// separate statement so that it sees tombstones committed while waiting
// for the lock.
func (t *pgTx) Bet(ctx context.Context, betID uint64, mode store.LockMode) (model.BetInfo, error) {
	info := model.BetInfo{ID: betID}

	var author sql.NullInt64

	err := t.tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT tenant_id, description, author_id, is_open
		FROM bets
		WHERE bet_id = $1
		%s
	`, lockClause[mode]), betID).Scan(&info.Tenant, &info.Description, &author, &info.Open)
	if err != nil {
		return model.BetInfo{}, mapErr("get bet", err)
	}

	if author.Valid {
		a := uint64(author.Int64)
		info.Author = &a
	}

	err = t.tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM bet_tombstones WHERE bet_id = $1)
	`, betID).Scan(&info.Tombstoned)
	if err != nil {
		return model.BetInfo{}, mapErr("check tombstone", err)
	}

	return info, nil
}

func (t *pgTx) SetOpen(ctx context.Context, betID uint64, open bool) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE bets
		SET is_open = $2
		WHERE bet_id = $1
	`, betID, open)
	if err != nil {
		return mapErr("set open", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return mapErr("rows affected", err)
	}

	if affected == 0 {
		return fmt.Errorf("set open on bet %d: %w", betID, model.ErrNotFound)
	}

	return nil
}
