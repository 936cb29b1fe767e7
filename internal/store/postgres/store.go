// Package postgres implements store.Store on PostgreSQL through database/sql
// and the pgx stdlib driver. Schema: cmd/migrator/migrations.
//
// Transactions run at the server default isolation (READ COMMITTED);
// contention is resolved with explicit row locks: account rows are locked by
// Balance and by every balance update, bet rows by Bet according to
// store.LockMode and by TombstoneTenantBets. Callers take bet locks before
// account locks so that no two transactions wait on each other.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/wagerledger/internal/infra/pgutils"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var fnErr error

	err := pgutils.WithTx(ctx, s.db, func(sqlTx *sql.Tx) error {
		fnErr = fn(&pgTx{tx: sqlTx})
		return fnErr
	})

	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return err
	default:
		return model.WrapStore("tx", err)
	}
}

func (s *Store) PurgeTombstoned(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM bets b
		USING bet_tombstones t
		WHERE t.bet_id = b.bet_id
	`)
	if err != nil {
		return 0, mapErr("purge tombstoned", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr("purge rows affected", err)
	}

	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return model.WrapStore("ping", fmt.Errorf("ping database: %w", err))
	}

	return nil
}

type pgTx struct{ tx *sql.Tx }
