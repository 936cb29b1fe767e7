package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/wagerledger/internal/infra/pgtestutil"
	"github.com/fastprodman/wagerledger/internal/model"
	"github.com/fastprodman/wagerledger/internal/store"
	"github.com/fastprodman/wagerledger/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) store.Store {
		return New(pgtestutil.NewTestDB(t))
	})
}

func TestMapErr(t *testing.T) {
	t.Parallel()

	native := errors.New("connection refused")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, model.ErrNotFound},
		{"unique", &pgconn.PgError{Code: codeUniqueViolation}, model.ErrAlreadyExists},
		{"foreign key", &pgconn.PgError{Code: codeForeignKeyViolation}, model.ErrNotFound},
		{"check", &pgconn.PgError{Code: codeCheckViolation}, model.ErrInsufficientFunds},
		{"out of range", &pgconn.PgError{Code: codeNumericOutOfRange}, model.ErrParse},
		{"other pg error", &pgconn.PgError{Code: "40P01"}, model.ErrStore},
		{"native", native, model.ErrStore},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := mapErr("op", tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}

	if mapErr("op", nil) != nil {
		t.Fatal("nil must map to nil")
	}

	if !errors.Is(mapErr("op", native), native) {
		t.Fatal("store error must unwrap to the native error")
	}
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return New(db), mock
}

func TestAddBalance_CheckViolationIsInsufficientFunds(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE accounts`).
		WillReturnError(&pgconn.PgError{Code: codeCheckViolation, ConstraintName: "accounts_balance_non_negative"})
	mock.ExpectRollback()

	err := s.InTx(t.Context(), func(tx store.Tx) error {
		_, err := tx.AddBalance(t.Context(), 1, 2, -500)
		return err
	})
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertAccount_Duplicate(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "accounts_pkey"})
	mock.ExpectRollback()

	err := s.InTx(t.Context(), func(tx store.Tx) error {
		return tx.InsertAccount(t.Context(), model.Account{Tenant: 1, User: 1, Balance: 10})
	})
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestBet_LockClauseAndTombstone(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT tenant_id, description, author_id, is_open\s+FROM bets\s+WHERE bet_id = \$1\s+FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "description", "author_id", "is_open"}).
			AddRow(int64(1), "d", nil, true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	var info model.BetInfo

	err := s.InTx(t.Context(), func(tx store.Tx) error {
		var err error
		info, err = tx.Bet(t.Context(), 7, store.LockExclusive)

		return err
	})
	if err != nil {
		t.Fatalf("bet: %v", err)
	}

	if !info.Tombstoned || info.Author != nil || info.Tenant != 1 {
		t.Fatalf("unexpected bet: %+v", info)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTombstone_AlreadyTombstoned(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bet_tombstones`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.InTx(t.Context(), func(tx store.Tx) error {
		return tx.Tombstone(t.Context(), 7)
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInTx_BeginFailureIsStoreError(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	called := false
	err := s.InTx(t.Context(), func(store.Tx) error {
		called = true
		return nil
	})

	if !errors.Is(err, model.ErrStore) {
		t.Fatalf("want ErrStore, got %v", err)
	}
	if called {
		t.Fatal("callback must not run when begin fails")
	}
}

func TestPurgeTombstoned(t *testing.T) {
	t.Parallel()

	s, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM bets`).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.PurgeTombstoned(t.Context())
	if err != nil || n != 3 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
