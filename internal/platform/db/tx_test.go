package db

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil {
		t.Fatal("expected error when no connection in context")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestRunInTx_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE medicines").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = NewTransactor(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		if TxFromContext(ctx) == nil {
			t.Error("expected tx in context")
		}
		_, err := Conn(ctx, mock).Exec(ctx, "UPDATE medicines SET stock_qty = 1")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewTransactor(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNoopTransactor(t *testing.T) {
	called := false
	err := NoopTransactor{}.RunInTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("expected fn to run without error, called=%v err=%v", called, err)
	}
}

func TestConn_Fallback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	if Conn(context.Background(), mock) != mock {
		t.Error("expected fallback querier when context is empty")
	}
}

func TestMemTransactor_UndoOnError(t *testing.T) {
	tx := NewMemTransactor()
	var trail []string

	boom := errors.New("boom")
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { trail = append(trail, "first") })
		// nested call joins and shares the undo log
		return tx.RunInTx(ctx, func(ctx context.Context) error {
			OnRollback(ctx, func() { trail = append(trail, "second") })
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(trail) != 2 || trail[0] != "second" || trail[1] != "first" {
		t.Errorf("expected undo in reverse order, got %v", trail)
	}
}

func TestMemTransactor_CommitDropsUndo(t *testing.T) {
	tx := NewMemTransactor()
	undone := false
	err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { undone = true })
		return nil
	})
	if err != nil || undone {
		t.Errorf("expected clean commit, got err=%v undone=%v", err, undone)
	}

	// outside a transaction registration is ignored
	OnRollback(context.Background(), func() { undone = true })
	if undone {
		t.Error("OnRollback ran outside a transaction")
	}
}
