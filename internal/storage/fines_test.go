package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFineAddRejectsNonPositiveAmount(t *testing.T) {
	conns, _ := newStoreMock(t)
	store := NewFineStore(conns, testLogger(t))

	assert.Error(t, store.Add(context.Background(), "101", 0, "900"))
	assert.Error(t, store.Add(context.Background(), "101", -25, "900"))
}

func TestFineAddInsertsRow(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewFineStore(conns, testLogger(t))

	mock.ExpectExec(`INSERT INTO fines`).
		WithArgs("101", int64(250), "900").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Add(context.Background(), "101", 250, "900"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFineListReturnsInsertionOrder(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewFineStore(conns, testLogger(t))

	mock.ExpectQuery(`SELECT id, user_id, amount, issuer_id FROM fines`).
		WithArgs("101").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "issuer_id"}).
			AddRow(3, "101", 100, "900").
			AddRow(7, "101", 250, "901"))

	fines, err := store.List(context.Background(), "101")
	require.NoError(t, err)
	require.Len(t, fines, 2)
	assert.Equal(t, int64(3), fines[0].ID)
	assert.Equal(t, int64(100), fines[0].Amount)
	assert.Equal(t, int64(7), fines[1].ID)
	assert.Equal(t, "901", fines[1].IssuerID)
}

func TestFineListEmptyForCleanUser(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewFineStore(conns, testLogger(t))

	mock.ExpectQuery(`SELECT id, user_id, amount, issuer_id FROM fines`).
		WithArgs("101").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "issuer_id"}))

	fines, err := store.List(context.Background(), "101")
	require.NoError(t, err)
	assert.Empty(t, fines)
}

func TestFineRemoveIsIdempotent(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewFineStore(conns, testLogger(t))

	mock.ExpectExec(`DELETE FROM fines WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Remove(context.Background(), 3))
}

func TestRemoveOwnedTxReportsDeletion(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewFineStore(conns, testLogger(t))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM fines WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), "101").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := conns.db.Begin()
	require.NoError(t, err)

	removed, err := store.RemoveOwnedTx(context.Background(), tx, 3, "101")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, tx.Commit())
}

func TestRemoveOwnedTxFailsClosedWhenRowGone(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewFineStore(conns, testLogger(t))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM fines WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), "101").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := conns.db.Begin()
	require.NoError(t, err)

	removed, err := store.RemoveOwnedTx(context.Background(), tx, 3, "101")
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, tx.Rollback())
}
