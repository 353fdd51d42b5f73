package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureUpsertsRolePayment(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewRolePaymentStore(conns, testLogger(t))

	mock.ExpectExec(`INSERT INTO role_payments`).
		WithArgs("role-1", int64(300), time.Time{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Configure(context.Background(), "role-1", 300))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigureRejectsNonPositiveAmount(t *testing.T) {
	conns, _ := newStoreMock(t)
	store := NewRolePaymentStore(conns, testLogger(t))

	assert.Error(t, store.Configure(context.Background(), "role-1", 0))
	assert.Error(t, store.Configure(context.Background(), "role-1", -50))
}

func TestListReturnsConfiguredPayments(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewRolePaymentStore(conns, testLogger(t))

	paid := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT role_id, amount, last_payment FROM role_payments`).
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "amount", "last_payment"}).
			AddRow("role-1", 300, paid).
			AddRow("role-2", 150, time.Time{}))

	payments, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "role-1", payments[0].RoleID)
	assert.Equal(t, paid, payments[0].LastPayment)
	assert.True(t, payments[1].LastPayment.IsZero())
}

func TestMarkPaidAdvancesLastPayment(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewRolePaymentStore(conns, testLogger(t))

	paidAt := time.Date(2026, 5, 11, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE role_payments SET last_payment`).
		WithArgs("role-1", paidAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.MarkPaid(context.Background(), "role-1", paidAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveDeletesRolePayment(t *testing.T) {
	conns, mock := newStoreMock(t)
	store := NewRolePaymentStore(conns, testLogger(t))

	mock.ExpectExec(`DELETE FROM role_payments`).
		WithArgs("role-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Remove(context.Background(), "role-1"))
}
