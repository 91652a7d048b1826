package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencommerce/payment-go/libs/datastore"
	"github.com/opencommerce/payment-go/payment/gateway"
)

func setupMockDB(t *testing.T) (*Postgres, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	pg := &Postgres{datastore.Postgres{DB: sqlx.NewDb(db, "postgres")}}
	return pg, mock, func() { _ = db.Close() }
}

func TestGetPaymentMissingReturnsNil(t *testing.T) {
	pg, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(`^select \* from payments`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, err := pg.GetPayment(context.Background(), uuid.NewV4())
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCustomerExternalIDMissingReturnsEmpty(t *testing.T) {
	pg, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(`^select external_id from customers`).
		WithArgs("customer-1", "gw.dummy").
		WillReturnRows(sqlmock.NewRows([]string{"external_id"}))

	external, err := pg.GetCustomerExternalID(context.Background(), "customer-1", "gw.dummy")
	require.NoError(t, err)
	assert.Empty(t, external)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentTransactionsOrdering(t *testing.T) {
	pg, mock, cleanup := setupMockDB(t)
	defer cleanup()

	paymentID := uuid.NewV4()
	rows := sqlmock.NewRows([]string{"id", "payment_id", "kind", "is_success", "amount", "currency"}).
		AddRow(uuid.NewV4().String(), paymentID.String(), "auth", true, "100", "USD").
		AddRow(uuid.NewV4().String(), paymentID.String(), "capture", true, "100", "USD")

	mock.ExpectQuery(`^select \* from transactions where payment_id = \$1 order by created_at, id$`).
		WithArgs(paymentID).
		WillReturnRows(rows)

	txns, err := pg.GetPaymentTransactions(context.Background(), paymentID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, gateway.TransactionKindAuth, txns[0].Kind)
	assert.Equal(t, gateway.TransactionKindCapture, txns[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPaymentOperationRollsBackWhenNothingToPersist(t *testing.T) {
	pg, mock, cleanup := setupMockDB(t)
	defer cleanup()

	paymentID := uuid.NewV4()
	paymentRows := sqlmock.NewRows([]string{
		"id", "gateway", "token", "currency", "total", "captured_amount",
		"charge_status", "is_active", "partial", "to_confirm", "create_order",
	}).AddRow(paymentID.String(), "gw.dummy", "tok", "USD", "100", "0",
		"not-charged", true, false, false, true)

	mock.ExpectBegin()
	mock.ExpectQuery(`^select \* from payments where id = \$1 for update$`).
		WithArgs(paymentID).
		WillReturnRows(paymentRows)
	mock.ExpectQuery(`^select \* from transactions`).
		WithArgs(paymentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	precondition := errors.New("precondition failed")
	_, _, err := pg.RunPaymentOperation(context.Background(), paymentID,
		func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
			// a nil result must persist nothing
			return nil, precondition
		})
	assert.ErrorIs(t, err, precondition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPaymentOperationMissingPayment(t *testing.T) {
	pg, mock, cleanup := setupMockDB(t)
	defer cleanup()

	paymentID := uuid.NewV4()
	mock.ExpectBegin()
	mock.ExpectQuery(`^select \* from payments where id = \$1 for update$`).
		WithArgs(paymentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, _, err := pg.RunPaymentOperation(context.Background(), paymentID,
		func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
			t.Fatal("operation must not run for a missing payment")
			return nil, nil
		})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
