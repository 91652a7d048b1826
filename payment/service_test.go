package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencommerce/payment-go/payment/gateway"
	"github.com/opencommerce/payment-go/payment/gateway/dummy"
	"github.com/opencommerce/payment-go/payment/gateway/dummycard"
)

// mockDatastore keeps everything in memory while honoring the persistence
// contract of RunPaymentOperation: a non-nil result is persisted even when the
// operation errors, a nil result persists nothing.
type mockDatastore struct {
	payments  map[uuid.UUID]*Payment
	ledgers   map[uuid.UUID][]Transaction
	checkouts map[uuid.UUID]*CheckoutInfo
	customers map[string]string
}

func newMockDatastore() *mockDatastore {
	return &mockDatastore{
		payments:  map[uuid.UUID]*Payment{},
		ledgers:   map[uuid.UUID][]Transaction{},
		checkouts: map[uuid.UUID]*CheckoutInfo{},
		customers: map[string]string{},
	}
}

func (m *mockDatastore) RawDB() *sqlx.DB                       { return nil }
func (m *mockDatastore) NewMigrate() (*migrate.Migrate, error) { return nil, nil }
func (m *mockDatastore) Migrate(...uint) error                 { return nil }
func (m *mockDatastore) RollbackTxAndHandle(tx *sqlx.Tx) error { return nil }
func (m *mockDatastore) RollbackTx(tx *sqlx.Tx)                {}
func (m *mockDatastore) BeginTx() (*sqlx.Tx, error)            { return nil, nil }

func (m *mockDatastore) InsertPayment(ctx context.Context, p *Payment, checkoutTotal decimal.Decimal) (*Payment, error) {
	if p.CheckoutID != nil {
		var active []*Payment
		for _, stored := range m.payments {
			if stored.CheckoutID != nil && uuid.Equal(*stored.CheckoutID, *p.CheckoutID) && stored.IsActive {
				active = append(active, stored)
			}
		}
		if p.Partial {
			sum := p.Total
			for _, sibling := range active {
				if !sibling.Partial {
					return nil, partialNotAllowed()
				}
				sum = sum.Add(sibling.Total)
			}
			if sum.GreaterThan(checkoutTotal) {
				return nil, partialTotalExceeded()
			}
		} else {
			for _, sibling := range active {
				sibling.IsActive = false
			}
		}
	}
	if uuid.Equal(p.ID, uuid.Nil) {
		p.ID = uuid.NewV4()
	}
	created := *p
	created.CreatedAt = time.Now()
	m.payments[created.ID] = &created
	out := created
	return &out, nil
}

func (m *mockDatastore) GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (m *mockDatastore) GetPaymentTransactions(ctx context.Context, paymentID uuid.UUID) ([]Transaction, error) {
	return append([]Transaction{}, m.ledgers[paymentID]...), nil
}

func (m *mockDatastore) ListPayments(ctx context.Context, checkoutID *uuid.UUID, activeOnly bool) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		if checkoutID != nil && (p.CheckoutID == nil || !uuid.Equal(*p.CheckoutID, *checkoutID)) {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockDatastore) RunPaymentOperation(ctx context.Context, paymentID uuid.UUID, op PaymentOperation) (*Payment, *Transaction, error) {
	stored, ok := m.payments[paymentID]
	if !ok {
		return nil, nil, ErrPaymentNotFound
	}

	p := *stored
	txns := append([]Transaction{}, m.ledgers[paymentID]...)

	result, opErr := op(ctx, &p, txns)
	if result == nil {
		return nil, nil, opErr
	}

	var appended *Transaction
	if result.Transaction != nil {
		t := *result.Transaction
		if uuid.Equal(t.ID, uuid.Nil) {
			t.ID = uuid.NewV4()
		}
		t.PaymentID = p.ID
		t.CreatedAt = time.Now()
		m.ledgers[paymentID] = append(m.ledgers[paymentID], t)
		appended = &t
	}
	if u := result.Update; u != nil {
		if u.CapturedAmount != nil {
			p.CapturedAmount = *u.CapturedAmount
		}
		if u.ChargeStatus != nil {
			p.ChargeStatus = *u.ChargeStatus
		}
		if u.IsActive != nil {
			p.IsActive = *u.IsActive
		}
		if u.ToConfirm != nil {
			p.ToConfirm = *u.ToConfirm
		}
		if u.PSPReference != nil {
			p.PSPReference.String = *u.PSPReference
			p.PSPReference.Valid = *u.PSPReference != ""
		}
	}
	*stored = p
	out := p
	return &out, appended, opErr
}

func (m *mockDatastore) UpsertCustomer(ctx context.Context, customerID, gatewayID, externalID string) error {
	m.customers[customerID+"|"+gatewayID] = externalID
	return nil
}

func (m *mockDatastore) GetCustomerExternalID(ctx context.Context, customerID, gatewayID string) (string, error) {
	return m.customers[customerID+"|"+gatewayID], nil
}

func (m *mockDatastore) GetCheckoutInfo(ctx context.Context, checkoutID uuid.UUID) (*CheckoutInfo, error) {
	info, ok := m.checkouts[checkoutID]
	if !ok {
		return nil, nil
	}
	out := *info
	return &out, nil
}

func (m *mockDatastore) UpsertCheckoutInfo(ctx context.Context, info *CheckoutInfo) error {
	stored := *info
	m.checkouts[info.ID] = &stored
	return nil
}

// failingCaptureGateway drops the connection on capture
type failingCaptureGateway struct {
	*dummy.Gateway
}

func (g *failingCaptureGateway) Capture(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	return nil, errors.New("connection reset by peer")
}

func amt(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func setupService(t *testing.T, register func(r *gateway.Registry)) (*Service, *mockDatastore) {
	t.Helper()
	ds := newMockDatastore()
	registry := gateway.NewRegistry()
	register(registry)
	s, err := InitService(ds, registry, NewCheckoutStore(ds))
	require.NoError(t, err)
	return s, ds
}

func registerDummy(t *testing.T) func(r *gateway.Registry) {
	return func(r *gateway.Registry) {
		require.NoError(t, r.Register(gateway.Config{
			ID:     dummy.ID,
			Name:   "Dummy",
			Active: true,
		}, dummy.New()))
	}
}

func seedCheckout(t *testing.T, ds *mockDatastore, total string) *CheckoutInfo {
	t.Helper()
	info := &CheckoutInfo{
		ID:       uuid.NewV4(),
		Total:    amt(total),
		Currency: "USD",
		Email:    "buyer@example.com",
		BillingAddress: &Address{
			FirstName:   "Ada",
			LastName:    "Lovelace",
			Address1:    "1 Analytical Way",
			City:        "London",
			PostalCode:  "N1 9GU",
			CountryCode: "GB",
			Email:       "ada@example.com",
		},
	}
	require.NoError(t, ds.UpsertCheckoutInfo(context.Background(), info))
	return info
}

func createPayment(t *testing.T, s *Service, checkoutID uuid.UUID, gatewayID string, amount *decimal.Decimal, partial bool) *Payment {
	t.Helper()
	p, err := s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: checkoutID,
		Gateway:    gatewayID,
		Token:      "payment-method-token",
		Amount:     amount,
		Partial:    partial,
	})
	require.NoError(t, err)
	return p
}

func TestCreatePaymentValidation(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")

	// unknown checkout
	_, err := s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: uuid.NewV4(),
		Gateway:    dummy.ID,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrorCodeNotFound, verr.Code)

	// unsupported gateway
	_, err = s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: checkout.ID,
		Gateway:    "gw.unknown",
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrorCodeNotSupportedGateway, verr.Code)
	assert.Equal(t, "gateway", verr.Field)

	// missing billing address
	bare := &CheckoutInfo{ID: uuid.NewV4(), Total: amt("50"), Currency: "USD"}
	require.NoError(t, ds.UpsertCheckoutInfo(context.Background(), bare))
	_, err = s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: bare.ID,
		Gateway:    dummy.ID,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrorCodeBillingAddressNotSet, verr.Code)
	assert.Equal(t, "billingAddress", verr.Field)

	// zero amount
	zero := decimal.Zero
	_, err = s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: checkout.ID,
		Gateway:    dummy.ID,
		Amount:     &zero,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrorCodeInvalid, verr.Code)
	assert.Equal(t, string(ErrNonPositiveAmount), verr.Message)

	// an amount over the checkout total fails with the partial-total code
	// even without the partial flag
	over := amt("101")
	_, err = s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: checkout.ID,
		Gateway:    dummy.ID,
		Amount:     &over,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrorCodePartialPaymentTotalExceeded, verr.Code)
}

func TestCreatePaymentSnapshotAndCreateOrder(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")

	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)
	assert.True(t, p.IsActive)
	assert.True(t, p.CreateOrder)
	assert.Equal(t, ChargeStatusNotCharged, p.ChargeStatus)
	assert.Equal(t, "Ada", p.BillingFirstName)
	assert.Equal(t, "ada@example.com", p.BillingEmail)
	assert.True(t, p.Total.Equal(amt("100")))

	thirty := amt("30")
	partial := createPayment(t, s, checkout.ID, dummy.ID, &thirty, true)
	assert.True(t, partial.Partial)
	assert.False(t, partial.CreateOrder)
}

func TestCreatePaymentPartialRules(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")

	thirty, seventy := amt("30"), amt("70")
	createPayment(t, s, checkout.ID, dummy.ID, &thirty, true)
	createPayment(t, s, checkout.ID, dummy.ID, &seventy, true)

	// the two partials exhaust the total; a third cannot fit
	ten := amt("10")
	_, err := s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: checkout.ID,
		Gateway:    dummy.ID,
		Amount:     &ten,
		Partial:    true,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrorCodePartialPaymentTotalExceeded, verr.Code)

	// a full payment supersedes the partials
	full := createPayment(t, s, checkout.ID, dummy.ID, nil, false)
	assert.True(t, full.IsActive)
	active, err := s.ListPayments(context.Background(), &checkout.ID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, full.ID, active[0].ID)

	// and no partial may join an active full payment
	_, err = s.CreatePayment(context.Background(), &CreatePaymentInput{
		CheckoutID: checkout.ID,
		Gateway:    dummy.ID,
		Amount:     &ten,
		Partial:    true,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrorCodePartialPaymentNotAllowed, verr.Code)
}

func TestAuthorizeThenPartialCaptures(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	p, err := s.Authorize(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, ChargeStatusAuthorized, p.ChargeStatus)
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, gateway.TransactionKindAuth, p.Transactions[0].Kind)

	// a second auth is rejected without touching the gateway
	_, err = s.Authorize(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrAlreadyAuthorized)

	for i, step := range []string{"25", "25", "50"} {
		amount := amt(step)
		p, err = s.Capture(context.Background(), p.ID, &amount)
		require.NoError(t, err)
		require.Len(t, p.Transactions, i+2)
	}
	assert.Equal(t, ChargeStatusFullyCharged, p.ChargeStatus)
	assert.True(t, p.CapturedAmount.Equal(amt("100")))

	// nothing is left to capture
	one := amt("1")
	_, err = s.Capture(context.Background(), p.ID, &one)
	assert.ErrorIs(t, err, ErrExceedsUncaptured)
}

func TestCaptureWithoutAuth(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	_, err := s.Capture(context.Background(), p.ID, nil)
	assert.ErrorIs(t, err, ErrNoAuthTransaction)

	// the failed precondition left no ledger row behind
	txns, err := ds.GetPaymentTransactions(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestCaptureRefusedByCardToken(t *testing.T) {
	s, ds := setupService(t, func(r *gateway.Registry) {
		require.NoError(t, r.Register(gateway.Config{
			ID:     dummycard.ID,
			Name:   "Dummy Card",
			Active: true,
		}, dummycard.New()))
	})
	checkout := seedCheckout(t, ds, "80")
	p := createPayment(t, s, checkout.ID, dummycard.ID, nil, false)

	// seed a successful auth whose token is the expired test card; the
	// capture call reuses the auth token and gets refused
	auth := ChargeStatusAuthorized
	_, _, err := ds.RunPaymentOperation(context.Background(), p.ID, func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
		row := Transaction{
			Kind:      gateway.TransactionKindAuth,
			IsSuccess: true,
			Amount:    p.Total,
			Currency:  p.Currency,
			Token:     dummycard.TokenExpired,
		}
		return &OperationResult{
			Transaction: &row,
			Update:      &PaymentUpdate{ChargeStatus: &auth},
		}, nil
	})
	require.NoError(t, err)

	p, err = s.Capture(context.Background(), p.ID, nil)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "Card expired.", gwErr.Message)

	// the refusal is on the ledger and the status did not regress
	require.NotNil(t, p)
	require.Len(t, p.Transactions, 2)
	refused := p.Transactions[1]
	assert.Equal(t, gateway.TransactionKindCapture, refused.Kind)
	assert.False(t, refused.IsSuccess)
	assert.Equal(t, "Card expired.", refused.Error.String)
	assert.Equal(t, ChargeStatusAuthorized, p.ChargeStatus)
	assert.True(t, p.CapturedAmount.IsZero())
}

func TestCaptureTransportFailureRecordsFailedKind(t *testing.T) {
	s, ds := setupService(t, func(r *gateway.Registry) {
		require.NoError(t, r.Register(gateway.Config{
			ID:     dummy.ID,
			Name:   "Dummy",
			Active: true,
		}, &failingCaptureGateway{dummy.New()}))
	})
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	p, err := s.Authorize(context.Background(), p.ID)
	require.NoError(t, err)

	p, err = s.Capture(context.Background(), p.ID, nil)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "Unable to process capture", gwErr.Message)
	assert.EqualError(t, errors.Unwrap(gwErr), "connection reset by peer")

	require.NotNil(t, p)
	require.Len(t, p.Transactions, 2)
	failed := p.Transactions[1]
	assert.Equal(t, gateway.TransactionKindCaptureFailed, failed.Kind)
	assert.False(t, failed.IsSuccess)
	assert.Equal(t, ChargeStatusAuthorized, p.ChargeStatus)
}

func TestVoid(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	// void requires a successful auth
	_, err := s.Void(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNoAuthTransaction)

	p, err = s.Authorize(context.Background(), p.ID)
	require.NoError(t, err)

	p, err = s.Void(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, ChargeStatusCancelled, p.ChargeStatus)
	assert.False(t, p.IsActive)
	require.Len(t, p.Transactions, 2)
	assert.Equal(t, gateway.TransactionKindVoid, p.Transactions[1].Kind)
}

func TestVoidAfterCapture(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	_, err := s.Authorize(context.Background(), p.ID)
	require.NoError(t, err)
	twentyFive := amt("25")
	_, err = s.Capture(context.Background(), p.ID, &twentyFive)
	require.NoError(t, err)

	_, err = s.Void(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrAlreadyCaptured)
}

func TestRefund(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	_, err := s.Authorize(context.Background(), p.ID)
	require.NoError(t, err)
	p, err = s.Capture(context.Background(), p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, ChargeStatusFullyCharged, p.ChargeStatus)

	over := amt("150")
	_, err = s.Refund(context.Background(), p.ID, &over)
	assert.ErrorIs(t, err, ErrExceedsCaptured)

	forty := amt("40")
	p, err = s.Refund(context.Background(), p.ID, &forty)
	require.NoError(t, err)
	assert.Equal(t, ChargeStatusPartiallyRefunded, p.ChargeStatus)
	assert.True(t, p.CapturedAmount.Equal(amt("60")))

	// refunding the remainder brings the payment to fully-refunded, not
	// back to not-charged
	p, err = s.Refund(context.Background(), p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, ChargeStatusFullyRefunded, p.ChargeStatus)
	assert.True(t, p.CapturedAmount.IsZero())

	// nothing captured remains
	ten := amt("10")
	_, err = s.Refund(context.Background(), p.ID, &ten)
	assert.ErrorIs(t, err, ErrExceedsCaptured)
}

func TestAuthorizeRefused(t *testing.T) {
	gw := dummy.New()
	gw.Succeed = func() bool { return false }
	s, ds := setupService(t, func(r *gateway.Registry) {
		require.NoError(t, r.Register(gateway.Config{
			ID:     dummy.ID,
			Name:   "Dummy",
			Active: true,
		}, gw))
	})
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	p, err := s.Authorize(context.Background(), p.ID)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)

	require.NotNil(t, p)
	assert.Equal(t, ChargeStatusRefused, p.ChargeStatus)
	require.Len(t, p.Transactions, 1)
	assert.False(t, p.Transactions[0].IsSuccess)
}

func TestProcessWithConfirmationFlow(t *testing.T) {
	gw := dummy.New()
	gw.RequireConfirmation = true
	s, ds := setupService(t, func(r *gateway.Registry) {
		require.NoError(t, r.Register(gateway.Config{
			ID:     dummy.ID,
			Name:   "Dummy",
			Active: true,
		}, gw))
	})
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	result, err := s.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, result.ConfirmationNeeded)
	assert.Contains(t, result.ConfirmationData, "confirmation_url")
	assert.True(t, result.Payment.ToConfirm)
	assert.Equal(t, ChargeStatusNotCharged, result.Payment.ChargeStatus)
	require.Len(t, result.Payment.Transactions, 1)
	assert.Equal(t, gateway.TransactionKindActionToConfirm, result.Payment.Transactions[0].Kind)

	// the confirmation round-trip resolves to an auth
	p, err = s.Confirm(context.Background(), result.Payment.ID)
	require.NoError(t, err)
	assert.False(t, p.ToConfirm)
	assert.Equal(t, ChargeStatusAuthorized, p.ChargeStatus)
	require.Len(t, p.Transactions, 2)
}

func TestProcessConfirmsParkedPayment(t *testing.T) {
	gw := dummy.New()
	gw.RequireConfirmation = true
	s, ds := setupService(t, func(r *gateway.Registry) {
		require.NoError(t, r.Register(gateway.Config{
			ID:     dummy.ID,
			Name:   "Dummy",
			Active: true,
		}, gw))
	})
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	result, err := s.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, result.ConfirmationNeeded)

	// the second checkout-complete call confirms instead of re-processing
	result, err = s.ProcessPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, result.ConfirmationNeeded)
	assert.Equal(t, ChargeStatusAuthorized, result.Payment.ChargeStatus)
}

func TestConfirmWithoutPendingTransaction(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	_, err := s.Confirm(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNotConfirmable)
}

func TestGetPaymentNotFound(t *testing.T) {
	s, _ := setupService(t, registerDummy(t))

	_, err := s.GetPayment(context.Background(), uuid.NewV4())
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = s.Authorize(context.Background(), uuid.NewV4())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestOperationsOnInactivePayment(t *testing.T) {
	s, ds := setupService(t, registerDummy(t))
	checkout := seedCheckout(t, ds, "100")
	p := createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	// superseding the payment deactivates it
	createPayment(t, s, checkout.ID, dummy.ID, nil, false)

	_, err := s.Authorize(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrPaymentInactive)
}
