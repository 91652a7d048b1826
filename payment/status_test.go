package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/opencommerce/payment-go/payment/gateway"
)

func txn(kind gateway.TransactionKind, success bool, amount string) Transaction {
	return Transaction{
		Kind:      kind,
		IsSuccess: success,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
	}
}

func TestDeriveChargeStatus_EmptyLedger(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), nil)
	assert.Equal(t, ChargeStatusNotCharged, status)
}

func TestDeriveChargeStatus_Authorized(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
	})
	assert.Equal(t, ChargeStatusAuthorized, status)
}

func TestDeriveChargeStatus_PartiallyCharged(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
		txn(gateway.TransactionKindCapture, true, "25"),
	})
	assert.Equal(t, ChargeStatusPartiallyCharged, status)
}

func TestDeriveChargeStatus_FullyChargedAcrossPartialCaptures(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
		txn(gateway.TransactionKindCapture, true, "25"),
		txn(gateway.TransactionKindCapture, true, "25"),
		txn(gateway.TransactionKindCapture, true, "50"),
	})
	assert.Equal(t, ChargeStatusFullyCharged, status)
}

func TestDeriveChargeStatus_PartiallyRefunded(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
		txn(gateway.TransactionKindCapture, true, "100"),
		txn(gateway.TransactionKindRefund, true, "40"),
	})
	assert.Equal(t, ChargeStatusPartiallyRefunded, status)
}

func TestDeriveChargeStatus_FullyRefunded(t *testing.T) {
	// a payment captured and then refunded back to zero reads fully-refunded,
	// not not-charged
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
		txn(gateway.TransactionKindCapture, true, "100"),
		txn(gateway.TransactionKindRefund, true, "60"),
		txn(gateway.TransactionKindRefund, true, "40"),
	})
	assert.Equal(t, ChargeStatusFullyRefunded, status)
}

func TestDeriveChargeStatus_Cancelled(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
		txn(gateway.TransactionKindVoid, true, "100"),
	})
	assert.Equal(t, ChargeStatusCancelled, status)
}

func TestDeriveChargeStatus_Refused(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, false, "100"),
	})
	assert.Equal(t, ChargeStatusRefused, status)
}

func TestDeriveChargeStatus_Pending(t *testing.T) {
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindPending, true, "100"),
	})
	assert.Equal(t, ChargeStatusPending, status)
}

func TestDeriveChargeStatus_ActionToConfirmIsNotRefused(t *testing.T) {
	pending := txn(gateway.TransactionKindActionToConfirm, true, "100")
	pending.ActionRequired = true
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{pending})
	assert.Equal(t, ChargeStatusNotCharged, status)
}

func TestDeriveChargeStatus_FailedCaptureDoesNotRegress(t *testing.T) {
	// a capture refusal after a successful auth keeps the authorized status
	status := DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
		txn(gateway.TransactionKindCapture, false, "100"),
	})
	assert.Equal(t, ChargeStatusAuthorized, status)

	// and a failed second capture keeps the partial capture visible
	status = DeriveChargeStatus(decimal.RequireFromString("100"), []Transaction{
		txn(gateway.TransactionKindAuth, true, "100"),
		txn(gateway.TransactionKindCapture, true, "25"),
		txn(gateway.TransactionKindCapture, false, "75"),
	})
	assert.Equal(t, ChargeStatusPartiallyCharged, status)
}
