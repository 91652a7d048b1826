package payment

import (
	"github.com/shopspring/decimal"

	"github.com/opencommerce/payment-go/payment/gateway"
)

// DeriveChargeStatus recomputes the aggregate charge status of a payment from
// its ledger. The ledger is the source of truth; the status column is a cached
// projection of this function. Refund math works against the amount originally
// captured, so a captured-then-fully-refunded payment reads fully-refunded
// rather than not-charged.
func DeriveChargeStatus(total decimal.Decimal, txns []Transaction) ChargeStatus {
	if lastSuccessful(txns, gateway.TransactionKindVoid) != nil {
		return ChargeStatusCancelled
	}

	captured := sumSuccessful(txns, gateway.TransactionKindCapture)
	refunded := sumSuccessful(txns, gateway.TransactionKindRefund)

	if captured.IsPositive() {
		net := captured.Sub(refunded)
		if refunded.IsPositive() {
			if net.IsPositive() {
				return ChargeStatusPartiallyRefunded
			}
			return ChargeStatusFullyRefunded
		}
		if net.GreaterThanOrEqual(total) {
			return ChargeStatusFullyCharged
		}
		return ChargeStatusPartiallyCharged
	}

	if lastSuccessful(txns, gateway.TransactionKindAuth) != nil {
		return ChargeStatusAuthorized
	}
	if lastSuccessful(txns, gateway.TransactionKindPending) != nil {
		return ChargeStatusPending
	}

	// the most recent attempt to take funds decides between refused and
	// not-charged; a pending confirmation round-trip is neither
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		if t.ActionRequired {
			break
		}
		if t.Kind == gateway.TransactionKindAuth || t.Kind == gateway.TransactionKindCapture {
			if !t.IsSuccess {
				return ChargeStatusRefused
			}
			break
		}
	}

	return ChargeStatusNotCharged
}
