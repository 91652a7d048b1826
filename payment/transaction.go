package payment

import (
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/opencommerce/payment-go/libs/datastore"
	"github.com/opencommerce/payment-go/payment/gateway"
)

// TransactionKind aliases the gateway kind so callers holding a ledger row
// never need to import the gateway package.
type TransactionKind = gateway.TransactionKind

// Transaction is one immutable row on a payment's ledger. Rows are only ever
// appended; the aggregate state on the payment is derived from them.
type Transaction struct {
	ID              uuid.UUID            `json:"id" db:"id"`
	PaymentID       uuid.UUID            `json:"paymentId" db:"payment_id"`
	Kind            TransactionKind      `json:"kind" db:"kind"`
	IsSuccess       bool                 `json:"isSuccess" db:"is_success"`
	ActionRequired  bool                 `json:"actionRequired" db:"action_required"`
	Amount          decimal.Decimal      `json:"amount" db:"amount"`
	Currency        string               `json:"currency" db:"currency"`
	Token           string               `json:"token" db:"token"`
	Error           datastore.NullString `json:"error" db:"error"`
	GatewayResponse datastore.Metadata   `json:"gatewayResponse" db:"gateway_response"`
	CreatedAt       time.Time            `json:"createdAt" db:"created_at"`
}

// lastSuccessful returns the most recent successful transaction of the given
// kind, or nil. The ledger is ordered oldest first.
func lastSuccessful(txns []Transaction, kind TransactionKind) *Transaction {
	for i := len(txns) - 1; i >= 0; i-- {
		if txns[i].Kind == kind && txns[i].IsSuccess {
			return &txns[i]
		}
	}
	return nil
}

// sumSuccessful adds up the amounts of all successful transactions of the
// given kind.
func sumSuccessful(txns []Transaction, kind TransactionKind) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txns {
		if t.Kind == kind && t.IsSuccess {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// transactionFromResponse builds a ledger row out of a gateway response
func transactionFromResponse(p *Payment, resp *gateway.Response) *Transaction {
	t := &Transaction{
		ID:              uuid.NewV4(),
		PaymentID:       p.ID,
		Kind:            resp.Kind,
		IsSuccess:       resp.IsSuccess,
		ActionRequired:  resp.ActionRequired,
		Amount:          resp.Amount,
		Currency:        resp.Currency,
		Token:           resp.Token,
		GatewayResponse: resp.RawResponse,
	}
	if t.Currency == "" {
		t.Currency = p.Currency
	}
	if resp.Error != "" {
		t.Error.String = resp.Error
		t.Error.Valid = true
	}
	if t.GatewayResponse == nil {
		t.GatewayResponse = datastore.Metadata{}
	}
	return t
}
