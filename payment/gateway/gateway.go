// Package gateway defines the capability contract every payment backend
// adapter must implement, along with the registry used to resolve a gateway
// identifier to a configured adapter.
package gateway

import (
	"context"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/opencommerce/payment-go/libs/datastore"
)

// TransactionKind - the kind of operation a gateway call attempted
type TransactionKind string

const (
	// TransactionKindExternal - transaction performed outside of any gateway
	TransactionKindExternal TransactionKind = "external"
	// TransactionKindAuth - funds reserved against the payment method
	TransactionKindAuth TransactionKind = "auth"
	// TransactionKindPending - gateway accepted the call but has not settled it yet
	TransactionKindPending TransactionKind = "pending"
	// TransactionKindActionToConfirm - gateway requires an additional confirmation round-trip
	TransactionKindActionToConfirm TransactionKind = "action_to_confirm"
	// TransactionKindCapture - reserved funds collected
	TransactionKindCapture TransactionKind = "capture"
	// TransactionKindCaptureFailed - capture attempt refused by the gateway
	TransactionKindCaptureFailed TransactionKind = "capture_failed"
	// TransactionKindVoid - reservation released before capture
	TransactionKindVoid TransactionKind = "void"
	// TransactionKindRefund - captured funds returned
	TransactionKindRefund TransactionKind = "refund"
	// TransactionKindRefundFailed - refund attempt refused by the gateway
	TransactionKindRefundFailed TransactionKind = "refund_failed"
	// TransactionKindConfirm - confirmation round-trip completed
	TransactionKindConfirm TransactionKind = "confirm"
	// TransactionKindCancel - cancellation performed by the gateway
	TransactionKindCancel TransactionKind = "cancel"
)

// PaymentData carries the payment context passed to every adapter call
type PaymentData struct {
	PaymentID  uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Token      string
	CustomerID string
	ReturnURL  string
	// ReuseSource indicates a stored payment source should be charged
	ReuseSource bool
	// Extra carries adapter specific data supplied by the client
	Extra datastore.Metadata
}

// Response is the structured result of one adapter call. It is recorded as a
// transaction on the payment ledger regardless of success.
type Response struct {
	Kind      TransactionKind
	IsSuccess bool
	// ActionRequired signals the orchestrator must surface a confirmation
	// step to the caller instead of finalizing the transaction
	ActionRequired     bool
	ActionRequiredData datastore.Metadata
	Amount             decimal.Decimal
	Currency           string
	// Token is the adapter assigned reference for this operation, reused
	// across retries of the same logical operation
	Token        string
	Error        string
	PSPReference string
	RawResponse  datastore.Metadata
}

// PaymentMethodInfo - details about a stored payment method
type PaymentMethodInfo struct {
	First4   string `json:"firstDigits,omitempty"`
	Last4    string `json:"lastDigits,omitempty"`
	ExpYear  int    `json:"expYear,omitempty"`
	ExpMonth int    `json:"expMonth,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Name     string `json:"name,omitempty"`
}

// CustomerSource - a payment source stored at the gateway for a customer
type CustomerSource struct {
	ID             string            `json:"paymentMethodId"`
	Gateway        string            `json:"gateway"`
	CreditCardInfo PaymentMethodInfo `json:"creditCardInfo"`
}

// InitializedPayment - data a gateway hands back for a client side payment session
type InitializedPayment struct {
	Gateway string             `json:"gateway"`
	Name    string             `json:"name"`
	Data    datastore.Metadata `json:"data"`
}

// Gateway is the capability set each payment backend adapter must implement.
// Adapters return (nil, err) only for transport level failures; a refused
// operation is a Response with IsSuccess false.
type Gateway interface {
	Authorize(ctx context.Context, data *PaymentData) (*Response, error)
	Capture(ctx context.Context, data *PaymentData) (*Response, error)
	Void(ctx context.Context, data *PaymentData) (*Response, error)
	Refund(ctx context.Context, data *PaymentData) (*Response, error)
	Confirm(ctx context.Context, data *PaymentData) (*Response, error)
	// Process performs the checkout-complete call, authorizing or capturing
	// according to the adapter's auto capture configuration
	Process(ctx context.Context, data *PaymentData) (*Response, error)
	Initialize(ctx context.Context, channel string, data datastore.Metadata) (*InitializedPayment, error)
	ListPaymentSources(ctx context.Context, customerID string) ([]CustomerSource, error)
	// AutoCapture reports whether a confirm call settles funds immediately
	AutoCapture() bool
}

// Tokenizer is implemented by adapters able to store a customer reference
type Tokenizer interface {
	TokenizeCustomer(ctx context.Context, data *PaymentData) (string, error)
}
