// Package dummycard implements a development card gateway whose failures are
// driven by well known test tokens, the way real card processors expose test
// card numbers for each decline reason.
package dummycard

import (
	"context"

	uuid "github.com/satori/go.uuid"

	"github.com/opencommerce/payment-go/libs/datastore"
	"github.com/opencommerce/payment-go/payment/gateway"
)

// ID is the identifier the dummy card gateway registers under
const ID = "opencommerce.payments.dummy_card"

// Test tokens triggering coded validation failures.
const (
	TokenExpired           = "4000000000000069"
	TokenInsufficientFunds = "4000000000009995"
	TokenIncorrectCVC      = "4000000000000127"
	TokenDeclined          = "4000000000000002"
)

// TokenValidationMapping maps a failing test token to the human readable
// message surfaced to the caller in place of the generic failure string.
var TokenValidationMapping = map[string]string{
	TokenExpired:           "Card expired.",
	TokenInsufficientFunds: "Insufficient funds.",
	TokenIncorrectCVC:      "Incorrect CVC.",
	TokenDeclined:          "Card declined.",
}

// Gateway - the dummy card gateway adapter
type Gateway struct {
	// CaptureOnConfirm makes Confirm settle funds instead of authorizing
	CaptureOnConfirm bool
}

// New creates a dummy card gateway
func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) respond(kind gateway.TransactionKind, data *gateway.PaymentData) *gateway.Response {
	resp := &gateway.Response{
		Kind:      kind,
		IsSuccess: true,
		Amount:    data.Amount,
		Currency:  data.Currency,
		Token:     data.Token,
		RawResponse: datastore.Metadata{
			"transaction_id": uuid.NewV4().String(),
		},
	}
	if resp.Token == "" {
		resp.Token = uuid.NewV4().String()
	}
	if msg, refused := TokenValidationMapping[data.Token]; refused {
		resp.IsSuccess = false
		resp.Error = msg
	}
	return resp
}

// Authorize reserves funds, refusing the coded test tokens
func (g *Gateway) Authorize(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	return g.respond(gateway.TransactionKindAuth, data), nil
}

// Capture collects previously reserved funds, refusing the coded test tokens
func (g *Gateway) Capture(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	return g.respond(gateway.TransactionKindCapture, data), nil
}

// Void releases a reservation
func (g *Gateway) Void(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	return g.respond(gateway.TransactionKindVoid, data), nil
}

// Refund returns captured funds
func (g *Gateway) Refund(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	return g.respond(gateway.TransactionKindRefund, data), nil
}

// Confirm completes a pending confirmation round-trip
func (g *Gateway) Confirm(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	kind := gateway.TransactionKindAuth
	if g.CaptureOnConfirm {
		kind = gateway.TransactionKindCapture
	}
	return g.respond(kind, data), nil
}

// Process authorizes the payment
func (g *Gateway) Process(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	kind := gateway.TransactionKindAuth
	if g.CaptureOnConfirm {
		kind = gateway.TransactionKindCapture
	}
	return g.respond(kind, data), nil
}

// Initialize hands back a static payment session payload
func (g *Gateway) Initialize(ctx context.Context, channel string, data datastore.Metadata) (*gateway.InitializedPayment, error) {
	return &gateway.InitializedPayment{
		Gateway: ID,
		Name:    "Dummy Card",
		Data:    data,
	}, nil
}

// ListPaymentSources returns no stored sources
func (g *Gateway) ListPaymentSources(ctx context.Context, customerID string) ([]gateway.CustomerSource, error) {
	return nil, nil
}

// AutoCapture reports whether confirm settles funds immediately
func (g *Gateway) AutoCapture() bool {
	return g.CaptureOnConfirm
}
