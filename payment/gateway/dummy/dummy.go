// Package dummy implements an in-process gateway adapter used in development
// and tests. Every operation succeeds unless the Succeed hook says otherwise.
package dummy

import (
	"context"
	"fmt"

	uuid "github.com/satori/go.uuid"

	"github.com/opencommerce/payment-go/libs/datastore"
	"github.com/opencommerce/payment-go/payment/gateway"
)

// ID is the identifier the dummy gateway registers under
const ID = "opencommerce.payments.dummy"

// Gateway - the dummy gateway adapter
type Gateway struct {
	// Succeed controls the outcome of gateway calls; defaults to always true
	Succeed func() bool
	// CaptureOnConfirm makes Confirm settle funds instead of authorizing
	CaptureOnConfirm bool
	// RequireConfirmation makes Process demand a confirmation round-trip
	RequireConfirmation bool
}

// New creates a dummy gateway which always succeeds
func New() *Gateway {
	return &Gateway{
		Succeed: func() bool { return true },
	}
}

func (g *Gateway) respond(kind gateway.TransactionKind, data *gateway.PaymentData) *gateway.Response {
	ok := g.Succeed == nil || g.Succeed()
	resp := &gateway.Response{
		Kind:      kind,
		IsSuccess: ok,
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
	if !ok {
		resp.Error = fmt.Sprintf("Unable to process %s", kind)
	}
	return resp
}

// Authorize reserves funds
func (g *Gateway) Authorize(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	return g.respond(gateway.TransactionKindAuth, data), nil
}

// Capture collects previously reserved funds
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

// Process authorizes the payment, optionally demanding confirmation first
func (g *Gateway) Process(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	if g.RequireConfirmation {
		resp := g.respond(gateway.TransactionKindActionToConfirm, data)
		resp.ActionRequired = true
		resp.ActionRequiredData = datastore.Metadata{
			"confirmation_url": "https://www.example.com/confirm",
		}
		return resp, nil
	}
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
		Name:    "Dummy",
		Data:    data,
	}, nil
}

// ListPaymentSources returns a single static stored card
func (g *Gateway) ListPaymentSources(ctx context.Context, customerID string) ([]gateway.CustomerSource, error) {
	if customerID == "" {
		return nil, nil
	}
	return []gateway.CustomerSource{
		{
			ID:      "payment-method-id",
			Gateway: ID,
			CreditCardInfo: gateway.PaymentMethodInfo{
				First4:   "4242",
				Last4:    "4242",
				ExpYear:  2030,
				ExpMonth: 12,
				Brand:    "visa",
			},
		},
	}, nil
}

// AutoCapture reports whether confirm settles funds immediately
func (g *Gateway) AutoCapture() bool {
	return g.CaptureOnConfirm
}
