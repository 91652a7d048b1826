// Package stripegw adapts the Stripe PaymentIntents API to the gateway
// capability contract. Manual capture intents back the authorize/capture
// split; requires_action intents surface the confirmation step.
package stripegw

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"github.com/opencommerce/payment-go/libs/datastore"
	"github.com/opencommerce/payment-go/payment/gateway"
)

// ID is the identifier the stripe gateway registers under
const ID = "opencommerce.payments.stripe"

var errMissingToken = errors.New("stripegw: missing payment intent token")

// Gateway - stripe backed gateway adapter
type Gateway struct {
	cl *client.API
	// autoCapture makes Process and Confirm settle funds immediately
	autoCapture bool
}

// New creates a stripe gateway using the given api secret
func New(secret string, autoCapture bool) *Gateway {
	cl := &client.API{}
	cl.Init(secret, nil)
	return &Gateway{cl: cl, autoCapture: autoCapture}
}

// minorUnits converts a decimal major-unit amount to stripe's integer minor units
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func majorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func (g *Gateway) response(kind gateway.TransactionKind, pi *stripe.PaymentIntent, err error) (*gateway.Response, error) {
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			// a refusal from stripe is a failed transaction, not a transport error
			resp := &gateway.Response{
				Kind:      kind,
				IsSuccess: false,
				Error:     stripeErr.Msg,
				RawResponse: datastore.Metadata{
					"error_code": string(stripeErr.Code),
					"error_type": string(stripeErr.Type),
				},
			}
			if stripeErr.PaymentIntent != nil {
				resp.Token = stripeErr.PaymentIntent.ID
				resp.PSPReference = stripeErr.PaymentIntent.ID
			}
			return resp, nil
		}
		return nil, err
	}

	resp := &gateway.Response{
		Kind:         kind,
		IsSuccess:    true,
		Amount:       majorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		Token:        pi.ID,
		PSPReference: pi.ID,
		RawResponse: datastore.Metadata{
			"id":     pi.ID,
			"status": string(pi.Status),
		},
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresAction:
		resp.ActionRequired = true
		resp.Kind = gateway.TransactionKindActionToConfirm
		resp.ActionRequiredData = datastore.Metadata{
			"client_secret": pi.ClientSecret,
		}
	case stripe.PaymentIntentStatusCanceled:
		resp.Kind = gateway.TransactionKindCancel
	}

	return resp, nil
}

func (g *Gateway) newIntent(data *gateway.PaymentData, captureMethod stripe.PaymentIntentCaptureMethod) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(minorUnits(data.Amount)),
		Currency:      stripe.String(data.Currency),
		CaptureMethod: stripe.String(string(captureMethod)),
		Confirm:       stripe.Bool(true),
	}
	if data.Token != "" {
		params.PaymentMethod = stripe.String(data.Token)
	}
	if data.CustomerID != "" {
		params.Customer = stripe.String(data.CustomerID)
	}
	if data.ReturnURL != "" {
		params.ReturnURL = stripe.String(data.ReturnURL)
	}
	return g.cl.PaymentIntents.New(params)
}

// Authorize creates a manual-capture payment intent
func (g *Gateway) Authorize(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	pi, err := g.newIntent(data, stripe.PaymentIntentCaptureMethodManual)
	return g.response(gateway.TransactionKindAuth, pi, err)
}

// Capture settles a previously authorized payment intent
func (g *Gateway) Capture(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	if data.Token == "" {
		return nil, errMissingToken
	}
	pi, err := g.cl.PaymentIntents.Capture(data.Token, &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(minorUnits(data.Amount)),
	})
	return g.response(gateway.TransactionKindCapture, pi, err)
}

// Void cancels an uncaptured payment intent
func (g *Gateway) Void(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	if data.Token == "" {
		return nil, errMissingToken
	}
	pi, err := g.cl.PaymentIntents.Cancel(data.Token, &stripe.PaymentIntentCancelParams{})
	resp, rerr := g.response(gateway.TransactionKindVoid, pi, err)
	if resp != nil && resp.Kind == gateway.TransactionKindCancel {
		// a canceled intent is the successful outcome here
		resp.Kind = gateway.TransactionKindVoid
	}
	return resp, rerr
}

// Refund returns captured funds on a payment intent
func (g *Gateway) Refund(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	if data.Token == "" {
		return nil, errMissingToken
	}
	ref, err := g.cl.Refunds.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(data.Token),
		Amount:        stripe.Int64(minorUnits(data.Amount)),
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return &gateway.Response{
				Kind:      gateway.TransactionKindRefund,
				IsSuccess: false,
				Error:     stripeErr.Msg,
				Token:     data.Token,
				RawResponse: datastore.Metadata{
					"error_code": string(stripeErr.Code),
				},
			}, nil
		}
		return nil, err
	}
	return &gateway.Response{
		Kind:         gateway.TransactionKindRefund,
		IsSuccess:    ref.Status == stripe.RefundStatusSucceeded || ref.Status == stripe.RefundStatusPending,
		Amount:       majorUnits(ref.Amount),
		Currency:     string(ref.Currency),
		Token:        data.Token,
		PSPReference: ref.ID,
		RawResponse: datastore.Metadata{
			"id":     ref.ID,
			"status": string(ref.Status),
		},
	}, nil
}

// Confirm completes a requires_action payment intent
func (g *Gateway) Confirm(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	if data.Token == "" {
		return nil, errMissingToken
	}
	kind := gateway.TransactionKindAuth
	if g.autoCapture {
		kind = gateway.TransactionKindCapture
	}
	pi, err := g.cl.PaymentIntents.Confirm(data.Token, &stripe.PaymentIntentConfirmParams{})
	return g.response(kind, pi, err)
}

// Process creates a payment intent, capturing immediately when configured to
func (g *Gateway) Process(ctx context.Context, data *gateway.PaymentData) (*gateway.Response, error) {
	captureMethod := stripe.PaymentIntentCaptureMethodManual
	kind := gateway.TransactionKindAuth
	if g.autoCapture {
		captureMethod = stripe.PaymentIntentCaptureMethodAutomatic
		kind = gateway.TransactionKindCapture
	}
	pi, err := g.newIntent(data, captureMethod)
	return g.response(kind, pi, err)
}

// Initialize hands back the configuration a client needs to start a session
func (g *Gateway) Initialize(ctx context.Context, channel string, data datastore.Metadata) (*gateway.InitializedPayment, error) {
	return &gateway.InitializedPayment{
		Gateway: ID,
		Name:    "Stripe",
		Data:    data,
	}, nil
}

// ListPaymentSources lists the stored cards of a stripe customer
func (g *Gateway) ListPaymentSources(ctx context.Context, customerID string) ([]gateway.CustomerSource, error) {
	if customerID == "" {
		return nil, nil
	}

	iter := g.cl.PaymentMethods.List(&stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	})

	var sources []gateway.CustomerSource
	for iter.Next() {
		pm := iter.PaymentMethod()
		source := gateway.CustomerSource{
			ID:      pm.ID,
			Gateway: ID,
		}
		if pm.Card != nil {
			source.CreditCardInfo = gateway.PaymentMethodInfo{
				Last4:    pm.Card.Last4,
				ExpYear:  int(pm.Card.ExpYear),
				ExpMonth: int(pm.Card.ExpMonth),
				Brand:    string(pm.Card.Brand),
			}
		}
		sources = append(sources, source)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return sources, nil
}

// TokenizeCustomer creates a stripe customer for source storage
func (g *Gateway) TokenizeCustomer(ctx context.Context, data *gateway.PaymentData) (string, error) {
	cust, err := g.cl.Customers.New(&stripe.CustomerParams{})
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

// AutoCapture reports whether confirm settles funds immediately
func (g *Gateway) AutoCapture() bool {
	return g.autoCapture
}
