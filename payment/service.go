package payment

import (
	"context"
	"errors"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/opencommerce/payment-go/libs/datastore"
	"github.com/opencommerce/payment-go/libs/logging"
	"github.com/opencommerce/payment-go/payment/gateway"
)

// CheckoutInfo is the read model this core consumes from the checkout
// aggregate when a payment is created against it.
type CheckoutInfo struct {
	ID             uuid.UUID       `json:"id"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	Channel        string          `json:"channel"`
	Email          string          `json:"email"`
	BillingAddress *Address        `json:"billingAddress"`
}

// CheckoutProvider resolves checkout data owned by another service. A nil
// CheckoutInfo with a nil error means the checkout does not exist.
type CheckoutProvider interface {
	GetCheckout(ctx context.Context, checkoutID uuid.UUID) (*CheckoutInfo, error)
}

// Service contains datastore and gateway connections for the payment core
type Service struct {
	Datastore Datastore
	registry  *gateway.Registry
	checkouts CheckoutProvider
}

// InitService creates a payment service
func InitService(datastore Datastore, registry *gateway.Registry, checkouts CheckoutProvider) (*Service, error) {
	if registry == nil {
		return nil, errors.New("payment: gateway registry is required")
	}
	return &Service{
		Datastore: datastore,
		registry:  registry,
		checkouts: checkouts,
	}, nil
}

// Registry exposes the configured gateway registry
func (s *Service) Registry() *gateway.Registry {
	return s.registry
}

// AvailableGateways lists the active gateway configurations for a currency
func (s *Service) AvailableGateways(currency string) []gateway.Config {
	return s.registry.List(currency)
}

// CreatePaymentInput carries everything needed to open a payment against a
// checkout
type CreatePaymentInput struct {
	CheckoutID uuid.UUID
	Gateway    string
	Token      string
	// Amount defaults to the checkout total when nil
	Amount  *decimal.Decimal
	Partial bool
	// CustomerID references the shop customer for stored source reuse
	CustomerID string
	// StorePaymentMethod asks the gateway to keep the source for reuse
	StorePaymentMethod bool
	ReturnURL          string
}

// CreatePayment validates the input against the checkout and opens a payment.
// The datastore enforces the per-checkout amount invariants under lock, so two
// concurrent creations cannot jointly overshoot the checkout total.
func (s *Service) CreatePayment(ctx context.Context, input *CreatePaymentInput) (*Payment, error) {
	checkout, err := s.checkouts.GetCheckout(ctx, input.CheckoutID)
	if err != nil {
		return nil, err
	}
	if checkout == nil {
		return nil, &ValidationError{
			Code:    ErrorCodeNotFound,
			Field:   "checkoutId",
			Message: "Checkout does not exist.",
		}
	}
	if checkout.BillingAddress == nil {
		return nil, billingAddressNotSet()
	}
	if _, ok := s.registry.Resolve(input.Gateway, checkout.Currency, checkout.Channel); !ok {
		return nil, notSupportedGateway(input.Gateway)
	}

	amount := checkout.Total
	if input.Amount != nil {
		amount = *input.Amount
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{
			Code:    ErrorCodeInvalid,
			Field:   "amount",
			Message: string(ErrNonPositiveAmount),
		}
	}
	if amount.GreaterThan(checkout.Total) {
		return nil, partialTotalExceeded()
	}

	checkoutID := checkout.ID
	p := &Payment{
		CheckoutID:   &checkoutID,
		Gateway:      input.Gateway,
		Token:        input.Token,
		Currency:     checkout.Currency,
		Total:        amount,
		ChargeStatus: ChargeStatusNotCharged,
		IsActive:     true,
		Partial:      input.Partial,
		// a payment covering the whole checkout total triggers order
		// creation once fully charged
		CreateOrder:  amount.Equal(checkout.Total),
		BillingEmail: checkout.Email,
	}
	if input.CustomerID != "" {
		p.CustomerID.String = input.CustomerID
		p.CustomerID.Valid = true
	}
	if input.ReturnURL != "" {
		p.ReturnURL.String = input.ReturnURL
		p.ReturnURL.Valid = true
	}
	p.SnapshotBillingAddress(checkout.BillingAddress)
	if checkout.BillingAddress.Email == "" {
		p.BillingEmail = checkout.Email
	}

	if input.StorePaymentMethod && input.CustomerID != "" {
		if err := s.tokenizeCustomer(ctx, input.Gateway, input.CustomerID); err != nil {
			logging.FromContext(ctx).Warn().Err(err).
				Str("gateway", input.Gateway).
				Msg("failed to store customer at gateway")
		}
	}

	return s.Datastore.InsertPayment(ctx, p, checkout.Total)
}

// tokenizeCustomer stores a gateway-side customer reference if the adapter
// supports it and none is stored yet
func (s *Service) tokenizeCustomer(ctx context.Context, gatewayID, customerID string) error {
	external, err := s.Datastore.GetCustomerExternalID(ctx, customerID, gatewayID)
	if err != nil || external != "" {
		return err
	}
	gw, ok := s.registry.Get(gatewayID)
	if !ok {
		return ErrGatewayNotAvailable
	}
	tokenizer, ok := gw.(gateway.Tokenizer)
	if !ok {
		return nil
	}
	external, err = tokenizer.TokenizeCustomer(ctx, &gateway.PaymentData{CustomerID: customerID})
	if err != nil {
		return err
	}
	return s.Datastore.UpsertCustomer(ctx, customerID, gatewayID, external)
}

// SyncCheckout stores or refreshes the local snapshot of a checkout owned by
// the checkout service
func (s *Service) SyncCheckout(ctx context.Context, info *CheckoutInfo) error {
	if uuid.Equal(info.ID, uuid.Nil) {
		return &ValidationError{
			Code:    ErrorCodeInvalid,
			Field:   "id",
			Message: "Checkout id is required.",
		}
	}
	if !info.Total.IsPositive() {
		return &ValidationError{
			Code:    ErrorCodeInvalid,
			Field:   "total",
			Message: string(ErrNonPositiveAmount),
		}
	}
	return s.Datastore.UpsertCheckoutInfo(ctx, info)
}

// GetPayment returns a payment with its ledger attached
func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	p, err := s.Datastore.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	return s.withTransactions(ctx, p)
}

// ListPayments returns payments, optionally scoped to a checkout
func (s *Service) ListPayments(ctx context.Context, checkoutID *uuid.UUID, activeOnly bool) ([]Payment, error) {
	return s.Datastore.ListPayments(ctx, checkoutID, activeOnly)
}

// Authorize reserves the payment total against the payment method. At most
// one successful auth may exist per payment.
func (s *Service) Authorize(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	return s.run(ctx, paymentID, func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
		if !p.IsActive {
			return nil, ErrPaymentInactive
		}
		if lastSuccessful(txns, gateway.TransactionKindAuth) != nil {
			return nil, ErrAlreadyAuthorized
		}
		gw, ok := s.registry.Get(p.Gateway)
		if !ok {
			return nil, ErrGatewayNotAvailable
		}
		resp, err := gw.Authorize(ctx, s.paymentData(p, p.Total, p.Token))
		return s.record(p, txns, gateway.TransactionKindAuth, p.Total, resp, err, msgUnableToAuthorize)
	})
}

// Capture collects previously reserved funds. A nil amount captures whatever
// remains uncaptured of the payment total.
func (s *Service) Capture(ctx context.Context, paymentID uuid.UUID, amount *decimal.Decimal) (*Payment, error) {
	return s.run(ctx, paymentID, func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
		value := p.Total.Sub(p.CapturedAmount)
		if amount != nil {
			value = *amount
		}
		if !value.IsPositive() {
			return nil, ErrNonPositiveAmount
		}
		if !p.IsActive {
			return nil, ErrPaymentInactive
		}
		auth := lastSuccessful(txns, gateway.TransactionKindAuth)
		if auth == nil {
			return nil, ErrNoAuthTransaction
		}
		if value.GreaterThan(p.Total.Sub(p.CapturedAmount)) {
			return nil, ErrExceedsUncaptured
		}
		gw, ok := s.registry.Get(p.Gateway)
		if !ok {
			return nil, ErrGatewayNotAvailable
		}
		resp, err := gw.Capture(ctx, s.paymentData(p, value, auth.Token))
		return s.record(p, txns, gateway.TransactionKindCapture, value, resp, err, msgUnableToCapture)
	})
}

// Void releases an uncaptured reservation and deactivates the payment
func (s *Service) Void(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	return s.run(ctx, paymentID, func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
		if !p.IsActive {
			return nil, ErrPaymentInactive
		}
		if p.CapturedAmount.IsPositive() {
			return nil, ErrAlreadyCaptured
		}
		auth := lastSuccessful(txns, gateway.TransactionKindAuth)
		if auth == nil {
			return nil, ErrNoAuthTransaction
		}
		gw, ok := s.registry.Get(p.Gateway)
		if !ok {
			return nil, ErrGatewayNotAvailable
		}
		resp, err := gw.Void(ctx, s.paymentData(p, p.Total, auth.Token))
		result, opErr := s.record(p, txns, gateway.TransactionKindVoid, p.Total, resp, err, msgUnableToVoid)
		if opErr == nil && result != nil {
			inactive := false
			result.Update.IsActive = &inactive
		}
		return result, opErr
	})
}

// Refund returns captured funds. A nil amount refunds the full captured
// amount.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID, amount *decimal.Decimal) (*Payment, error) {
	return s.run(ctx, paymentID, func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
		value := p.CapturedAmount
		if amount != nil {
			value = *amount
		}
		if !value.IsPositive() {
			return nil, ErrNonPositiveAmount
		}
		if value.GreaterThan(p.CapturedAmount) {
			return nil, ErrExceedsCaptured
		}
		token := p.Token
		if capture := lastSuccessful(txns, gateway.TransactionKindCapture); capture != nil {
			token = capture.Token
		}
		gw, ok := s.registry.Get(p.Gateway)
		if !ok {
			return nil, ErrGatewayNotAvailable
		}
		resp, err := gw.Refund(ctx, s.paymentData(p, value, token))
		return s.record(p, txns, gateway.TransactionKindRefund, value, resp, err, msgUnableToRefund)
	})
}

// Confirm completes a payment the gateway parked for an additional
// confirmation round-trip
func (s *Service) Confirm(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	return s.run(ctx, paymentID, func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
		return s.confirmOp(ctx, p, txns)
	})
}

func (s *Service) confirmOp(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
	if !p.IsActive {
		return nil, ErrPaymentInactive
	}
	pending := lastSuccessful(txns, gateway.TransactionKindActionToConfirm)
	if pending == nil {
		return nil, ErrNotConfirmable
	}
	gw, ok := s.registry.Get(p.Gateway)
	if !ok {
		return nil, ErrGatewayNotAvailable
	}
	resp, err := gw.Confirm(ctx, s.paymentData(p, p.Total, pending.Token))
	result, opErr := s.record(p, txns, gateway.TransactionKindConfirm, p.Total, resp, err, msgUnableToConfirm)
	if opErr == nil && result != nil {
		confirmed := false
		result.Update.ToConfirm = &confirmed
	}
	return result, opErr
}

// ProcessResult is the outcome of a checkout-complete payment run
type ProcessResult struct {
	Payment *Payment `json:"payment"`
	// ConfirmationNeeded signals the client must complete a confirmation
	// round-trip before the payment settles
	ConfirmationNeeded bool               `json:"confirmationNeeded"`
	ConfirmationData   datastore.Metadata `json:"confirmationData,omitempty"`
}

// ProcessPayment runs the checkout-complete flow: a payment parked for
// confirmation is confirmed, anything else goes through the gateway's process
// call, possibly coming back with a confirmation request instead of settling.
func (s *Service) ProcessPayment(ctx context.Context, paymentID uuid.UUID) (*ProcessResult, error) {
	var confirmationData datastore.Metadata

	p, err := s.run(ctx, paymentID, func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error) {
		if p.ToConfirm {
			return s.confirmOp(ctx, p, txns)
		}
		if !p.IsActive {
			return nil, ErrPaymentInactive
		}
		gw, ok := s.registry.Get(p.Gateway)
		if !ok {
			return nil, ErrGatewayNotAvailable
		}
		resp, err := gw.Process(ctx, s.paymentData(p, p.Total, p.Token))
		result, opErr := s.record(p, txns, gateway.TransactionKindAuth, p.Total, resp, err, msgUnableToProcess)
		if opErr == nil && result != nil && resp != nil && resp.ActionRequired {
			toConfirm := true
			result.Update.ToConfirm = &toConfirm
			confirmationData = resp.ActionRequiredData
		}
		return result, opErr
	})
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		Payment:            p,
		ConfirmationNeeded: p.ToConfirm,
		ConfirmationData:   confirmationData,
	}, nil
}

// InitializePayment hands back the gateway's client session payload
func (s *Service) InitializePayment(ctx context.Context, gatewayID, channel string, data datastore.Metadata) (*gateway.InitializedPayment, error) {
	gw, ok := s.registry.Get(gatewayID)
	if !ok {
		return nil, ErrGatewayNotAvailable
	}
	return gw.Initialize(ctx, channel, data)
}

// ListPaymentSources lists the sources stored at a gateway for a customer
func (s *Service) ListPaymentSources(ctx context.Context, gatewayID, customerID string) ([]gateway.CustomerSource, error) {
	gw, ok := s.registry.Get(gatewayID)
	if !ok {
		return nil, ErrGatewayNotAvailable
	}
	external, err := s.Datastore.GetCustomerExternalID(ctx, customerID, gatewayID)
	if err != nil {
		return nil, err
	}
	if external == "" {
		return nil, nil
	}
	return gw.ListPaymentSources(ctx, external)
}

// run executes op under the payment row lock and reloads the ledger onto the
// returned payment
func (s *Service) run(ctx context.Context, paymentID uuid.UUID, op PaymentOperation) (*Payment, error) {
	p, _, err := s.Datastore.RunPaymentOperation(ctx, paymentID, op)
	if err != nil {
		if p == nil {
			return nil, err
		}
		// a recorded gateway failure still hands the payment back
		var gwErr *GatewayError
		if !errors.As(err, &gwErr) {
			return nil, err
		}
		if p, werr := s.withTransactions(ctx, p); werr == nil {
			return p, err
		}
		return p, err
	}
	return s.withTransactions(ctx, p)
}

func (s *Service) withTransactions(ctx context.Context, p *Payment) (*Payment, error) {
	txns, err := s.Datastore.GetPaymentTransactions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Transactions = txns
	return p, nil
}

func (s *Service) paymentData(p *Payment, amount decimal.Decimal, token string) *gateway.PaymentData {
	return &gateway.PaymentData{
		PaymentID:  p.ID,
		Amount:     amount,
		Currency:   p.Currency,
		Token:      token,
		CustomerID: p.CustomerID.String,
		ReturnURL:  p.ReturnURL.String,
	}
}

// record turns a gateway response, or the lack of one, into the ledger append
// and payment update to persist. The returned error carries the client-facing
// failure message; the attempt itself is recorded either way.
func (s *Service) record(p *Payment, txns []Transaction, kind gateway.TransactionKind, amount decimal.Decimal, resp *gateway.Response, gwErr error, failMsg string) (*OperationResult, error) {
	if gwErr != nil {
		// the adapter never got an answer; record the attempt with the
		// failed kind so reconciliation can pick it up
		t := &Transaction{
			ID:              uuid.NewV4(),
			PaymentID:       p.ID,
			Kind:            failedKind(kind),
			Amount:          amount,
			Currency:        p.Currency,
			GatewayResponse: datastore.Metadata{},
		}
		t.Error.String = failMsg
		t.Error.Valid = true
		return &OperationResult{
			Transaction: t,
			Update:      updateFromLedger(p, append(txns, *t)),
		}, &GatewayError{Message: failMsg, cause: gwErr}
	}

	t := transactionFromResponse(p, resp)
	result := &OperationResult{
		Transaction: t,
		Update:      updateFromLedger(p, append(txns, *t)),
	}
	if resp.PSPReference != "" {
		ref := resp.PSPReference
		result.Update.PSPReference = &ref
	}
	if !resp.IsSuccess {
		msg := failMsg
		if resp.Error != "" {
			msg = resp.Error
		}
		return result, &GatewayError{Message: msg}
	}
	return result, nil
}

// updateFromLedger recomputes the cached aggregate columns from the ledger
// with the candidate row already appended
func updateFromLedger(p *Payment, txns []Transaction) *PaymentUpdate {
	captured := sumSuccessful(txns, gateway.TransactionKindCapture).
		Sub(sumSuccessful(txns, gateway.TransactionKindRefund))
	if captured.IsNegative() {
		captured = decimal.Zero
	}
	status := DeriveChargeStatus(p.Total, txns)
	return &PaymentUpdate{
		CapturedAmount: &captured,
		ChargeStatus:   &status,
	}
}

func failedKind(kind gateway.TransactionKind) gateway.TransactionKind {
	switch kind {
	case gateway.TransactionKindCapture:
		return gateway.TransactionKindCaptureFailed
	case gateway.TransactionKindRefund:
		return gateway.TransactionKindRefundFailed
	}
	return kind
}
