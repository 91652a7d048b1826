package payment

import "fmt"

// Error is a fixed-message sentinel returned when a precondition on a payment
// operation fails. These strings are the API surface; they are matched by
// clients and must not change casually.
type Error string

// Error implements the error interface
func (e Error) Error() string {
	return string(e)
}

const (
	// ErrPaymentNotFound - no payment with the given id
	ErrPaymentNotFound Error = "payment: not found"

	// ErrNonPositiveAmount - a money amount must be strictly positive
	ErrNonPositiveAmount Error = "Amount should be a positive number."

	// ErrNoAuthTransaction - capture or void requires a successful auth on the ledger
	ErrNoAuthTransaction Error = "Cannot find successful auth transaction."

	// ErrExceedsUncaptured - capture cannot exceed what remains reserved
	ErrExceedsUncaptured Error = "Unable to charge more than un-captured amount."

	// ErrExceedsCaptured - refund cannot exceed what has been collected
	ErrExceedsCaptured Error = "Cannot refund more than captured."

	// ErrAlreadyCaptured - void is only legal before any capture
	ErrAlreadyCaptured Error = "Cannot void a payment that has been captured."

	// ErrAlreadyAuthorized - a payment holds at most one successful auth
	ErrAlreadyAuthorized Error = "Payment already authorized."

	// ErrPaymentInactive - the payment was deactivated or superseded
	ErrPaymentInactive Error = "This payment is no longer active."

	// ErrNotConfirmable - confirm requires a pending confirmation round-trip
	ErrNotConfirmable Error = "Cannot find transaction to confirm."

	// ErrGatewayNotAvailable - the configured gateway cannot serve this payment
	ErrGatewayNotAvailable Error = "Gateway is not available for this payment."
)

// Generic failure messages recorded when a gateway call does not go through.
const (
	msgUnableToAuthorize = "Unable to authorize the transaction."
	msgUnableToCapture   = "Unable to process capture"
	msgUnableToVoid      = "Unable to void the transaction."
	msgUnableToRefund    = "Unable to process refund"
	msgUnableToProcess   = "Unable to process the payment."
	msgUnableToConfirm   = "Unable to confirm the payment."
)

// GatewayError reports a gateway call that went through to the processor and
// came back refused, or never came back at all. By the time the caller sees
// one, the attempt is already recorded on the ledger.
type GatewayError struct {
	// Message is the client-facing failure string
	Message string
	// cause holds the transport error when the adapter itself failed
	cause error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	return e.Message
}

// Unwrap returns the underlying transport error, if any
func (e *GatewayError) Unwrap() error {
	return e.cause
}

// ErrorCode classifies a create-payment validation failure
type ErrorCode string

const (
	// ErrorCodeNotSupportedGateway - the gateway id cannot serve the checkout
	ErrorCodeNotSupportedGateway ErrorCode = "NOT_SUPPORTED_GATEWAY"
	// ErrorCodeBillingAddressNotSet - the checkout has no billing address
	ErrorCodeBillingAddressNotSet ErrorCode = "BILLING_ADDRESS_NOT_SET"
	// ErrorCodePartialPaymentTotalExceeded - partial amounts would exceed the checkout total
	ErrorCodePartialPaymentTotalExceeded ErrorCode = "PARTIAL_PAYMENT_TOTAL_EXCEEDED"
	// ErrorCodePartialPaymentNotAllowed - a full payment already covers the checkout
	ErrorCodePartialPaymentNotAllowed ErrorCode = "PARTIAL_PAYMENT_NOT_ALLOWED"
	// ErrorCodeInvalid - the input value is not acceptable
	ErrorCodeInvalid ErrorCode = "INVALID"
	// ErrorCodeNotFound - the referenced entity does not exist
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
)

// ValidationError - a create-payment input rejection with a machine readable
// code and the field it concerns
type ValidationError struct {
	Code    ErrorCode `json:"code"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func notSupportedGateway(gatewayID string) *ValidationError {
	return &ValidationError{
		Code:    ErrorCodeNotSupportedGateway,
		Field:   "gateway",
		Message: fmt.Sprintf("The gateway %s is not available for this checkout.", gatewayID),
	}
}

func billingAddressNotSet() *ValidationError {
	return &ValidationError{
		Code:    ErrorCodeBillingAddressNotSet,
		Field:   "billingAddress",
		Message: "No billing address associated with this checkout.",
	}
}

func partialTotalExceeded() *ValidationError {
	return &ValidationError{
		Code:    ErrorCodePartialPaymentTotalExceeded,
		Field:   "amount",
		Message: "Partial payments cannot exceed the checkout total.",
	}
}

func partialNotAllowed() *ValidationError {
	return &ValidationError{
		Code:    ErrorCodePartialPaymentNotAllowed,
		Field:   "partial",
		Message: "A full payment already exists for this checkout.",
	}
}
