// Package payment implements the payment transaction state machine: the
// payment aggregate, its append-only transaction ledger, charge status
// derivation and the orchestration of gateway calls.
package payment

import (
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/opencommerce/payment-go/libs/datastore"
)

// ChargeStatus - the aggregate charge state derived from the ledger
type ChargeStatus string

const (
	// ChargeStatusNotCharged - no funds were taken off yet
	ChargeStatusNotCharged ChargeStatus = "not-charged"
	// ChargeStatusPending - the gateway has not settled the last operation yet
	ChargeStatusPending ChargeStatus = "pending"
	// ChargeStatusAuthorized - funds are reserved but not collected
	ChargeStatusAuthorized ChargeStatus = "authorized"
	// ChargeStatusPartiallyCharged - part of the total has been collected
	ChargeStatusPartiallyCharged ChargeStatus = "partially-charged"
	// ChargeStatusFullyCharged - the whole total has been collected
	ChargeStatusFullyCharged ChargeStatus = "fully-charged"
	// ChargeStatusPartiallyRefunded - part of the collected funds were returned
	ChargeStatusPartiallyRefunded ChargeStatus = "partially-refunded"
	// ChargeStatusFullyRefunded - all collected funds were returned
	ChargeStatusFullyRefunded ChargeStatus = "fully-refunded"
	// ChargeStatusRefused - the gateway refused the payment
	ChargeStatusRefused ChargeStatus = "refused"
	// ChargeStatusCancelled - the reservation was voided before capture
	ChargeStatusCancelled ChargeStatus = "cancelled"
)

// OrderAction - an operator action currently legal on a payment
type OrderAction string

const (
	// OrderActionCapture - a successful auth can be captured
	OrderActionCapture OrderAction = "CAPTURE"
	// OrderActionRefund - collected funds can be refunded
	OrderActionRefund OrderAction = "REFUND"
	// OrderActionVoid - an uncaptured reservation can be released
	OrderActionVoid OrderAction = "VOID"
)

// Address - a billing address as consumed from the checkout aggregate
type Address struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
	CountryArea string `json:"countryArea"`
	Email       string `json:"email"`
}

// Payment represents one attempt, full or partial, to collect funds for a
// checkout or order. Billing fields are a snapshot taken at creation time.
type Payment struct {
	ID             uuid.UUID            `json:"id" db:"id"`
	CheckoutID     *uuid.UUID           `json:"checkoutId" db:"checkout_id"`
	OrderID        *uuid.UUID           `json:"orderId" db:"order_id"`
	Gateway        string               `json:"gateway" db:"gateway"`
	Token          string               `json:"token" db:"token"`
	Currency       string               `json:"currency" db:"currency"`
	Total          decimal.Decimal      `json:"total" db:"total"`
	CapturedAmount decimal.Decimal      `json:"capturedAmount" db:"captured_amount"`
	ChargeStatus   ChargeStatus         `json:"chargeStatus" db:"charge_status"`
	IsActive       bool                 `json:"isActive" db:"is_active"`
	Partial        bool                 `json:"partial" db:"partial"`
	ToConfirm      bool                 `json:"toConfirm" db:"to_confirm"`
	CreateOrder    bool                 `json:"createOrder" db:"create_order"`
	CustomerID     datastore.NullString `json:"customerId" db:"customer_id"`
	ReturnURL      datastore.NullString `json:"returnUrl" db:"return_url"`
	PSPReference   datastore.NullString `json:"pspReference" db:"psp_reference"`

	BillingEmail       string `json:"billingEmail" db:"billing_email"`
	BillingFirstName   string `json:"billingFirstName" db:"billing_first_name"`
	BillingLastName    string `json:"billingLastName" db:"billing_last_name"`
	BillingCompanyName string `json:"billingCompanyName" db:"billing_company_name"`
	BillingAddress1    string `json:"billingAddress1" db:"billing_address_1"`
	BillingAddress2    string `json:"billingAddress2" db:"billing_address_2"`
	BillingCity        string `json:"billingCity" db:"billing_city"`
	BillingPostalCode  string `json:"billingPostalCode" db:"billing_postal_code"`
	BillingCountryCode string `json:"billingCountryCode" db:"billing_country_code"`
	BillingCountryArea string `json:"billingCountryArea" db:"billing_country_area"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Transactions []Transaction `json:"transactions,omitempty" db:"-"`
}

// SnapshotBillingAddress copies the checkout billing address onto the payment.
// The copy is immutable thereafter; later address edits do not leak in.
func (p *Payment) SnapshotBillingAddress(a *Address) {
	if a == nil {
		return
	}
	p.BillingEmail = a.Email
	p.BillingFirstName = a.FirstName
	p.BillingLastName = a.LastName
	p.BillingCompanyName = a.CompanyName
	p.BillingAddress1 = a.Address1
	p.BillingAddress2 = a.Address2
	p.BillingCity = a.City
	p.BillingPostalCode = a.PostalCode
	p.BillingCountryCode = a.CountryCode
	p.BillingCountryArea = a.CountryArea
}

// CanCapture - a successful auth exists and nothing prevents capture
func (p *Payment) CanCapture() bool {
	return p.IsActive && p.ChargeStatus == ChargeStatusAuthorized
}

// CanVoid - the reservation has not been captured yet
func (p *Payment) CanVoid() bool {
	return p.IsActive && p.ChargeStatus == ChargeStatusAuthorized
}

// CanRefund - some captured funds remain
func (p *Payment) CanRefund() bool {
	return p.CapturedAmount.IsPositive()
}

// Actions returns the operator actions currently legal on the payment
func (p *Payment) Actions() []OrderAction {
	actions := []OrderAction{}
	if p.CanCapture() {
		actions = append(actions, OrderActionCapture)
	}
	if p.CanRefund() {
		actions = append(actions, OrderActionRefund)
	}
	if p.CanVoid() {
		actions = append(actions, OrderActionVoid)
	}
	return actions
}
