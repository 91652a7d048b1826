package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentActions(t *testing.T) {
	authorized := Payment{
		Total:          decimal.RequireFromString("100"),
		CapturedAmount: decimal.Zero,
		ChargeStatus:   ChargeStatusAuthorized,
		IsActive:       true,
	}
	assert.Equal(t, []OrderAction{OrderActionCapture, OrderActionVoid}, authorized.Actions())

	charged := Payment{
		Total:          decimal.RequireFromString("100"),
		CapturedAmount: decimal.RequireFromString("100"),
		ChargeStatus:   ChargeStatusFullyCharged,
		IsActive:       true,
	}
	assert.Equal(t, []OrderAction{OrderActionRefund}, charged.Actions())

	refused := Payment{
		Total:        decimal.RequireFromString("100"),
		ChargeStatus: ChargeStatusRefused,
		IsActive:     true,
	}
	assert.Empty(t, refused.Actions())

	inactive := Payment{
		Total:        decimal.RequireFromString("100"),
		ChargeStatus: ChargeStatusAuthorized,
		IsActive:     false,
	}
	assert.Empty(t, inactive.Actions())
}

func TestSnapshotBillingAddress(t *testing.T) {
	addr := &Address{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Address1:    "1 Analytical Way",
		City:        "London",
		PostalCode:  "N1 9GU",
		CountryCode: "GB",
		Email:       "ada@example.com",
	}

	p := Payment{}
	p.SnapshotBillingAddress(addr)

	assert.Equal(t, "Ada", p.BillingFirstName)
	assert.Equal(t, "Lovelace", p.BillingLastName)
	assert.Equal(t, "1 Analytical Way", p.BillingAddress1)
	assert.Equal(t, "GB", p.BillingCountryCode)
	assert.Equal(t, "ada@example.com", p.BillingEmail)

	// later edits to the source address must not leak into the snapshot
	addr.City = "Cambridge"
	assert.Equal(t, "London", p.BillingCity)

	p2 := Payment{BillingCity: "Paris"}
	p2.SnapshotBillingAddress(nil)
	assert.Equal(t, "Paris", p2.BillingCity)
}
