package payment

import (
	"context"
	"database/sql"
	"os"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/opencommerce/payment-go/libs/datastore"
)

// PaymentUpdate carries the payment field deltas an operation wants committed
// atomically with its ledger append. Nil fields are left untouched.
type PaymentUpdate struct {
	CapturedAmount *decimal.Decimal
	ChargeStatus   *ChargeStatus
	IsActive       *bool
	ToConfirm      *bool
	PSPReference   *string
}

// OperationResult is what a payment operation wants persisted. A nil result
// persists nothing; a non-nil result is persisted even when the operation also
// returns an error, so failed gateway attempts still land on the ledger.
type OperationResult struct {
	Transaction *Transaction
	Update      *PaymentUpdate
}

// PaymentOperation runs against a payment while its row is locked. The
// supplied payment and ledger are consistent snapshots; no other operation on
// the same payment can interleave until the surrounding transaction commits.
type PaymentOperation func(ctx context.Context, p *Payment, txns []Transaction) (*OperationResult, error)

// Datastore abstracts payment persistence
type Datastore interface {
	datastore.Datastore
	// InsertPayment creates a payment, enforcing the per-checkout amount
	// invariants under a lock on the checkout's active payments
	InsertPayment(ctx context.Context, p *Payment, checkoutTotal decimal.Decimal) (*Payment, error)
	// GetPayment returns a payment by id, nil when missing
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error)
	// GetPaymentTransactions returns the payment's ledger, oldest first
	GetPaymentTransactions(ctx context.Context, paymentID uuid.UUID) ([]Transaction, error)
	// ListPayments returns payments, optionally scoped to a checkout
	ListPayments(ctx context.Context, checkoutID *uuid.UUID, activeOnly bool) ([]Payment, error)
	// RunPaymentOperation executes op while holding a row lock on the payment
	// and persists whatever the op hands back in the same database transaction
	RunPaymentOperation(ctx context.Context, paymentID uuid.UUID, op PaymentOperation) (*Payment, *Transaction, error)
	// UpsertCustomer stores a gateway-side customer reference
	UpsertCustomer(ctx context.Context, customerID, gatewayID, externalID string) error
	// GetCustomerExternalID fetches a stored gateway-side customer reference
	GetCustomerExternalID(ctx context.Context, customerID, gatewayID string) (string, error)
	// GetCheckoutInfo returns the synced checkout snapshot, nil when missing
	GetCheckoutInfo(ctx context.Context, checkoutID uuid.UUID) (*CheckoutInfo, error)
	// UpsertCheckoutInfo stores or refreshes a checkout snapshot
	UpsertCheckoutInfo(ctx context.Context, info *CheckoutInfo) error
}

// Postgres is a Datastore wrapper around a postgres database
type Postgres struct {
	datastore.Postgres
}

// NewPostgres creates a new payment Postgres Datastore
func NewPostgres(databaseURL string, performMigration bool) (Datastore, error) {
	pg, err := datastore.NewPostgres(databaseURL, performMigration)
	if pg != nil {
		return &DatastoreWithPrometheus{
			base: &Postgres{*pg}, instanceName: "payment_datastore",
		}, err
	}
	return nil, err
}

// NewDB creates a payment Datastore from environment configuration
func NewDB() (Datastore, error) {
	return NewPostgres(os.Getenv("DATABASE_URL"), true)
}

const paymentColumns = `
	id, checkout_id, order_id, gateway, token, currency, total, captured_amount,
	charge_status, is_active, partial, to_confirm, create_order, customer_id,
	return_url, psp_reference,
	billing_email, billing_first_name, billing_last_name, billing_company_name,
	billing_address_1, billing_address_2, billing_city, billing_postal_code,
	billing_country_code, billing_country_area`

// InsertPayment creates a payment row. When the payment belongs to a checkout
// the checkout's active payments are locked first: a full payment deactivates
// whatever was active before it, while a partial payment is admitted only if
// every active sibling is partial and the combined totals stay within the
// checkout total.
func (pg *Postgres) InsertPayment(ctx context.Context, p *Payment, checkoutTotal decimal.Decimal) (*Payment, error) {
	tx, err := pg.BeginTx()
	if err != nil {
		return nil, err
	}
	defer pg.RollbackTx(tx)

	if p.CheckoutID != nil {
		// serialize creations per checkout on the checkout row; locking only
		// the active payment rows would let two first payments race past the
		// amount guard when the active set is still empty
		var lockedID uuid.UUID
		err = tx.Get(&lockedID, `select id from checkouts where id = $1 for update`, *p.CheckoutID)
		if err != nil {
			return nil, err
		}

		active := []Payment{}
		err = tx.Select(&active,
			`select `+paymentColumns+`, created_at, updated_at
			from payments where checkout_id = $1 and is_active order by created_at`,
			*p.CheckoutID)
		if err != nil {
			return nil, err
		}

		if p.Partial {
			sum := p.Total
			for _, sibling := range active {
				if !sibling.Partial {
					return nil, partialNotAllowed()
				}
				sum = sum.Add(sibling.Total)
			}
			if sum.GreaterThan(checkoutTotal) {
				return nil, partialTotalExceeded()
			}
		} else if len(active) > 0 {
			// a fresh full payment supersedes everything active before it
			_, err = tx.Exec(
				`update payments set is_active = false, updated_at = current_timestamp
				where checkout_id = $1 and is_active`,
				*p.CheckoutID)
			if err != nil {
				return nil, err
			}
		}
	}

	if uuid.Equal(p.ID, uuid.Nil) {
		p.ID = uuid.NewV4()
	}
	if p.ChargeStatus == "" {
		p.ChargeStatus = ChargeStatusNotCharged
	}

	created := Payment{}
	err = tx.Get(&created, `
		insert into payments (`+paymentColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		returning *`,
		p.ID, p.CheckoutID, p.OrderID, p.Gateway, p.Token, p.Currency, p.Total,
		p.CapturedAmount, p.ChargeStatus, p.IsActive, p.Partial, p.ToConfirm,
		p.CreateOrder, p.CustomerID, p.ReturnURL, p.PSPReference,
		p.BillingEmail, p.BillingFirstName, p.BillingLastName, p.BillingCompanyName,
		p.BillingAddress1, p.BillingAddress2, p.BillingCity, p.BillingPostalCode,
		p.BillingCountryCode, p.BillingCountryArea)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPayment returns a payment by id, nil when missing
func (pg *Postgres) GetPayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	p := Payment{}
	err := pg.RawDB().GetContext(ctx, &p, `select * from payments where id = $1`, paymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetPaymentTransactions returns the payment's ledger, oldest first
func (pg *Postgres) GetPaymentTransactions(ctx context.Context, paymentID uuid.UUID) ([]Transaction, error) {
	txns := []Transaction{}
	err := pg.RawDB().SelectContext(ctx, &txns,
		`select * from transactions where payment_id = $1 order by created_at, id`, paymentID)
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// ListPayments returns payments newest first, optionally scoped to a checkout
// and to active payments only
func (pg *Postgres) ListPayments(ctx context.Context, checkoutID *uuid.UUID, activeOnly bool) ([]Payment, error) {
	stmt := `select * from payments`
	args := []interface{}{}
	where := ``
	if checkoutID != nil {
		where = ` where checkout_id = $1`
		args = append(args, *checkoutID)
	}
	if activeOnly {
		if where == "" {
			where = ` where is_active`
		} else {
			where += ` and is_active`
		}
	}
	stmt += where + ` order by created_at desc`

	payments := []Payment{}
	if err := pg.RawDB().SelectContext(ctx, &payments, stmt, args...); err != nil {
		return nil, err
	}
	return payments, nil
}

// RunPaymentOperation locks the payment row, loads its ledger, runs op and
// commits whatever op handed back. The lock spans the whole op, gateway call
// included, so at most one operation per payment is ever in flight. The op's
// error is returned as-is after persistence; callers can rely on a non-nil
// result having been recorded even when err != nil.
func (pg *Postgres) RunPaymentOperation(ctx context.Context, paymentID uuid.UUID, op PaymentOperation) (*Payment, *Transaction, error) {
	tx, err := pg.BeginTx()
	if err != nil {
		return nil, nil, err
	}
	defer pg.RollbackTx(tx)

	p := Payment{}
	err = tx.Get(&p, `select * from payments where id = $1 for update`, paymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}

	txns := []Transaction{}
	err = tx.Select(&txns,
		`select * from transactions where payment_id = $1 order by created_at, id`, paymentID)
	if err != nil {
		return nil, nil, err
	}

	result, opErr := op(ctx, &p, txns)
	if result == nil {
		return nil, nil, opErr
	}

	var appended *Transaction
	if result.Transaction != nil {
		appended = result.Transaction
		if uuid.Equal(appended.ID, uuid.Nil) {
			appended.ID = uuid.NewV4()
		}
		appended.PaymentID = p.ID
		err = tx.Get(appended, `
			insert into transactions (id, payment_id, kind, is_success, action_required,
				amount, currency, token, error, gateway_response)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			returning *`,
			appended.ID, appended.PaymentID, appended.Kind, appended.IsSuccess,
			appended.ActionRequired, appended.Amount, appended.Currency,
			appended.Token, appended.Error, appended.GatewayResponse)
		if err != nil {
			return nil, nil, err
		}
	}

	if result.Update != nil {
		u := result.Update
		if u.CapturedAmount != nil {
			p.CapturedAmount = *u.CapturedAmount
		}
		if u.ChargeStatus != nil {
			p.ChargeStatus = *u.ChargeStatus
		}
		if u.IsActive != nil {
			p.IsActive = *u.IsActive
		}
		if u.ToConfirm != nil {
			p.ToConfirm = *u.ToConfirm
		}
		if u.PSPReference != nil {
			p.PSPReference.String = *u.PSPReference
			p.PSPReference.Valid = *u.PSPReference != ""
		}
		err = tx.Get(&p, `
			update payments
			set captured_amount = $2, charge_status = $3, is_active = $4,
				to_confirm = $5, psp_reference = $6, updated_at = current_timestamp
			where id = $1
			returning *`,
			p.ID, p.CapturedAmount, p.ChargeStatus, p.IsActive, p.ToConfirm, p.PSPReference)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &p, appended, opErr
}

// UpsertCustomer stores a gateway-side customer reference
func (pg *Postgres) UpsertCustomer(ctx context.Context, customerID, gatewayID, externalID string) error {
	_, err := pg.RawDB().ExecContext(ctx, `
		insert into customers (customer_id, gateway, external_id)
		values ($1, $2, $3)
		on conflict (customer_id, gateway) do update
		set external_id = $3, updated_at = current_timestamp`,
		customerID, gatewayID, externalID)
	return err
}

// GetCustomerExternalID fetches a stored gateway-side customer reference,
// empty when none is stored
func (pg *Postgres) GetCustomerExternalID(ctx context.Context, customerID, gatewayID string) (string, error) {
	var externalID string
	err := pg.RawDB().GetContext(ctx, &externalID,
		`select external_id from customers where customer_id = $1 and gateway = $2`,
		customerID, gatewayID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return externalID, nil
}
