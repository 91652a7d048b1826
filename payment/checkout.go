package payment

import (
	"context"
	"database/sql"
	"encoding/json"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// CheckoutStore is a CheckoutProvider backed by the local checkouts read
// model. The checkout aggregate lives in another service; rows here are
// synced snapshots of the fields payment creation needs.
type CheckoutStore struct {
	ds Datastore
}

// NewCheckoutStore creates a CheckoutStore on top of the payment datastore
func NewCheckoutStore(ds Datastore) *CheckoutStore {
	return &CheckoutStore{ds: ds}
}

// GetCheckout implements CheckoutProvider
func (c *CheckoutStore) GetCheckout(ctx context.Context, checkoutID uuid.UUID) (*CheckoutInfo, error) {
	return c.ds.GetCheckoutInfo(ctx, checkoutID)
}

type checkoutRow struct {
	ID             uuid.UUID       `db:"id"`
	Total          decimal.Decimal `db:"total"`
	Currency       string          `db:"currency"`
	Channel        string          `db:"channel"`
	Email          string          `db:"email"`
	BillingAddress []byte          `db:"billing_address"`
}

// GetCheckoutInfo returns the synced checkout snapshot, nil when missing
func (pg *Postgres) GetCheckoutInfo(ctx context.Context, checkoutID uuid.UUID) (*CheckoutInfo, error) {
	row := checkoutRow{}
	err := pg.RawDB().GetContext(ctx, &row, `
		select id, total, currency, channel, email, billing_address
		from checkouts where id = $1`, checkoutID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	info := &CheckoutInfo{
		ID:       row.ID,
		Total:    row.Total,
		Currency: row.Currency,
		Channel:  row.Channel,
		Email:    row.Email,
	}
	if len(row.BillingAddress) > 0 {
		addr := Address{}
		if err := json.Unmarshal(row.BillingAddress, &addr); err != nil {
			return nil, err
		}
		info.BillingAddress = &addr
	}
	return info, nil
}

// UpsertCheckoutInfo stores or refreshes a checkout snapshot
func (pg *Postgres) UpsertCheckoutInfo(ctx context.Context, info *CheckoutInfo) error {
	var billing []byte
	if info.BillingAddress != nil {
		b, err := json.Marshal(info.BillingAddress)
		if err != nil {
			return err
		}
		billing = b
	}
	_, err := pg.RawDB().ExecContext(ctx, `
		insert into checkouts (id, total, currency, channel, email, billing_address)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (id) do update
		set total = $2, currency = $3, channel = $4, email = $5,
			billing_address = $6, updated_at = current_timestamp`,
		info.ID, info.Total, info.Currency, info.Channel, info.Email, billing)
	return err
}
