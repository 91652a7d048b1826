package payment

// DO NOT EDIT!
// This code is generated with http://github.com/hexdigest/gowrap tool
// using ../.prom-gowrap.tmpl template

//go:generate gowrap gen -p github.com/opencommerce/payment-go/payment -i Datastore -t ../.prom-gowrap.tmpl -o instrumented_datastore.go

import (
	"context"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
)

// DatastoreWithPrometheus implements Datastore interface with all methods wrapped
// with Prometheus metrics
type DatastoreWithPrometheus struct {
	base         Datastore
	instanceName string
}

var datastoreDurationSummaryVec = promauto.NewSummaryVec(
	prometheus.SummaryOpts{
		Name:       "payment_datastore_duration_seconds",
		Help:       "datastore runtime duration and result",
		MaxAge:     time.Minute,
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	},
	[]string{"instance_name", "method", "result"})

// NewDatastoreWithPrometheus returns an instance of the Datastore decorated with prometheus summary metric
func NewDatastoreWithPrometheus(base Datastore, instanceName string) DatastoreWithPrometheus {
	return DatastoreWithPrometheus{
		base:         base,
		instanceName: instanceName,
	}
}

// BeginTx implements Datastore
func (_d DatastoreWithPrometheus) BeginTx() (tp1 *sqlx.Tx, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "BeginTx", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.BeginTx()
}

// GetCheckoutInfo implements Datastore
func (_d DatastoreWithPrometheus) GetCheckoutInfo(ctx context.Context, checkoutID uuid.UUID) (cp1 *CheckoutInfo, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "GetCheckoutInfo", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.GetCheckoutInfo(ctx, checkoutID)
}

// GetCustomerExternalID implements Datastore
func (_d DatastoreWithPrometheus) GetCustomerExternalID(ctx context.Context, customerID string, gatewayID string) (s1 string, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "GetCustomerExternalID", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.GetCustomerExternalID(ctx, customerID, gatewayID)
}

// GetPayment implements Datastore
func (_d DatastoreWithPrometheus) GetPayment(ctx context.Context, paymentID uuid.UUID) (pp1 *Payment, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "GetPayment", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.GetPayment(ctx, paymentID)
}

// GetPaymentTransactions implements Datastore
func (_d DatastoreWithPrometheus) GetPaymentTransactions(ctx context.Context, paymentID uuid.UUID) (ta1 []Transaction, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "GetPaymentTransactions", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.GetPaymentTransactions(ctx, paymentID)
}

// InsertPayment implements Datastore
func (_d DatastoreWithPrometheus) InsertPayment(ctx context.Context, p *Payment, checkoutTotal decimal.Decimal) (pp1 *Payment, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "InsertPayment", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.InsertPayment(ctx, p, checkoutTotal)
}

// ListPayments implements Datastore
func (_d DatastoreWithPrometheus) ListPayments(ctx context.Context, checkoutID *uuid.UUID, activeOnly bool) (pa1 []Payment, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "ListPayments", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.ListPayments(ctx, checkoutID, activeOnly)
}

// Migrate implements Datastore
func (_d DatastoreWithPrometheus) Migrate(p1 ...uint) (err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "Migrate", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.Migrate(p1...)
}

// NewMigrate implements Datastore
func (_d DatastoreWithPrometheus) NewMigrate() (mp1 *migrate.Migrate, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "NewMigrate", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.NewMigrate()
}

// RawDB implements Datastore
func (_d DatastoreWithPrometheus) RawDB() (dp1 *sqlx.DB) {
	_since := time.Now()
	defer func() {
		result := "ok"
		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "RawDB", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.RawDB()
}

// RollbackTx implements Datastore
func (_d DatastoreWithPrometheus) RollbackTx(tx *sqlx.Tx) {
	_since := time.Now()
	defer func() {
		result := "ok"
		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "RollbackTx", result).Observe(time.Since(_since).Seconds())
	}()
	_d.base.RollbackTx(tx)
}

// RollbackTxAndHandle implements Datastore
func (_d DatastoreWithPrometheus) RollbackTxAndHandle(tx *sqlx.Tx) (err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "RollbackTxAndHandle", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.RollbackTxAndHandle(tx)
}

// RunPaymentOperation implements Datastore
func (_d DatastoreWithPrometheus) RunPaymentOperation(ctx context.Context, paymentID uuid.UUID, op PaymentOperation) (pp1 *Payment, tp1 *Transaction, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "RunPaymentOperation", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.RunPaymentOperation(ctx, paymentID, op)
}

// UpsertCheckoutInfo implements Datastore
func (_d DatastoreWithPrometheus) UpsertCheckoutInfo(ctx context.Context, info *CheckoutInfo) (err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "UpsertCheckoutInfo", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.UpsertCheckoutInfo(ctx, info)
}

// UpsertCustomer implements Datastore
func (_d DatastoreWithPrometheus) UpsertCustomer(ctx context.Context, customerID string, gatewayID string, externalID string) (err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		datastoreDurationSummaryVec.WithLabelValues(_d.instanceName, "UpsertCustomer", result).Observe(time.Since(_since).Seconds())
	}()
	return _d.base.UpsertCustomer(ctx, customerID, gatewayID, externalID)
}
