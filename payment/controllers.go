package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/opencommerce/payment-go/libs/datastore"
	"github.com/opencommerce/payment-go/libs/handlers"
	"github.com/opencommerce/payment-go/libs/inputs"
	"github.com/opencommerce/payment-go/libs/middleware"
	"github.com/opencommerce/payment-go/libs/requestutils"
)

// Router for payment endpoints
func Router(service *Service) chi.Router {
	r := chi.NewRouter()

	r.Method("POST", "/", middleware.InstrumentHandler("CreatePayment", CreatePayment(service)))
	r.Method("GET", "/", middleware.InstrumentHandler("ListPayments", ListPayments(service)))
	r.Method("GET", "/gateways", middleware.InstrumentHandler("ListGateways", ListGateways(service)))
	r.Method("POST", "/initialize", middleware.InstrumentHandler("InitializePayment", InitializePayment(service)))
	r.Method("GET", "/sources", middleware.InstrumentHandler("ListPaymentSources", ListPaymentSources(service)))
	r.Method("POST", "/checkouts", middleware.InstrumentHandler("SyncCheckout", SyncCheckout(service)))

	r.Method("GET", "/{paymentID}", middleware.InstrumentHandler("GetPayment", GetPayment(service)))
	r.Method("POST", "/{paymentID}/authorize", middleware.InstrumentHandler("AuthorizePayment", AuthorizePayment(service)))
	r.Method("POST", "/{paymentID}/capture", middleware.InstrumentHandler("CapturePayment", CapturePayment(service)))
	r.Method("POST", "/{paymentID}/void", middleware.InstrumentHandler("VoidPayment", VoidPayment(service)))
	r.Method("POST", "/{paymentID}/refund", middleware.InstrumentHandler("RefundPayment", RefundPayment(service)))
	r.Method("POST", "/{paymentID}/confirm", middleware.InstrumentHandler("ConfirmPayment", ConfirmPayment(service)))
	r.Method("POST", "/{paymentID}/process", middleware.InstrumentHandler("ProcessPayment", ProcessPayment(service)))

	return r
}

// paymentError maps a service failure onto the wire shape clients match on
func paymentError(err error) *handlers.AppError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &handlers.AppError{
			Cause:     verr,
			Message:   verr.Message,
			ErrorCode: string(verr.Code),
			Code:      http.StatusBadRequest,
			Data: map[string]interface{}{
				"field": verr.Field,
			},
		}
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return &handlers.AppError{
			Cause:   gwErr,
			Message: gwErr.Message,
			Code:    http.StatusBadRequest,
		}
	}

	var perr Error
	if errors.As(err, &perr) {
		code := http.StatusBadRequest
		if perr == ErrPaymentNotFound {
			code = http.StatusNotFound
		}
		return &handlers.AppError{
			Cause:   perr,
			Message: string(perr),
			Code:    code,
		}
	}

	return handlers.WrapError(err, "Error processing payment", http.StatusInternalServerError)
}

func paymentID(r *http.Request) (uuid.UUID, *handlers.AppError) {
	var id = new(inputs.ID)
	if err := inputs.DecodeAndValidateString(context.Background(), id, chi.URLParam(r, "paymentID")); err != nil {
		return uuid.Nil, handlers.ValidationError("request url parameter", map[string]interface{}{
			"paymentID": err.Error(),
		})
	}
	return *id.UUID(), nil
}

// CreatePaymentRequest includes the checkout reference and gateway selection
// for a new payment
type CreatePaymentRequest struct {
	CheckoutID         string           `json:"checkoutId" valid:"required,uuidv4"`
	Gateway            string           `json:"gateway" valid:"required"`
	Token              string           `json:"token" valid:"-"`
	Amount             *decimal.Decimal `json:"amount" valid:"-"`
	Partial            bool             `json:"partial" valid:"-"`
	CustomerID         string           `json:"customerId" valid:"-"`
	StorePaymentMethod bool             `json:"storePaymentMethod" valid:"-"`
	ReturnURL          string           `json:"returnUrl" valid:"url,optional"`
}

// CreatePayment is the handler for creating a new payment against a checkout
func CreatePayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req CreatePaymentRequest
		err := requestutils.ReadJSON(r.Context(), r.Body, &req)
		if err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		_, err = govalidator.ValidateStruct(req)
		if err != nil {
			return handlers.WrapValidationError(err)
		}

		checkoutID, err := uuid.FromString(req.CheckoutID)
		if err != nil {
			return handlers.ValidationError("request body", map[string]interface{}{
				"checkoutId": "must be a uuidv4",
			})
		}

		payment, err := service.CreatePayment(r.Context(), &CreatePaymentInput{
			CheckoutID:         checkoutID,
			Gateway:            req.Gateway,
			Token:              req.Token,
			Amount:             req.Amount,
			Partial:            req.Partial,
			CustomerID:         req.CustomerID,
			StorePaymentMethod: req.StorePaymentMethod,
			ReturnURL:          req.ReturnURL,
		})
		if err != nil {
			return paymentError(err)
		}

		return handlers.RenderContent(r.Context(), payment, w, http.StatusCreated)
	})
}

// ListPayments lists payments, optionally scoped to a checkout
func ListPayments(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var checkoutID *uuid.UUID
		if raw := r.URL.Query().Get("checkoutId"); raw != "" {
			id, err := uuid.FromString(raw)
			if err != nil {
				return handlers.ValidationError("request query parameter", map[string]interface{}{
					"checkoutId": "must be a uuidv4",
				})
			}
			checkoutID = &id
		}
		activeOnly := r.URL.Query().Get("active") == "true"

		payments, err := service.ListPayments(r.Context(), checkoutID, activeOnly)
		if err != nil {
			return paymentError(err)
		}

		out := make([]PaymentResponse, len(payments))
		for i := range payments {
			out[i] = PaymentResponse{
				Payment: &payments[i],
				Actions: payments[i].Actions(),
			}
		}
		return handlers.RenderContent(r.Context(), out, w, http.StatusOK)
	})
}

// PaymentResponse decorates a payment with its currently legal actions
type PaymentResponse struct {
	*Payment
	Actions []OrderAction `json:"actions"`
}

// GetPayment retrieves a payment with its ledger and available actions
func GetPayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		id, appErr := paymentID(r)
		if appErr != nil {
			return appErr
		}

		payment, err := service.GetPayment(r.Context(), id)
		if err != nil {
			return paymentError(err)
		}

		return handlers.RenderContent(r.Context(), &PaymentResponse{
			Payment: payment,
			Actions: payment.Actions(),
		}, w, http.StatusOK)
	})
}

// AuthorizePayment reserves the payment total against the payment method
func AuthorizePayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		id, appErr := paymentID(r)
		if appErr != nil {
			return appErr
		}

		payment, err := service.Authorize(r.Context(), id)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), payment, w, http.StatusOK)
	})
}

// AmountRequest carries the optional amount of a capture or refund
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount" valid:"-"`
}

func readAmount(r *http.Request) (*decimal.Decimal, *handlers.AppError) {
	if r.ContentLength == 0 {
		return nil, nil
	}
	var req AmountRequest
	if err := requestutils.ReadJSON(r.Context(), r.Body, &req); err != nil {
		return nil, handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
	}
	return req.Amount, nil
}

// CapturePayment collects previously reserved funds
func CapturePayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		id, appErr := paymentID(r)
		if appErr != nil {
			return appErr
		}
		amount, appErr := readAmount(r)
		if appErr != nil {
			return appErr
		}

		payment, err := service.Capture(r.Context(), id, amount)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), payment, w, http.StatusOK)
	})
}

// VoidPayment releases an uncaptured reservation
func VoidPayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		id, appErr := paymentID(r)
		if appErr != nil {
			return appErr
		}

		payment, err := service.Void(r.Context(), id)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), payment, w, http.StatusOK)
	})
}

// RefundPayment returns captured funds
func RefundPayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		id, appErr := paymentID(r)
		if appErr != nil {
			return appErr
		}
		amount, appErr := readAmount(r)
		if appErr != nil {
			return appErr
		}

		payment, err := service.Refund(r.Context(), id, amount)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), payment, w, http.StatusOK)
	})
}

// ConfirmPayment completes a pending confirmation round-trip
func ConfirmPayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		id, appErr := paymentID(r)
		if appErr != nil {
			return appErr
		}

		payment, err := service.Confirm(r.Context(), id)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), payment, w, http.StatusOK)
	})
}

// ProcessPayment runs the checkout-complete payment flow
func ProcessPayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		id, appErr := paymentID(r)
		if appErr != nil {
			return appErr
		}

		result, err := service.ProcessPayment(r.Context(), id)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), result, w, http.StatusOK)
	})
}

// ListGateways lists the active gateways for a currency
func ListGateways(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		gateways := service.AvailableGateways(r.URL.Query().Get("currency"))
		return handlers.RenderContent(r.Context(), gateways, w, http.StatusOK)
	})
}

// InitializePaymentRequest selects the gateway and channel to initialize
type InitializePaymentRequest struct {
	Gateway string             `json:"gateway" valid:"required"`
	Channel string             `json:"channel" valid:"-"`
	Data    datastore.Metadata `json:"data" valid:"-"`
}

// InitializePayment hands back the gateway's client session payload
func InitializePayment(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var req InitializePaymentRequest
		err := requestutils.ReadJSON(r.Context(), r.Body, &req)
		if err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}
		_, err = govalidator.ValidateStruct(req)
		if err != nil {
			return handlers.WrapValidationError(err)
		}

		initialized, err := service.InitializePayment(r.Context(), req.Gateway, req.Channel, req.Data)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), initialized, w, http.StatusOK)
	})
}

// SyncCheckout stores or refreshes a checkout snapshot from the checkout
// service
func SyncCheckout(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		var info CheckoutInfo
		if err := requestutils.ReadJSON(r.Context(), r.Body, &info); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		if err := service.SyncCheckout(r.Context(), &info); err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), info, w, http.StatusOK)
	})
}

// ListPaymentSources lists the stored sources of a customer at a gateway
func ListPaymentSources(service *Service) handlers.AppHandler {
	return handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		gatewayID := r.URL.Query().Get("gateway")
		customerID := r.URL.Query().Get("customerId")
		if gatewayID == "" || customerID == "" {
			return handlers.ValidationError("request query parameter", map[string]interface{}{
				"gateway":    "gateway is required",
				"customerId": "customerId is required",
			})
		}

		sources, err := service.ListPaymentSources(r.Context(), gatewayID, customerID)
		if err != nil {
			return paymentError(err)
		}
		return handlers.RenderContent(r.Context(), sources, w, http.StatusOK)
	})
}
