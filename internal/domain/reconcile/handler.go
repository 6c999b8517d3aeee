package reconcile

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmacore/pharmacy/internal/domain/order"
	"github.com/pharmacore/pharmacy/internal/domain/payment"
	"github.com/pharmacore/pharmacy/internal/platform/gateway"
)

type Handler struct {
	svc *Service
	// Public client credentials served by the config endpoints.
	stripePublishableKey string
	razorpayKeyID        string
	currency             string
}

func NewHandler(svc *Service, stripePublishableKey, razorpayKeyID, currency string) *Handler {
	return &Handler{
		svc:                  svc,
		stripePublishableKey: stripePublishableKey,
		razorpayKeyID:        razorpayKeyID,
		currency:             currency,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	stripe := api.Group("/stripe")
	stripe.GET("/config", h.StripeConfig)
	stripe.POST("/create-payment-intent/:orderId", h.CreateStripeIntent)
	stripe.POST("/confirm-payment", h.ConfirmStripe)

	razorpay := api.Group("/razorpay")
	razorpay.POST("/create-order/:orderId", h.CreateRazorpayOrder)
	razorpay.POST("/verify-payment", h.VerifyRazorpay)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, payment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, payment.ErrOverpayment):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrSignatureMismatch), errors.Is(err, gateway.ErrVerificationFailed),
		errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrAttemptFailed),
		errors.Is(err, order.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// StripeConfig hands the checkout client its publishable key.
func (h *Handler) StripeConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"publishable_key": h.stripePublishableKey,
		"currency":        h.currency,
	})
}

func (h *Handler) CreateStripeIntent(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var body struct {
		Amount float64 `json:"amount"`
	}
	// Body is optional; an empty body requests the full remaining balance.
	_ = c.Bind(&body)

	intent, err := h.svc.CreateStripeIntent(c.Request().Context(), orderID, body.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, intent)
}

func (h *Handler) ConfirmStripe(c echo.Context) error {
	var body struct {
		OrderID         string `json:"order_id"`
		PaymentIntentID string `json:"payment_intent_id"`
		TransactionID   string `json:"transaction_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.PaymentIntentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "payment_intent_id is required")
	}
	var txn *string
	if body.TransactionID != "" {
		txn = &body.TransactionID
	}
	p, err := h.svc.ConfirmStripe(c.Request().Context(), body.PaymentIntentID, txn)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateRazorpayOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var body struct {
		Amount float64 `json:"amount"`
	}
	_ = c.Bind(&body)

	intent, err := h.svc.CreateRazorpayOrder(c.Request().Context(), orderID, body.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, intent)
}

func (h *Handler) VerifyRazorpay(c echo.Context) error {
	var body struct {
		RazorpayOrderID   string `json:"razorpay_order_id"`
		RazorpayPaymentID string `json:"razorpay_payment_id"`
		RazorpaySignature string `json:"razorpay_signature"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.RazorpayOrderID == "" || body.RazorpayPaymentID == "" || body.RazorpaySignature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}
	p, err := h.svc.VerifyRazorpay(c.Request().Context(), body.RazorpayOrderID, body.RazorpayPaymentID, body.RazorpaySignature)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}
