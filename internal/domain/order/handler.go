package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmacore/pharmacy/internal/platform/auth"
	"github.com/pharmacore/pharmacy/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/medicine-orders")

	g.GET("/my-orders", h.MyOrders)

	staff := g.Group("", auth.RequireRole("admin", "pharmacy"))
	staff.POST("", h.Create)
	staff.GET("/:id", h.Get)
	staff.GET("/number/:orderNumber", h.GetByNumber)
	staff.GET("/status/:status", h.ListByStatus)
	staff.GET("/payment-pending", h.ListPaymentPending)
	staff.PUT("/:id/confirm", h.Confirm)
	staff.PUT("/:id/process", h.Process)
	staff.PUT("/:id/ready", h.MarkReady)
	staff.PUT("/:id/deliver", h.Deliver)
	staff.PUT("/:id/cancel", h.Cancel)
	staff.PUT("/:id/pay", h.MarkPaid)
	staff.PUT("/:id/status", h.SetStatus)
}

// httpError maps domain errors onto REST status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRefundRequired):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvalidOrder):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) GetByNumber(c echo.Context) error {
	o, err := h.svc.GetByNumber(c.Request().Context(), c.Param("orderNumber"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListByStatus(c echo.Context) error {
	status, err := ParseFulfillmentStatus(c.Param("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByStatus(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPaymentPending(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPaymentPending(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// MyOrders lists orders belonging to the authenticated patient.
func (h *Handler) MyOrders(c echo.Context) error {
	actor := auth.UserIDFromContext(c.Request().Context())
	pid, err := uuid.Parse(actor)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "actor is not a patient identity")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.applyTransition(c, h.svc.Confirm)
}

func (h *Handler) Process(c echo.Context) error {
	return h.applyTransition(c, h.svc.Process)
}

func (h *Handler) MarkReady(c echo.Context) error {
	return h.applyTransition(c, h.svc.MarkReady)
}

func (h *Handler) Deliver(c echo.Context) error {
	return h.applyTransition(c, h.svc.Deliver)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.applyTransition(c, h.svc.Cancel)
}

func (h *Handler) MarkPaid(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	o, err := h.svc.MarkPaid(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status, err := ParseFulfillmentStatus(body.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.SetStatus(c.Request().Context(), id, status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) applyTransition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Order, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := fn(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}
