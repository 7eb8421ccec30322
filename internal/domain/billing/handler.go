package billing

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/export"
	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

const (
	invoiceNotFound = "invoice not found"
	planNotFound    = "plan not found"
	saleNotFound    = "sale not found"
)

var invoiceFilterKeys = []string{"status", "patient_id", "sale_id", "from", "to"}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/invoices", h.ListInvoices)
	api.POST("/invoices", h.CreateInvoice)
	api.GET("/invoices/export.csv", h.ExportInvoices)
	api.POST("/invoices/from-sale/:id", h.InvoiceFromSale)
	api.GET("/invoices/:id", h.GetInvoice)
	api.PATCH("/invoices/:id/status", h.SetInvoiceStatus)
	api.POST("/invoices/:id/pay", h.PayInvoice)

	api.GET("/plans", h.ListPlans)
	api.POST("/plans", h.CreatePlan)
	api.GET("/plans/:id", h.GetPlan)
	api.PUT("/plans/:id", h.UpdatePlan)
	api.POST("/plans/:id/deactivate", h.DeactivatePlan)
	api.POST("/plans/:id/checkout", h.Checkout)

	api.GET("/payments", h.ListPayments)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var in InvoiceInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.CreateInvoice(c.Request().Context(), in)
	if err != nil {
		return httperr.From(err, invoiceNotFound)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) InvoiceFromSale(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.InvoiceFromSale(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, saleNotFound)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, invoiceNotFound)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchInvoices(c.Request().Context(), pagination.SearchParams(c, pg, invoiceFilterKeys...), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, invoiceNotFound)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) SetInvoiceStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in StatusUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	inv, err := h.svc.SetStatus(c.Request().Context(), id, in.Status)
	if err != nil {
		return httperr.From(err, invoiceNotFound)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) PayInvoice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.MarkPaid(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, invoiceNotFound)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ExportInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.svc.ExportInvoices(c.Request().Context(), pagination.SearchParams(c, pg, invoiceFilterKeys...))
	if err != nil {
		return httperr.From(err, invoiceNotFound)
	}
	tbl := export.Table{Header: invoiceCSVHeader}
	for _, inv := range items {
		tbl.Append(invoiceCSVRow(inv)...)
	}
	return export.CSV(c, "invoices", tbl)
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var in PlanInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CreatePlan(c.Request().Context(), in)
	if err != nil {
		return httperr.From(err, planNotFound)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPlan(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, planNotFound)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in PlanInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePlan(c.Request().Context(), id, in)
	if err != nil {
		return httperr.From(err, planNotFound)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivatePlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.DeactivatePlan(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, planNotFound)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPlans(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchPlans(c.Request().Context(), pagination.SearchParams(c, pg, "interval", "active"), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, planNotFound)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// Checkout always answers 200 once the plan exists; declines are reported
// in the body.
func (h *Handler) Checkout(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in CheckoutInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ProcessPayment(c.Request().Context(), id, in.Method)
	if err != nil {
		return httperr.From(err, planNotFound)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListPayments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchPayments(c.Request().Context(), pagination.SearchParams(c, pg, "plan_id", "provider", "success"), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, "payment not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
