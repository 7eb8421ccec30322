package sales

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/export"
	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

const notFound = "sale not found"

var listFilters = []string{"patient_id", "payment_method", "status", "from", "to"}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/sales/quote", h.Quote)
	api.GET("/sales", h.List)
	api.POST("/sales", h.Create)
	api.GET("/sales/export.csv", h.Export)
	api.GET("/sales/:id", h.Get)
	api.POST("/sales/:id/void", h.Void)
	api.GET("/sales/:id/receipt", h.Receipt)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Quote(c echo.Context) error {
	var in SaleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sale, err := h.svc.Quote(c.Request().Context(), in)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, sale)
}

func (h *Handler) Create(c echo.Context) error {
	var in SaleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sale, err := h.svc.CreateSale(c.Request().Context(), in)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusCreated, sale)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	sale, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, sale)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), pagination.SearchParams(c, pg, listFilters...), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Void(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in VoidInput
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	sale, err := h.svc.Void(c.Request().Context(), id, in)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, sale)
}

func (h *Handler) Receipt(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	body, err := h.svc.Receipt(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return export.Text(c, fmt.Sprintf("receipt_%s.txt", id.String()[:8]), body)
}

func (h *Handler) Export(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.svc.Export(c.Request().Context(), pagination.SearchParams(c, pg, listFilters...))
	if err != nil {
		return httperr.From(err, notFound)
	}
	tbl := export.Table{Header: csvHeader}
	for _, s := range items {
		tbl.Append(s.csvRow()...)
	}
	return export.CSV(c, "sales", tbl)
}
