package inventory

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/export"
	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

const notFound = "medicine not found"

var listFilters = []string{"category", "active", "low_stock"}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medicines", h.List)
	api.POST("/medicines", h.Create)
	api.GET("/medicines/low-stock", h.LowStock)
	api.GET("/medicines/expiring", h.Expiring)
	api.GET("/medicines/export.csv", h.Export)
	api.GET("/medicines/:id", h.Get)
	api.PUT("/medicines/:id", h.Update)
	api.DELETE("/medicines/:id", h.Delete)
	api.POST("/medicines/:id/stock", h.AdjustStock)
	api.GET("/medicines/:id/batches", h.ListBatches)
	api.POST("/medicines/:id/batches", h.AddBatch)
	api.GET("/medicines/:id/movements", h.Movements)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// medicineRequest tells an omitted "active" apart from false.
type medicineRequest struct {
	Medicine
	Active *bool `json:"active"`
}

func (h *Handler) Create(c echo.Context) error {
	var m Medicine
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &m); err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), pagination.SearchParams(c, pg, listFilters...), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req medicineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m := req.Medicine
	m.ID = id
	if err := h.svc.Update(c.Request().Context(), &m, req.Active); err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httperr.From(err, notFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AdjustStock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var adj StockAdjustment
	if err := c.Bind(&adj); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.AdjustStock(c.Request().Context(), id, adj)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListBatches(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListBatches(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

func (h *Handler) AddBatch(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var b Batch
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddBatch(c.Request().Context(), id, &b); err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Movements(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Movements(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) LowStock(c echo.Context) error {
	items, err := h.svc.LowStock(c.Request().Context())
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) Expiring(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return httperr.Invalid("days", "must be a whole number")
		}
		days = n
	}
	items, err := h.svc.ExpiringBatches(c.Request().Context(), days)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) Export(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.svc.Export(c.Request().Context(), pagination.SearchParams(c, pg, listFilters...))
	if err != nil {
		return httperr.From(err, notFound)
	}
	tbl := export.Table{Header: csvHeader}
	for _, m := range items {
		tbl.Append(m.csvRow()...)
	}
	return export.CSV(c, "medicines", tbl)
}
