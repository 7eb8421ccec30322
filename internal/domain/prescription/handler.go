package prescription

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/export"
	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

const notFound = "prescription not found"

var listFilters = []string{"patient_id", "doctor_id", "status", "from", "to"}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/prescriptions/calculate", h.Calculate)
	api.GET("/prescriptions", h.List)
	api.POST("/prescriptions", h.Create)
	api.GET("/prescriptions/:id", h.Get)
	api.PUT("/prescriptions/:id", h.Update)
	api.DELETE("/prescriptions/:id", h.Delete)
	api.PATCH("/prescriptions/:id/status", h.SetStatus)
	api.GET("/prescriptions/:id/print", h.Print)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Calculate(c echo.Context) error {
	var in CalculateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Calculate(in)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Create(c echo.Context) error {
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, p)
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
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, p)
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

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body StatusUpdate
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.SetStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Print(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	body, p, err := h.svc.Print(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return export.Text(c, fmt.Sprintf("prescription_%s.txt", p.ID.String()[:8]), body)
}
