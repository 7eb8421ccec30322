package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
	"github.com/pharmadesk/pharmadesk/pkg/datex"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

const notFound = "appointment not found"

var listFilters = []string{"patient_id", "doctor_id", "clinic_id", "status", "from", "to"}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.List)
	api.POST("/appointments", h.Create)
	api.GET("/appointments/:id", h.Get)
	api.PUT("/appointments/:id", h.Update)
	api.DELETE("/appointments/:id", h.Delete)
	api.PATCH("/appointments/:id/status", h.SetStatus)
	api.GET("/doctors/:id/availability", h.Availability)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, a)
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
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.Update(c.Request().Context(), &a); err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, a)
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
	a, err := h.svc.SetStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		return httperr.From(err, notFound)
	}
	return c.JSON(http.StatusOK, a)
}

// Availability answers for ?date=YYYY-MM-DD, today when omitted.
func (h *Handler) Availability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	day := h.svc.Today()
	if v := c.QueryParam("date"); v != "" {
		if day, err = datex.Parse(v); err != nil {
			return httperr.Invalid("date", "must be YYYY-MM-DD")
		}
	}
	slots, err := h.svc.Availability(c.Request().Context(), id, day)
	if err != nil {
		return httperr.From(err, "doctor not found")
	}
	return c.JSON(http.StatusOK, Availability{
		DoctorID: id,
		Date:     day.String(),
		Slots:    slots,
		Free:     countFree(slots),
	})
}
