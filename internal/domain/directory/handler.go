package directory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
	"github.com/pharmadesk/pharmadesk/pkg/pagination"
)

const (
	doctorNotFound = "doctor not found"
	clinicNotFound = "clinic not found"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors", h.ListDoctors)
	api.POST("/doctors", h.CreateDoctor)
	api.GET("/doctors/:id", h.GetDoctor)
	api.PUT("/doctors/:id", h.UpdateDoctor)
	api.DELETE("/doctors/:id", h.DeleteDoctor)

	api.GET("/clinics", h.ListClinics)
	api.POST("/clinics", h.CreateClinic)
	api.GET("/clinics/:id", h.GetClinic)
	api.PUT("/clinics/:id", h.UpdateClinic)
	api.DELETE("/clinics/:id", h.DeleteClinic)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// Update payloads carry Active as a pointer so an omitted field keeps the
// stored value.
type doctorRequest struct {
	Doctor
	Active *bool `json:"active"`
}

type clinicRequest struct {
	Clinic
	Active *bool `json:"active"`
}

// -- Doctor --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return httperr.From(err, doctorNotFound)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, doctorNotFound)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := pagination.SearchParams(c, pg, "clinic_id", "specialty", "active")
	items, total, err := h.svc.SearchDoctors(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, doctorNotFound)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req doctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := req.Doctor
	d.ID = id
	if err := h.svc.UpdateDoctor(c.Request().Context(), &d, req.Active); err != nil {
		return httperr.From(err, doctorNotFound)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return httperr.From(err, doctorNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Clinic --

func (h *Handler) CreateClinic(c echo.Context) error {
	var cl Clinic
	if err := c.Bind(&cl); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateClinic(c.Request().Context(), &cl); err != nil {
		return httperr.From(err, clinicNotFound)
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cl, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err, clinicNotFound)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClinics(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchClinics(c.Request().Context(), pagination.SearchParams(c, pg, "active"), pg.Limit, pg.Offset)
	if err != nil {
		return httperr.From(err, clinicNotFound)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req clinicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cl := req.Clinic
	cl.ID = id
	if err := h.svc.UpdateClinic(c.Request().Context(), &cl, req.Active); err != nil {
		return httperr.From(err, clinicNotFound)
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) DeleteClinic(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteClinic(c.Request().Context(), id); err != nil {
		return httperr.From(err, clinicNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}
