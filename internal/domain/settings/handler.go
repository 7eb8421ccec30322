package settings

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/settings", h.Get)
	api.PUT("/settings", h.Update)
	api.POST("/settings/theme/toggle", h.ToggleTheme)
}

func (h *Handler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Get())
}

func (h *Handler) Update(c echo.Context) error {
	var in Update
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	prefs, err := h.svc.Set(c.Request().Context(), in)
	if err != nil {
		return httperr.From(err, "settings not found")
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *Handler) ToggleTheme(c echo.Context) error {
	prefs, err := h.svc.ToggleTheme(c.Request().Context())
	if err != nil {
		return httperr.From(err, "settings not found")
	}
	return c.JSON(http.StatusOK, prefs)
}
