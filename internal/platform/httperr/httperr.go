// Package httperr maps service errors onto echo HTTP errors.
package httperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/db"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
)

// ValidationBody is the 422 response payload.
type ValidationBody struct {
	Message string            `json:"message"`
	Errors  validation.Errors `json:"errors"`
}

// From converts err into an *echo.HTTPError. notFound is the message used
// for db.ErrNotFound, e.g. "patient not found".
func From(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	if ve, ok := validation.As(err); ok {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ValidationBody{
			Message: "validation failed",
			Errors:  ve,
		})
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, db.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// Invalid builds a 422 for a single field.
func Invalid(field, msg string) error {
	return From(validation.Errors{field: msg}, "")
}
