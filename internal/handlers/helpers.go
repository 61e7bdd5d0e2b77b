package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yuxzhang97/storefront/internal/errs"
)

// httpError maps the service error taxonomy to HTTP status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errs.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errs.IsInvalidArgument(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errs.IsInvalidState(err):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errs.IsUnavailable(err):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func userIDFrom(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
	}
	return id, nil
}

func CreateCookie(name string, value string, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
