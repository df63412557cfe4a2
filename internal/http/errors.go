package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/lead-gateway/internal/apperr"
	echo "github.com/labstack/echo/v4"
)

// statusOf maps core error kinds to HTTP statuses; unknown errors are 500.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUnauthorizedTenant:
		return http.StatusUnauthorized
	case apperr.KindNotConnected, apperr.KindMalformedState:
		return http.StatusBadRequest
	case apperr.KindTokenExchangeFailed, apperr.KindSheetSetupFailed, apperr.KindDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": kind, "detail": ...}. Internal errors
// are logged and answered with a generic body.
func writeError(c echo.Context, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, map[string]string{"error": "internal error"})
	}

	body := map[string]string{"error": apperr.KindOf(err).String()}
	var e *apperr.Error
	if errors.As(err, &e) && e.Detail != "" {
		body["detail"] = e.Detail
	}
	return c.JSON(status, body)
}
