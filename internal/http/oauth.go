package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	echo "github.com/labstack/echo/v4"
)

// Provisioner drives the Google OAuth connect flow.
type Provisioner interface {
	BeginAuthorization(ctx context.Context, tenantID string) (string, error)
	CompleteAuthorization(ctx context.Context, code, state string) (tenantID, sheetID string, err error)
}

func oauthStartHandler(p Provisioner) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID := strings.TrimSpace(c.QueryParam("tenantId"))
		if tenantID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing tenantId"})
		}
		redirect, err := p.BeginAuthorization(c.Request().Context(), tenantID)
		if err != nil {
			return writeError(c, err)
		}
		return c.Redirect(http.StatusFound, redirect)
	}
}

func oauthCallbackHandler(p Provisioner, dashboardURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if e := c.QueryParam("error"); e != "" {
			// consent denied or cancelled on Google's side
			return c.JSON(http.StatusBadRequest, map[string]string{"error": e})
		}
		code := c.QueryParam("code")
		if code == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing code"})
		}

		tenantID, sheetID, err := p.CompleteAuthorization(c.Request().Context(), code, c.QueryParam("state"))
		if err != nil {
			return writeError(c, err)
		}
		c.Logger().Infof("tenant %s connected sheet %s", tenantID, sheetID)
		return c.Redirect(http.StatusFound, dashboardRedirect(dashboardURL, tenantID))
	}
}

// dashboardRedirect appends tenant=<id> to the dashboard URL, keeping any query it has.
func dashboardRedirect(dashboardURL, tenantID string) string {
	u, err := url.Parse(dashboardURL)
	if err != nil {
		return dashboardURL + "?tenant=" + url.QueryEscape(tenantID)
	}
	q := u.Query()
	q.Set("tenant", tenantID)
	u.RawQuery = q.Encode()
	return u.String()
}
