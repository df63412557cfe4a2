package http

import (
	"context"
	"net/http"
	"net/mail"

	"github.com/jmehdipour/lead-gateway/internal/http/middleware"
	"github.com/jmehdipour/lead-gateway/internal/model"
	echo "github.com/labstack/echo/v4"
)

// LeadAcceptor stores and delivers a lead for a resolved tenant.
type LeadAcceptor interface {
	Accept(ctx context.Context, tenantID string, fields model.LeadFields) (string, error)
}

const maxFieldLen = 1000

func submitLeadHandler(leads LeadAcceptor) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID, ok := middleware.TenantIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req model.LeadFields
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req = req.Normalize()
		if msg := validateLead(req); msg != "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
		}

		if _, err := leads.Accept(c.Request().Context(), tenantID, req); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func validateLead(f model.LeadFields) string {
	if f.Name == "" || f.Email == "" {
		return "name and email are required"
	}
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return "invalid email"
	}
	for _, v := range []string{f.Name, f.Email, f.Phone, f.AnnualSalary, f.Source, f.Message, f.SiteID} {
		if len(v) > maxFieldLen {
			return "field too long"
		}
	}
	return ""
}
