package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	"github.com/jmehdipour/lead-gateway/internal/util"
	echo "github.com/labstack/echo/v4"
)

type createTenantReq struct {
	BuyerEmail string `json:"buyer_email"`
	BuyerName  string `json:"buyer_name"`
}

type createTenantResp struct {
	TenantID       string `json:"tenant_id"`
	PublishableKey string `json:"publishable_key"`
}

func createTenantHandler(tenants repository.TenantsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTenantReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		key, err := util.NewPublishableKey()
		if err != nil {
			return writeError(c, err)
		}
		t := model.Tenant{
			ID:             uuid.NewString(),
			BuyerEmail:     optional(req.BuyerEmail),
			BuyerName:      optional(req.BuyerName),
			PublishableKey: key,
			AllowedOrigins: model.Origins{},
			Status:         model.TenantActive,
		}
		if err := tenants.Create(c.Request().Context(), t); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, createTenantResp{TenantID: t.ID, PublishableKey: key})
	}
}

type updateOriginsReq struct {
	TenantID string   `json:"tenantId"`
	Origins  []string `json:"origins"`
}

func updateOriginsHandler(tenants repository.TenantsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateOriginsReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.TenantID = strings.TrimSpace(req.TenantID)
		if req.TenantID == "" || req.Origins == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "tenantId and origins are required"})
		}

		origins := make(model.Origins, 0, len(req.Origins))
		for _, o := range req.Origins {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			if o == "" {
				continue
			}
			if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid origin: " + o})
			}
			origins = append(origins, o)
		}

		err := tenants.UpdateOrigins(c.Request().Context(), req.TenantID, origins)
		if errors.Is(err, repository.ErrTenantNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "tenant not found"})
		}
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
