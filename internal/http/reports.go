package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listLeadsHandler(chRepo repository.CHLeadsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if chRepo == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "reporting disabled"})
		}
		tenantID := strings.TrimSpace(c.Param("id"))
		if tenantID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing tenant id"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var st model.LeadStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			tmp := model.LeadStatus(raw)
			if tmp.Valid() {
				st = tmp
			}
		}

		leads, err := chRepo.ListByTenant(c.Request().Context(), tenantID, st, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(leads),
			"results": leads,
		})
	}
}
