package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func intQueryDefault(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// TokenStats exposes aggregate refresh-token counts for the admin dashboard.
func (h *AuthHTTP) TokenStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Svc.Stats(c.Request().Context()))
}

// RevokeUserTokens bulk-revokes every session of the named user; the
// suspected-compromise response.
func (h *AuthHTTP) RevokeUserTokens(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	n := h.Svc.LogoutAll(ctx, id, clientInfo(c))
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}
