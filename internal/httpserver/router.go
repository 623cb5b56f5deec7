package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fintrack/auth-service/internal/middleware"
)

type Deps struct {
	AuthHandler *AuthHTTP
	AuthMW      *middleware.AuthMiddleware
	DB          *gorm.DB
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB != nil {
			sqlDB, err := d.DB.DB()
			if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	auth := e.Group("/api/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)

	private := auth.Group("")
	private.Use(d.AuthMW.RequireAuth)
	private.POST("/logout-all", d.AuthHandler.LogoutAll)
	private.GET("/sessions", d.AuthHandler.Sessions)
	private.GET("/sessions/history", d.AuthHandler.History)
	private.GET("/me", d.AuthHandler.Me)

	admin := e.Group("/api/admin")
	admin.Use(d.AuthMW.RequireAuth, middleware.RequireAdmin())
	admin.GET("/token-stats", d.AuthHandler.TokenStats)
	admin.POST("/users/:id/revoke-tokens", d.AuthHandler.RevokeUserTokens)
}
