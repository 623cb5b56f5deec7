package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fintrack/auth-service/internal/cookies"
	"github.com/fintrack/auth-service/internal/logging"
	"github.com/fintrack/auth-service/internal/middleware"
	"github.com/fintrack/auth-service/internal/service"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies *cookies.Manager
}

func clientInfo(c echo.Context) service.ClientInfo {
	return service.ClientInfo{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
		DeviceID:  c.Request().Header.Get("X-Device-ID"),
	}
}

func principalID(c echo.Context) (uuid.UUID, error) {
	sub, _, ok := middleware.Principal(c)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid principal")
	}
	return id, nil
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
		case errors.Is(err, service.ErrUserAlreadyExist):
			return echo.NewHTTPError(http.StatusConflict, "user already exists")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "register failed")
		}
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, user, err := h.Svc.Login(ctx, req.Username, req.Password, clientInfo(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
		}
	}

	h.Cookies.SetAuthCookies(c, pair)

	return c.JSON(http.StatusOK, echo.Map{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	refreshCookie, err := c.Cookie(cookies.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	pair, err := h.Svc.Refresh(ctx, refreshCookie.Value, clientInfo(c))
	if err != nil {
		h.Cookies.ClearAuthCookies(c)
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
	}

	h.Cookies.SetAuthCookies(c, pair)

	return c.JSON(http.StatusOK, echo.Map{"message": "refreshed"})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	if refreshCookie, err := c.Cookie(cookies.RefreshCookie); err == nil {
		if err := h.Svc.Logout(ctx, refreshCookie.Value, clientInfo(c)); err != nil {
			h.Cookies.ClearAuthCookies(c)
			return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
		}
	}

	h.Cookies.ClearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) LogoutAll(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := principalID(c)
	if err != nil {
		return err
	}

	n := h.Svc.LogoutAll(ctx, id, clientInfo(c))
	h.Cookies.ClearAuthCookies(c)

	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

func (h *AuthHTTP) Sessions(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := principalID(c)
	if err != nil {
		return err
	}

	sessions := h.Svc.Sessions(ctx, id)
	out := make([]echo.Map, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, echo.Map{
			"jti":        s.JTI,
			"user_agent": s.UserAgent,
			"ip_address": s.IPAddress,
			"device_id":  s.DeviceID,
			"created_at": s.CreatedAt,
			"expires_at": s.ExpiresAt,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

func (h *AuthHTTP) History(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := principalID(c)
	if err != nil {
		return err
	}

	limit := intQueryDefault(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	return c.JSON(http.StatusOK, echo.Map{"history": h.Svc.History(ctx, id, limit)})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := principalID(c)
	if err != nil {
		return err
	}

	user, err := h.Svc.CurrentUser(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	return c.JSON(http.StatusOK, user)
}
