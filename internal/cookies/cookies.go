package cookies

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fintrack/auth-service/internal/tokens"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	accessPath = "/"
	// Narrow path so the refresh token only travels on auth endpoints.
	refreshPath = "/api/auth"
)

// Manager binds token pairs to httpOnly cookies. The refresh cookie is
// path-scoped to the auth subtree; clearing reuses the exact same scoping,
// otherwise browsers keep the old cookie around.
type Manager struct {
	Production bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (m *Manager) sameSite() http.SameSite {
	if m.Production {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

func (m *Manager) newCookie(name, value, path string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   m.Production,
		SameSite: m.sameSite(),
	}
}

func (m *Manager) deleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.Production,
		SameSite: m.sameSite(),
	}
}

func (m *Manager) SetAuthCookies(c echo.Context, pair *tokens.Pair) {
	c.SetCookie(m.newCookie(AccessCookie, pair.AccessToken, accessPath, m.AccessTTL))
	c.SetCookie(m.newCookie(RefreshCookie, pair.RefreshToken, refreshPath, m.RefreshTTL))
}

func (m *Manager) ClearAuthCookies(c echo.Context) {
	c.SetCookie(m.deleteCookie(AccessCookie, accessPath))
	c.SetCookie(m.deleteCookie(RefreshCookie, refreshPath))
}
