package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fintrack/auth-service/internal/cookies"
	"github.com/fintrack/auth-service/internal/roles"
	"github.com/fintrack/auth-service/internal/tokens"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

type AuthMiddleware struct {
	Issuer  *tokens.Issuer
	Cookies *cookies.Manager
}

func NewAuthMiddleware(issuer *tokens.Issuer, ck *cookies.Manager) *AuthMiddleware {
	return &AuthMiddleware{Issuer: issuer, Cookies: ck}
}

// Principal returns the authenticated user id and role set by RequireAuth.
func Principal(c echo.Context) (string, roles.Role, bool) {
	id, _ := c.Get(ctxUserID).(string)
	if id == "" {
		return "", roles.Unknown, false
	}
	role, _ := c.Get(ctxRole).(roles.Role)
	return id, role, true
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.auth(next, false)
}

// OptionalAuth lets requests without an access cookie through
// unauthenticated. A cookie that is present but fails verification is still
// a hard 401: a bad credential is an error, not an anonymous request.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.auth(next, true)
}

func (m *AuthMiddleware) auth(next echo.HandlerFunc, optional bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		accessCookie, err := c.Cookie(cookies.AccessCookie)
		if err != nil || accessCookie.Value == "" {
			if optional {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Issuer.VerifyAccess(accessCookie.Value)
		if err != nil || claims == nil {
			m.Cookies.ClearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxRole, roles.Parse(claims.Role))

		return next(c)
	}
}

// RequireRole composes after RequireAuth and rejects principals below min.
// The 403 payload names both sides for diagnosability.
func RequireRole(min roles.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, role, ok := Principal(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			if !role.AtLeast(min) {
				return echo.NewHTTPError(http.StatusForbidden, echo.Map{
					"message":  "insufficient role",
					"required": min.String(),
					"actual":   role.String(),
				})
			}
			return next(c)
		}
	}
}

func RequireAdmin() echo.MiddlewareFunc      { return RequireRole(roles.Admin) }
func RequireSuperAdmin() echo.MiddlewareFunc { return RequireRole(roles.SuperAdmin) }

// RequireOwnershipOrAdmin lets admins through unconditionally; everyone else
// must own the resource named by the path parameter.
func RequireOwnershipOrAdmin(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, role, ok := Principal(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			if role.AtLeast(roles.Admin) {
				return next(c)
			}
			if owner := c.Param(param); owner != id {
				return echo.NewHTTPError(http.StatusForbidden, echo.Map{
					"message":  "not the resource owner",
					"required": owner,
					"actual":   id,
				})
			}
			return next(c)
		}
	}
}
