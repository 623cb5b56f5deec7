package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fintrack/auth-service/internal/cookies"
	"github.com/fintrack/auth-service/internal/hash"
	"github.com/fintrack/auth-service/internal/middleware"
	"github.com/fintrack/auth-service/internal/models"
	"github.com/fintrack/auth-service/internal/repo"
	"github.com/fintrack/auth-service/internal/service"
	"github.com/fintrack/auth-service/internal/store"
	"github.com/fintrack/auth-service/internal/tokens"
)

type testEnv struct {
	E     *echo.Echo
	DB    *gorm.DB
	Svc   *service.AuthService
	Store store.TokenStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // :memory: is per-connection
	require.NoError(t, db.AutoMigrate(&models.User{}))

	issuer := &tokens.Issuer{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    14 * 24 * time.Hour,
	}
	cookieMgr := &cookies.Manager{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
	}
	tokenStore := store.NewMemoryStore(store.DefaultWindow)

	svc := &service.AuthService{
		Users:  &repo.UserRepo{DB: db},
		Store:  tokenStore,
		Issuer: issuer,
	}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: svc, Cookies: cookieMgr},
		AuthMW:      middleware.NewAuthMiddleware(issuer, cookieMgr),
		DB:          db,
	})

	return &testEnv{E: e, DB: db, Svc: svc, Store: tokenStore}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}, cks ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cks {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	res := http.Response{Header: rec.Header()}
	out := make(map[string]*http.Cookie)
	for _, ck := range res.Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func (env *testEnv) login(t *testing.T, username, password string) (*http.Cookie, *http.Cookie) {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cks := responseCookies(rec)
	require.NotNil(t, cks[cookies.AccessCookie])
	require.NotNil(t, cks[cookies.RefreshCookie])
	return cks[cookies.AccessCookie], cks[cookies.RefreshCookie]
}

func (env *testEnv) createAdmin(t *testing.T, username string) *http.Cookie {
	t.Helper()

	pwHash, err := hash.HashPassword("password123")
	require.NoError(t, err)
	require.NoError(t, env.DB.Create(&models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         "admin",
	}).Error)

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return responseCookies(rec)[cookies.AccessCookie]
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "test_user", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "test_user", user.Username)
	assert.Equal(t, "user", user.Role)
	assert.Empty(t, user.PasswordHash, "hash must not leak through JSON")

	rec = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "test_user", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint_SetsScopedCookies(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	access, refresh := env.login(t, "alice", "password123")

	assert.Equal(t, "/", access.Path)
	assert.Equal(t, "/api/auth", refresh.Path)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.login(t, "bob", "password123")

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "bob", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint_RotatesAndRejectsReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, refresh := env.login(t, "carol", "password123")

	rec := env.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := responseCookies(rec)[cookies.RefreshCookie]
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	// the rotated-away cookie is single-use
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the fresh one still works
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshEndpoint_MissingCookie(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, refresh := env.login(t, "dave", "password123")

	rec := env.do(t, http.MethodPost, "/api/auth/logout", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	cks := responseCookies(rec)
	assert.Equal(t, -1, cks[cookies.AccessCookie].MaxAge)
	assert.Equal(t, -1, cks[cookies.RefreshCookie].MaxAge)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// logging out twice is fine
	rec = env.do(t, http.MethodPost, "/api/auth/logout", nil, refresh)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	access, _ := env.login(t, "erin", "password123")

	rec := env.do(t, http.MethodGet, "/api/auth/me", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "erin", user.Username)

	rec = env.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionsEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	access, refresh := env.login(t, "frank", "password123")

	rec := env.do(t, http.MethodGet, "/api/auth/sessions", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions struct {
		Sessions []map[string]interface{} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions.Sessions, 1)
	assert.NotEmpty(t, sessions.Sessions[0]["jti"])

	// rotation leaves one valid session but two history records
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/sessions/history", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		History []map[string]interface{} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.History, 2)
}

func TestLogoutAllEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	access, _ := env.login(t, "grace", "password123")

	// second session for the same account
	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "grace", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/logout-all", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp["revoked"])

	rec = env.do(t, http.MethodGet, "/api/auth/sessions", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions struct {
		Sessions []map[string]interface{} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Empty(t, sessions.Sessions)
}

func TestAdminEndpoints_RoleGate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	userAccess, _ := env.login(t, "heidi", "password123")

	rec := env.do(t, http.MethodGet, "/api/admin/token-stats", nil, userAccess)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/token-stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	adminAccess := env.createAdmin(t, "root_admin")
	rec = env.do(t, http.MethodGet, "/api/admin/token-stats", nil, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, stats.Total, stats.Valid+stats.Revoked+stats.Expired)
}

func TestAdminRevokeUserTokens(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, victimRefresh := env.login(t, "victim", "password123")
	adminAccess := env.createAdmin(t, "sec_admin")

	rec := env.do(t, http.MethodGet, "/api/auth/me", nil, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code)

	var victim models.User
	require.NoError(t, env.DB.Where("username = ?", "victim").First(&victim).Error)

	rec = env.do(t, http.MethodPost, "/api/admin/users/"+victim.ID.String()+"/revoke-tokens", nil, adminAccess)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp["revoked"])

	// the victim's refresh token is now dead
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", nil, victimRefresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/users/not-a-uuid/revoke-tokens", nil, adminAccess)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
