package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fintrack/auth-service/internal/audit"
	"github.com/fintrack/auth-service/internal/events"
	"github.com/fintrack/auth-service/internal/hash"
	"github.com/fintrack/auth-service/internal/logging"
	"github.com/fintrack/auth-service/internal/models"
	"github.com/fintrack/auth-service/internal/repo"
	"github.com/fintrack/auth-service/internal/store"
	"github.com/fintrack/auth-service/internal/tokens"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidCredentials  = repo.ErrInvalidCredentials
	ErrUserAlreadyExist    = repo.ErrUserAlreadyExist
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// ClientInfo is what the transport knows about the caller; it becomes the
// audit metadata of the refresh record.
type ClientInfo struct {
	UserAgent string
	IPAddress string
	DeviceID  string
}

func (ci ClientInfo) metadata(tokenHash string) store.Metadata {
	return store.Metadata{
		TokenHash: tokenHash,
		UserAgent: ci.UserAgent,
		IPAddress: ci.IPAddress,
		DeviceID:  ci.DeviceID,
	}
}

type AuthService struct {
	Users  *repo.UserRepo
	Store  store.TokenStore
	Issuer *tokens.Issuer
	Events *events.Producer
	Audit  *audit.Indexer
}

func (s *AuthService) publish(ctx context.Context, event, userID string) {
	if err := s.Events.Publish(ctx, userID, map[string]string{
		"type":    event,
		"user_id": userID,
	}); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "event", event, "error", err)
	}
}

func (s *AuthService) auditEntry(ctx context.Context, event, userID, jti, outcome string, ci ClientInfo) {
	s.Audit.Record(ctx, audit.Entry{
		Event:     event,
		UserID:    userID,
		JTI:       jti,
		IPAddress: ci.IPAddress,
		UserAgent: ci.UserAgent,
		Outcome:   outcome,
	})
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if username == "" || password == "" {
		return nil, ErrValidation
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	user := &models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         "user",
	}

	if err := s.Users.CreateIfNotExists(ctx, user); err != nil {
		if errors.Is(err, ErrUserAlreadyExist) {
			l.Warn("register_failed", "reason", "user already exist")
			return nil, ErrUserAlreadyExist
		}
		l.Error("register_failed", "error", err)
		return nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID.String())
	return user, nil
}

// Login verifies credentials, mints a fresh pair and persists the new JTI as
// a valid session record.
func (s *AuthService) Login(ctx context.Context, username, password string, ci ClientInfo) (*tokens.Pair, *models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" || password == "" {
		return nil, nil, ErrValidation
	}

	user, err := s.Users.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			l.Warn("login_failed", "reason", "invalid username or password")
			return nil, nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "error", err)
		return nil, nil, err
	}

	pair, err := s.Issuer.IssuePair(user.ID.String(), user.Role)
	if err != nil {
		l.Error("login_failed", "reason", "cannot sign tokens", "error", err)
		return nil, nil, err
	}

	if _, err := s.Store.Save(ctx, pair.JTI, user.ID, ci.metadata(tokens.Sha256Hex(pair.RefreshToken))); err != nil {
		l.Error("login_failed", "reason", "cannot persist refresh token", "error", err)
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID.String())
	s.auditEntry(ctx, events.EventUserLoggedIn, user.ID.String(), pair.JTI, "success", ci)
	l.Info("login_successful")

	return pair, user, nil
}

// Refresh rotates a presented refresh token: the old JTI is revoked and a
// fresh pair is minted and saved, so each refresh token is single-use.
// Replays of a rotated token die at the store validity check.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, ci ClientInfo) (*tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if !s.Store.IsValid(ctx, claims.ID, userID) {
		l.Warn("refresh_rejected", "reason", "jti not valid", "jti", claims.ID)
		s.auditEntry(ctx, events.EventTokenRefreshed, claims.Subject, claims.ID, "rejected", ci)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		l.Error("refresh_failed", "error", err)
		return nil, ErrInvalidRefreshToken
	}

	s.Store.Revoke(ctx, claims.ID)

	pair, err := s.Issuer.IssuePair(user.ID.String(), user.Role)
	if err != nil {
		l.Error("refresh_failed", "reason", "cannot sign tokens", "error", err)
		return nil, err
	}

	if _, err := s.Store.Save(ctx, pair.JTI, user.ID, ci.metadata(tokens.Sha256Hex(pair.RefreshToken))); err != nil {
		l.Error("refresh_failed", "reason", "cannot persist refresh token", "error", err)
		return nil, err
	}

	s.publish(ctx, events.EventTokenRefreshed, user.ID.String())
	s.auditEntry(ctx, events.EventTokenRefreshed, user.ID.String(), pair.JTI, "success", ci)

	return pair, nil
}

// Logout revokes the presented refresh token. An absent or unverifiable
// token is not an error: the caller ends up logged out either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, ci ClientInfo) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.Issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if s.Store.Revoke(ctx, claims.ID) {
		s.publish(ctx, events.EventTokenRevoked, claims.Subject)
		s.auditEntry(ctx, events.EventTokenRevoked, claims.Subject, claims.ID, "success", ci)
	}
	return nil
}

// LogoutAll is the "log out everywhere" operation.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, ci ClientInfo) int64 {
	n := s.Store.RevokeAllByUser(ctx, userID)
	if n > 0 {
		s.publish(ctx, events.EventTokensRevokedAll, userID.String())
		s.auditEntry(ctx, events.EventTokensRevokedAll, userID.String(), "", "success", ci)
	}
	logging.FromContext(ctx).Info("logout_all", "user_id", userID, "revoked", n)
	return n
}

func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) []models.RefreshToken {
	return s.Store.FindValidByUser(ctx, userID)
}

func (s *AuthService) History(ctx context.Context, userID uuid.UUID, limit int) []store.AuditRecord {
	return s.Store.FindWithAudit(ctx, userID, limit)
}

func (s *AuthService) Stats(ctx context.Context) store.Stats {
	return s.Store.Stats(ctx)
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.Users.FindByID(ctx, userID)
}
