package store

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/fintrack/auth-service/internal/models"
)

// DefaultWindow is the refresh-token validity window.
const DefaultWindow = 14 * 24 * time.Hour

// Metadata is what gets persisted alongside a JTI at save time. TokenHash is
// an opaque marker (sha256 of the signed token), never the token itself.
type Metadata struct {
	TokenHash string
	UserAgent string
	IPAddress string
	DeviceID  string
}

type Stats struct {
	Total            int64 `json:"total"`
	Valid            int64 `json:"valid"`
	Revoked          int64 `json:"revoked"`
	Expired          int64 `json:"expired"`
	ActivePercentage int   `json:"active_percentage"`
}

// AuditRecord is the audit-safe projection of a refresh-token row.
type AuditRecord struct {
	JTI       string    `json:"jti"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	DeviceID  string    `json:"device_id"`
	Revoked   bool      `json:"revoked"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenStore is the validity source of truth for refresh tokens. Both
// implementations behave identically: a JTI is valid iff it exists, belongs
// to the given user, is not revoked and has not expired. Lookup-style
// operations never fail; backend errors are logged and degrade to the safe
// negative so auth checks fail closed.
type TokenStore interface {
	Save(ctx context.Context, jti string, userID uuid.UUID, meta Metadata) (*models.RefreshToken, error)
	IsValid(ctx context.Context, jti string, userID uuid.UUID) bool
	Revoke(ctx context.Context, jti string) bool
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) int64
	CleanExpired(ctx context.Context) int64
	FindValidByUser(ctx context.Context, userID uuid.UUID) []models.RefreshToken
	FindWithAudit(ctx context.Context, userID uuid.UUID, limit int) []AuditRecord
	Stats(ctx context.Context) Stats
}

// activePercentage rounds 100*valid/total; 0 for an empty store.
func activePercentage(valid, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(valid) / float64(total) * 100))
}
