package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fintrack/auth-service/internal/logging"
	"github.com/fintrack/auth-service/internal/models"
)

// GormStore is the durable implementation backed by the refresh_tokens
// table. Single-statement updates carry the atomicity; there is no
// read-modify-write on the request path.
type GormStore struct {
	DB     *gorm.DB
	Window time.Duration
}

func NewGormStore(db *gorm.DB, window time.Duration) *GormStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &GormStore{DB: db, Window: window}
}

func (s *GormStore) Save(ctx context.Context, jti string, userID uuid.UUID, meta Metadata) (*models.RefreshToken, error) {
	rec := models.RefreshToken{
		JTI:       jti,
		UserID:    userID,
		Token:     meta.TokenHash,
		ExpiresAt: time.Now().Add(s.Window),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		DeviceID:  meta.DeviceID,
	}
	if err := s.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) IsValid(ctx context.Context, jti string, userID uuid.UUID) bool {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("jti = ? AND user_id = ? AND revoked = ? AND expires_at > ?", jti, userID, false, time.Now()).
		Count(&count).Error
	if err != nil {
		logging.FromContext(ctx).Error("token_store_error", "op", "is_valid", "error", err)
		return false
	}
	return count > 0
}

func (s *GormStore) Revoke(ctx context.Context, jti string) bool {
	tx := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true)
	if tx.Error != nil {
		logging.FromContext(ctx).Error("token_store_error", "op", "revoke", "error", tx.Error)
		return false
	}
	return tx.RowsAffected > 0
}

func (s *GormStore) RevokeAllByUser(ctx context.Context, userID uuid.UUID) int64 {
	tx := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if tx.Error != nil {
		logging.FromContext(ctx).Error("token_store_error", "op", "revoke_all", "error", tx.Error)
		return 0
	}
	return tx.RowsAffected
}

func (s *GormStore) CleanExpired(ctx context.Context) int64 {
	tx := s.DB.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&models.RefreshToken{})
	if tx.Error != nil {
		logging.FromContext(ctx).Error("token_store_error", "op", "clean_expired", "error", tx.Error)
		return 0
	}
	return tx.RowsAffected
}

func (s *GormStore) FindValidByUser(ctx context.Context, userID uuid.UUID) []models.RefreshToken {
	var recs []models.RefreshToken
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, time.Now()).
		Find(&recs).Error
	if err != nil {
		logging.FromContext(ctx).Error("token_store_error", "op", "find_valid", "error", err)
		return nil
	}
	return recs
}

func (s *GormStore) FindWithAudit(ctx context.Context, userID uuid.UUID, limit int) []AuditRecord {
	var recs []models.RefreshToken
	err := s.DB.WithContext(ctx).
		Select("jti", "user_agent", "ip_address", "device_id", "revoked", "expires_at", "created_at").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		logging.FromContext(ctx).Error("token_store_error", "op", "find_with_audit", "error", err)
		return nil
	}
	out := make([]AuditRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, AuditRecord{
			JTI:       r.JTI,
			UserAgent: r.UserAgent,
			IPAddress: r.IPAddress,
			DeviceID:  r.DeviceID,
			Revoked:   r.Revoked,
			ExpiresAt: r.ExpiresAt,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

// Stats counts every record exactly once: expired takes precedence over
// revoked, so total == valid + revoked + expired always holds.
func (s *GormStore) Stats(ctx context.Context) Stats {
	now := time.Now()
	l := logging.FromContext(ctx)
	db := s.DB.WithContext(ctx).Model(&models.RefreshToken{})

	var st Stats
	if err := db.Session(&gorm.Session{}).Count(&st.Total).Error; err != nil {
		l.Error("token_store_error", "op", "stats", "error", err)
		return Stats{}
	}
	if err := db.Session(&gorm.Session{}).Where("expires_at <= ?", now).Count(&st.Expired).Error; err != nil {
		l.Error("token_store_error", "op", "stats", "error", err)
		return Stats{}
	}
	if err := db.Session(&gorm.Session{}).Where("revoked = ? AND expires_at > ?", true, now).Count(&st.Revoked).Error; err != nil {
		l.Error("token_store_error", "op", "stats", "error", err)
		return Stats{}
	}
	st.Valid = st.Total - st.Expired - st.Revoked
	st.ActivePercentage = activePercentage(st.Valid, st.Total)
	return st
}
