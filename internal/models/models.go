package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"  json:"username"`
	PasswordHash string    `gorm:"not null"              json:"-"`
	Role         string    `gorm:"not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RefreshToken is one row per refresh issuance. The signed refresh JWT is
// never stored; Token holds a sha256 marker and JTI is the revocation handle.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                                                  json:"id"`
	JTI       string    `gorm:"uniqueIndex;index:idx_jti_revoked;not null"                  json:"jti"`
	UserID    uuid.UUID `gorm:"type:uuid;index:idx_refresh_user;index:idx_user_revoked;not null" json:"user_id"`
	Token     string    `gorm:"not null"                                                    json:"-"`
	Revoked   bool      `gorm:"index:idx_jti_revoked;index:idx_user_revoked;default:false"  json:"revoked"`
	ExpiresAt time.Time `gorm:"index;not null"                                              json:"expires_at"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
