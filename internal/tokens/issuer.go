package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func NewJTI() string { return uuid.NewString() }

// Issuer mints access/refresh pairs. It holds no state besides the secrets
// and TTLs; persisting and revoking issued JTIs is the caller's concern.
type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Pair struct {
	AccessToken  string
	RefreshToken string
	JTI          string
	AccessExp    time.Time
	RefreshExp   time.Time
}

func (i *Issuer) IssuePair(userID, role string) (*Pair, error) {
	now := time.Now()
	accessExp := now.Add(i.AccessTTL)
	refreshExp := now.Add(i.RefreshTTL)
	jti := NewJTI()

	accessClaims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(i.AccessSecret)
	if err != nil {
		return nil, err
	}

	refreshClaims := RefreshClaims{
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(i.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		JTI:          jti,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (i *Issuer) VerifyAccess(token string) (*AccessClaims, error) {
	return AccessClaimsFromToken(token, i.AccessSecret)
}

func (i *Issuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	return RefreshClaimsFromToken(token, i.RefreshSecret)
}
