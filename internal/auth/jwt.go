// Package auth implements the credential collaborators consumed by the hub's
// authentication gate: signed session tokens for users and database-backed
// API keys for agents.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token classes carried in the "type" claim. Only access tokens may open a
// realtime connection; refresh tokens are exchanged over HTTP only.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken is returned when a session token fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	OrgID     string `json:"org_id"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens with a shared HMAC secret.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a TokenManager. accessTTL and refreshTTL bound the
// lifetime of the corresponding token class.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// SignAccessToken mints an access-class token for the given user.
func (m *TokenManager) SignAccessToken(userID, orgID, role string) (string, error) {
	return m.sign(userID, orgID, role, TokenTypeAccess, m.accessTTL)
}

// SignRefreshToken mints a refresh-class token for the given user.
func (m *TokenManager) SignRefreshToken(userID, orgID, role string) (string, error) {
	return m.sign(userID, orgID, role, TokenTypeRefresh, m.refreshTTL)
}

func (m *TokenManager) sign(userID, orgID, role, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		OrgID:     orgID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Verify parses and validates a session token and returns its claims.
func (m *TokenManager) Verify(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
