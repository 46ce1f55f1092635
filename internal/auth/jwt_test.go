package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *TokenManager {
	return NewTokenManager("test-secret", time.Hour, 24*time.Hour)
}

func TestTokenManager_AccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.SignAccessToken("user_1", "org_1", "member")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, "org_1", claims.OrgID)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestTokenManager_RefreshTokenClass(t *testing.T) {
	m := newTestManager()

	token, err := m.SignRefreshToken("user_1", "org_1", "admin")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	token, err := newTestManager().SignAccessToken("user_1", "org_1", "member")
	require.NoError(t, err)

	other := NewTokenManager("different-secret", time.Hour, 24*time.Hour)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	_, err := newTestManager().Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute, 24*time.Hour)

	token, err := m.SignAccessToken("user_1", "org_1", "member")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
