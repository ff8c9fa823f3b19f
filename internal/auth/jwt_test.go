package auth

import (
	"testing"
	"time"

	"crowdfund/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "s3cret", TTL: time.Minute}

	token, err := GenerateToken(cfg, "alice", "")
	require.NoError(t, err)

	claims, err := ParseToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.AccountID)
	assert.Equal(t, RoleUser, claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestParseTokenRejects(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "s3cret", TTL: time.Minute}

	other, err := GenerateToken(&config.JWTConfig{Secret: "other"}, "alice", RoleAdmin)
	require.NoError(t, err)
	_, err = ParseToken(cfg, other)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AccountID: "alice",
		Role:      RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	_, err = ParseToken(cfg, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = ParseToken(cfg, "not-a-token")
	assert.Error(t, err)

	_, err = GenerateToken(cfg, "", RoleUser)
	assert.Error(t, err)
}
