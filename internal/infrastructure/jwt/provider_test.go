package jwtinfra

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/storefront-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, secret string) *Provider {
	t.Helper()
	p, err := NewProvider(&config.Config{AppEnv: config.EnvDevelopment, JWTSecret: secret, JWTExpiry: time.Hour})
	require.NoError(t, err)
	return p
}

func TestNewProvider_ProductionRequiresSecret(t *testing.T) {
	_, err := NewProvider(&config.Config{AppEnv: config.EnvProduction})
	assert.True(t, errors.Is(err, ErrMissingSecret))
}

func TestNewProvider_DevelopmentFallsBackToInsecureSecret(t *testing.T) {
	p, err := NewProvider(&config.Config{AppEnv: config.EnvDevelopment})
	require.NoError(t, err)
	assert.True(t, p.Insecure())
	assert.Equal(t, DefaultExpiry, p.expiry)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	p := newProvider(t, "s3cret")
	assert.False(t, p.Insecure())

	tok, err := p.Sign("u1", "admin")
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := newProvider(t, "one").Sign("u1", "user")
	require.NoError(t, err)

	_, err = newProvider(t, "two").Verify(tok)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	p := newProvider(t, "s3cret")
	claims := Claims{
		UserID: "u1",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	p := newProvider(t, "s3cret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}
