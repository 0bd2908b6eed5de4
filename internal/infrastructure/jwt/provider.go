package jwtinfra

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/storefront-api/internal/config"
)

// DevelopmentSecret signs tokens when JWT_SECRET is unset outside production.
// Tokens signed with it must never be trusted in a deployed environment.
const DevelopmentSecret = "storefront-dev-secret-change-me"

// DefaultExpiry is the token lifetime when none is configured.
const DefaultExpiry = 30 * 24 * time.Hour

// ErrMissingSecret is returned when production starts without JWT_SECRET.
var ErrMissingSecret = errors.New("JWT_SECRET must be set in production")

// Claims holds the JWT payload fields.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs.
type Provider struct {
	secret   []byte
	expiry   time.Duration
	insecure bool
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	secret := cfg.JWTSecret
	insecure := false
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		secret = DevelopmentSecret
		insecure = true
	}
	expiry := cfg.JWTExpiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Provider{secret: []byte(secret), expiry: expiry, insecure: insecure}, nil
}

// Insecure reports whether the provider fell back to DevelopmentSecret.
func (p *Provider) Insecure() bool { return p.insecure }

func (p *Provider) Sign(userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
