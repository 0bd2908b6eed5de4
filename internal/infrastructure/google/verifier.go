package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront-api/internal/domain"
	"google.golang.org/api/idtoken"
)

// Payload holds the verified claims extracted from a Google ID token.
type Payload struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Verifier verifies Google ID tokens against a specific client ID.
type Verifier struct {
	clientID string
	validate validateFunc
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID, validate: idtoken.Validate}
}

// Configured reports whether a client ID is set.
func (v *Verifier) Configured() bool { return v.clientID != "" }

// Verify validates the Google ID token and returns the extracted payload.
// Returns a domain.ErrUnauthorized-wrapped error if the token is invalid.
func (v *Verifier) Verify(ctx context.Context, token string) (*Payload, error) {
	if !v.Configured() {
		return nil, fmt.Errorf("google sign-in: %w", domain.ErrProviderUnavailable)
	}
	p, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	email, _ := p.Claims["email"].(string)
	emailVerified, _ := p.Claims["email_verified"].(bool)
	name, _ := p.Claims["name"].(string)
	if name == "" {
		first, _ := p.Claims["given_name"].(string)
		last, _ := p.Claims["family_name"].(string)
		name = strings.TrimSpace(first + " " + last)
	}
	return &Payload{
		Sub:           p.Subject,
		Email:         email,
		EmailVerified: emailVerified,
		Name:          name,
	}, nil
}
