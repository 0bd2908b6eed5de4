package google

import (
	"context"
	"fmt"

	"github.com/storefront-api/internal/domain"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

type accountLookup func(ctx context.Context, phone string) (int, error)

// PhoneDirectory answers whether a phone number is registered with the
// identity provider that performs client-side SMS verification.
type PhoneDirectory struct {
	lookup accountLookup
}

// NewPhoneDirectory builds a directory from a service account credentials
// file. An empty path yields an unconfigured directory.
func NewPhoneDirectory(ctx context.Context, credentialsFile string) (*PhoneDirectory, error) {
	if credentialsFile == "" {
		return &PhoneDirectory{}, nil
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("identity toolkit: %w", err)
	}
	return &PhoneDirectory{
		lookup: func(ctx context.Context, phone string) (int, error) {
			resp, err := svc.Relyingparty.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
				PhoneNumber: []string{phone},
			}).Context(ctx).Do()
			if err != nil {
				return 0, err
			}
			return len(resp.Users), nil
		},
	}, nil
}

func (d *PhoneDirectory) Configured() bool { return d != nil && d.lookup != nil }

// Exists reports whether an account with the E.164 phone number exists.
func (d *PhoneDirectory) Exists(ctx context.Context, phone string) (bool, error) {
	if !d.Configured() {
		return false, fmt.Errorf("phone directory: %w", domain.ErrProviderUnavailable)
	}
	n, err := d.lookup(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("phone directory lookup: %w", err)
	}
	return n > 0, nil
}
