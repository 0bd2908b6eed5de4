package http

import (
	"context"

	"github.com/storefront-api/internal/domain"
)

// UserRepository is the minimal interface the router requires from a user store.
// Both the DynamoDB and MongoDB stores satisfy it.
type UserRepository interface {
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Save(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	// List pages through users; the returned cursor is empty on the last page.
	List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

// CodeStore is the ephemeral verification store.
type CodeStore interface {
	Ping(ctx context.Context) error
}
