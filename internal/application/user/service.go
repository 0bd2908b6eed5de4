package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/phone"
	"github.com/storefront-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Service interface {
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (user *domain.User, token string, err error)
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error)
	Save(ctx context.Context, u *domain.User) error
	List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

type jwtSigner interface {
	Sign(userID, role string) (string, error)
}

type service struct {
	repo        userStore
	jwtProvider jwtSigner
}

type ServiceDeps struct {
	UserRepo    userStore
	JWTProvider jwtSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:        deps.UserRepo,
		jwtProvider: deps.JWTProvider,
	}
}

func (s *service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

// UpdateProfile applies the non-nil fields of req. A changed email or phone
// number must not belong to another user and resets its verified flag.
func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, string, error) {
	if err := validate.Struct(req); err != nil {
		return nil, "", err
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := domain.NormalizeEmail(*req.Email)
		if email != u.EmailValue() {
			if err := s.ensureFree(ctx, userID, email, ""); err != nil {
				return nil, "", err
			}
			u.Email = &email
			u.IsVerified = false
		}
	}
	if req.PhoneNumber != nil {
		e164, err := phone.Normalize(*req.PhoneNumber)
		if err != nil {
			return nil, "", err
		}
		if e164 != u.PhoneValue() {
			if err := s.ensureFree(ctx, userID, "", e164); err != nil {
				return nil, "", err
			}
			u.PhoneNumber = &e164
			u.IsPhoneVerified = false
		}
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", err
		}
		u.PasswordHash = string(hash)
	}

	if err := s.repo.Save(ctx, u); err != nil {
		return nil, "", err
	}
	token, err := s.jwtProvider.Sign(u.UserID, u.Role)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}
	return u, token, nil
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.List(ctx, int32(limit), cursor)
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) ensureFree(ctx context.Context, userID, email, phone string) error {
	other, err := s.repo.FindByEmailOrPhone(ctx, email, phone)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.UserID != userID {
		if email != "" {
			return fmt.Errorf("email already in use: %w", domain.ErrDuplicateIdentity)
		}
		return fmt.Errorf("phone number already in use: %w", domain.ErrDuplicateIdentity)
	}
	return nil
}
