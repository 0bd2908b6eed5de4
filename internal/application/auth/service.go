package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storefront-api/internal/application/verification"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/infrastructure/google"
	"github.com/storefront-api/internal/observability"
	"github.com/storefront-api/internal/pkg/id"
	"github.com/storefront-api/internal/pkg/phone"
	"github.com/storefront-api/internal/pkg/validate"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Session is an authenticated user together with its bearer token.
type Session struct {
	User  *domain.User
	Token string
}

type Service interface {
	SendEmailOTP(ctx context.Context, email string) error
	VerifyEmailOTP(ctx context.Context, email, otp string) (*Session, error)
	SendPhoneCode(ctx context.Context, phoneNumber string) (verificationID string, err error)
	VerifyPhoneCode(ctx context.Context, verificationID, phoneNumber, code string) (*Session, error)
	CheckPhone(ctx context.Context, phoneNumber string) (bool, error)
	Register(ctx context.Context, req domain.RegisterRequest) (*Session, error)
	Login(ctx context.Context, req domain.LoginRequest) (*Session, error)
	GoogleLogin(ctx context.Context, idToken string) (*Session, error)
}

type codeEngine interface {
	RequestEmailCode(ctx context.Context, email string) (verification.Result, error)
	RequestPhoneCode(ctx context.Context, phone string) (verification.Result, error)
	VerifyEmailCode(ctx context.Context, email, code string) (*domain.User, error)
	VerifyPhoneCode(ctx context.Context, verificationID, phone, code string) (*domain.User, error)
}

type userStore interface {
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Save(ctx context.Context, u *domain.User) error
}

type jwtSigner interface {
	Sign(userID, role string) (string, error)
}

type phoneDirectory interface {
	Exists(ctx context.Context, phone string) (bool, error)
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type service struct {
	codes  codeEngine
	users  userStore
	jwt    jwtSigner
	phones phoneDirectory
	google googleVerifier
	log    *zap.Logger
}

type ServiceDeps struct {
	Engine         codeEngine
	UserRepo       userStore
	JWTProvider    jwtSigner
	PhoneDirectory phoneDirectory
	GoogleVerifier googleVerifier
	Log            *zap.Logger
}

func NewService(deps ServiceDeps) Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		codes:  deps.Engine,
		users:  deps.UserRepo,
		jwt:    deps.JWTProvider,
		phones: deps.PhoneDirectory,
		google: deps.GoogleVerifier,
		log:    log,
	}
}

func (s *service) SendEmailOTP(ctx context.Context, email string) error {
	res, err := s.codes.RequestEmailCode(ctx, email)
	if err != nil {
		return err
	}
	return deliveryErr("failed to send OTP", res)
}

func (s *service) VerifyEmailOTP(ctx context.Context, email, otp string) (*Session, error) {
	u, err := s.codes.VerifyEmailCode(ctx, email, otp)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) SendPhoneCode(ctx context.Context, phoneNumber string) (string, error) {
	e164, err := phone.Normalize(phoneNumber)
	if err != nil {
		return "", err
	}
	res, err := s.codes.RequestPhoneCode(ctx, e164)
	if err != nil {
		return "", err
	}
	if err := deliveryErr("failed to send verification code", res); err != nil {
		return "", err
	}
	return res.VerificationID, nil
}

func (s *service) VerifyPhoneCode(ctx context.Context, verificationID, phoneNumber, code string) (*Session, error) {
	e164, err := phone.Normalize(phoneNumber)
	if err != nil {
		return nil, err
	}
	u, err := s.codes.VerifyPhoneCode(ctx, verificationID, e164, code)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) CheckPhone(ctx context.Context, phoneNumber string) (bool, error) {
	e164, err := phone.Normalize(phoneNumber)
	if err != nil {
		return false, err
	}
	if _, err := s.users.FindByEmailOrPhone(ctx, "", e164); err == nil {
		return true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if s.phones == nil {
		return false, fmt.Errorf("phone directory: %w", domain.ErrProviderUnavailable)
	}
	return s.phones.Exists(ctx, e164)
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(req.Email)
	var phonePtr *string
	if req.PhoneNumber != nil && strings.TrimSpace(*req.PhoneNumber) != "" {
		e164, err := phone.Normalize(*req.PhoneNumber)
		if err != nil {
			return nil, err
		}
		phonePtr = &e164
	}

	phoneValue := ""
	if phonePtr != nil {
		phoneValue = *phonePtr
	}
	if _, err := s.users.FindByEmailOrPhone(ctx, email, phoneValue); err == nil {
		return nil, fmt.Errorf("user already exists: %w", domain.ErrDuplicateIdentity)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         strings.TrimSpace(req.Name),
		Email:        &email,
		PhoneNumber:  phonePtr,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		AuthProvider: domain.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.UserID))
	return s.issue(u)
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmailOrPhone(ctx, domain.NormalizeEmail(req.Email), "")
	if errors.Is(err, domain.ErrNotFound) {
		observability.AuthAttempts.WithLabelValues("password", "failure").Inc()
		return nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		observability.AuthAttempts.WithLabelValues("password", "failure").Inc()
		return nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	observability.AuthAttempts.WithLabelValues("password", "success").Inc()
	return s.issue(u)
}

// GoogleLogin signs in with a Google ID token, linking or creating the user
// that owns the token's verified email.
func (s *service) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("idToken required: %w", domain.ErrValidation)
	}
	if s.google == nil {
		return nil, fmt.Errorf("google sign-in: %w", domain.ErrProviderUnavailable)
	}
	p, err := s.google.Verify(ctx, idToken)
	if err != nil {
		observability.AuthAttempts.WithLabelValues("google", "failure").Inc()
		return nil, err
	}
	if p.Email == "" || !p.EmailVerified {
		observability.AuthAttempts.WithLabelValues("google", "failure").Inc()
		return nil, fmt.Errorf("google account email not verified: %w", domain.ErrUnauthorized)
	}
	email := domain.NormalizeEmail(p.Email)

	u, err := s.users.FindByEmailOrPhone(ctx, email, "")
	switch {
	case err == nil:
		u.IsVerified = true
		if u.GoogleSub == "" {
			u.GoogleSub = p.Sub
		}
		if err := s.users.Save(ctx, u); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		if u, err = s.createGoogleUser(ctx, email, p); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	observability.AuthAttempts.WithLabelValues("google", "success").Inc()
	return s.issue(u)
}

func (s *service) createGoogleUser(ctx context.Context, email string, p *google.Payload) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(id.NewOpaque()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	name := p.Name
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         name,
		Email:        &email,
		PasswordHash: string(hash),
		IsVerified:   true,
		Role:         domain.RoleUser,
		AuthProvider: domain.AuthProviderGoogle,
		GoogleSub:    p.Sub,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) issue(u *domain.User) (*Session, error) {
	token, err := s.jwt.Sign(u.UserID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: u, Token: token}, nil
}

func deliveryErr(msg string, res verification.Result) error {
	if res.DeliveryOK {
		return nil
	}
	if errors.Is(res.DeliveryErr, domain.ErrDeliveryUnavailable) {
		return fmt.Errorf("%s: %w", msg, res.DeliveryErr)
	}
	return fmt.Errorf("%s: %w", msg, domain.ErrDeliveryUnavailable)
}
