// Package verification issues and checks one-time codes for email and phone
// ownership, and reconciles verified identities with the user store.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/observability"
	"github.com/storefront-api/internal/pkg/id"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Codes are drawn uniformly from [codeMin, codeMin+codeSpan).
const (
	codeMin  = 100000
	codeSpan = 900000
)

const (
	channelEmail = "email"
	channelPhone = "phone"
)

type codeStore interface {
	PutCode(ctx context.Context, key, code string, ttl time.Duration) error
	PutVerification(ctx context.Context, key, phoneNumber, code string, ttl time.Duration) error
	ConsumeCode(ctx context.Context, key, code string) error
	ConsumeVerification(ctx context.Context, key, phoneNumber, code string) (string, error)
}

type userStore interface {
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Save(ctx context.Context, u *domain.User) error
}

type emailSender interface {
	Send(ctx context.Context, to, subject, body string) notification.Delivery
}

type smsSender interface {
	Send(ctx context.Context, to, message string) notification.Delivery
}

// Result reports the outcome of a code request. The code is stored even when
// DeliveryOK is false.
type Result struct {
	VerificationID string
	DeliveryOK     bool
	DeliveryErr    error
}

type ServiceDeps struct {
	Codes codeStore
	Users userStore
	Email emailSender
	SMS   smsSender
	TTL   time.Duration
	Log   *zap.Logger
}

// Engine is the single authority for issuing and consuming verification codes.
type Engine struct {
	codes   codeStore
	users   userStore
	email   emailSender
	sms     smsSender
	ttl     time.Duration
	log     *zap.Logger
	newCode func() (string, error)
	newID   func() string
}

func NewEngine(deps ServiceDeps) *Engine {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = domain.DefaultCodeTTL
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		codes:   deps.Codes,
		users:   deps.Users,
		email:   deps.Email,
		sms:     deps.SMS,
		ttl:     ttl,
		log:     log,
		newCode: generateCode,
		newID:   id.NewOpaque,
	}
}

// RequestEmailCode stores a fresh code for email, replacing any previous one,
// and sends it through the email chain.
func (e *Engine) RequestEmailCode(ctx context.Context, email string) (Result, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return Result{}, fmt.Errorf("email required: %w", domain.ErrValidation)
	}
	code, err := e.newCode()
	if err != nil {
		return Result{}, err
	}
	if err := e.codes.PutCode(ctx, domain.EmailOTPKey(email), code, e.ttl); err != nil {
		return Result{}, err
	}
	observability.CodesIssued.WithLabelValues(channelEmail).Inc()

	d := e.email.Send(ctx, email, "Your verification code", e.message(code))
	if !d.OK {
		e.log.Warn("email code stored but not delivered", zap.Error(d.Err))
	}
	return Result{DeliveryOK: d.OK, DeliveryErr: d.Err}, nil
}

// RequestPhoneCode creates a verification record under a new opaque ID and
// sends the code through the SMS chain. phone must already be E.164.
func (e *Engine) RequestPhoneCode(ctx context.Context, phone string) (Result, error) {
	if phone == "" {
		return Result{}, fmt.Errorf("phone number required: %w", domain.ErrValidation)
	}
	code, err := e.newCode()
	if err != nil {
		return Result{}, err
	}
	vid := e.newID()
	if err := e.codes.PutVerification(ctx, domain.VerificationKey(vid), phone, code, e.ttl); err != nil {
		return Result{}, err
	}
	observability.CodesIssued.WithLabelValues(channelPhone).Inc()

	d := e.sms.Send(ctx, phone, e.message(code))
	if !d.OK {
		e.log.Warn("phone code stored but not delivered", zap.String("verification_id", vid), zap.Error(d.Err))
	}
	return Result{VerificationID: vid, DeliveryOK: d.OK, DeliveryErr: d.Err}, nil
}

// VerifyEmailCode consumes the code for email and returns the reconciled user
// with IsVerified set.
func (e *Engine) VerifyEmailCode(ctx context.Context, email, code string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	err := e.codes.ConsumeCode(ctx, domain.EmailOTPKey(email), strings.TrimSpace(code))
	recordCheck(channelEmail, err)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, email, "")
}

// VerifyPhoneCode consumes the verification record and returns the reconciled
// user with IsPhoneVerified set. The record must belong to phone when phone is
// non-empty.
func (e *Engine) VerifyPhoneCode(ctx context.Context, verificationID, phone, code string) (*domain.User, error) {
	if verificationID == "" {
		return nil, fmt.Errorf("verification id required: %w", domain.ErrValidation)
	}
	stored, err := e.codes.ConsumeVerification(ctx, domain.VerificationKey(verificationID), phone, strings.TrimSpace(code))
	recordCheck(channelPhone, err)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, "", stored)
}

// reconcile upserts the user owning the verified identity. A concurrent
// create of the same identity is retried once as an update.
func (e *Engine) reconcile(ctx context.Context, email, phone string) (*domain.User, error) {
	u, err := e.markExisting(ctx, email, phone)
	if !errors.Is(err, domain.ErrNotFound) {
		return u, err
	}

	u, err = newVerifiedUser(email, phone)
	if err != nil {
		return nil, err
	}
	err = e.users.Create(ctx, u)
	if errors.Is(err, domain.ErrDuplicateIdentity) {
		e.log.Info("user created concurrently, updating instead")
		return e.markExisting(ctx, email, phone)
	}
	if err != nil {
		return nil, err
	}
	e.log.Info("user created from verified identity", zap.String("user_id", u.UserID))
	return u, nil
}

func (e *Engine) markExisting(ctx context.Context, email, phone string) (*domain.User, error) {
	u, err := e.users.FindByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, err
	}
	if email != "" {
		u.IsVerified = true
	}
	if phone != "" {
		u.IsPhoneVerified = true
	}
	if err := e.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (e *Engine) message(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(e.ttl.Minutes()))
}

func newVerifiedUser(email, phone string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Role:         domain.RoleUser,
		AuthProvider: domain.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if email != "" {
		// Nobody knows this password; the account signs in by code until one is set.
		hash, err := bcrypt.GenerateFromPassword([]byte(id.NewOpaque()), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		u.Email = &email
		u.PasswordHash = string(hash)
		u.IsVerified = true
		u.Name = email[:strings.IndexByte(email+"@", '@')]
	}
	if phone != "" {
		u.PhoneNumber = &phone
		u.IsPhoneVerified = true
		u.Name = "User " + phone[max(0, len(phone)-4):]
	}
	return u, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func recordCheck(channel string, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCodeMismatch):
		result = "mismatch"
	case errors.Is(err, domain.ErrCodeNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	observability.CodeChecks.WithLabelValues(channel, result).Inc()
}
