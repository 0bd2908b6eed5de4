package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storefront-api/internal/application/auth"
	"github.com/storefront-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) SendEmailOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockAuthSvc) VerifyEmailOTP(ctx context.Context, email, otp string) (*auth.Session, error) {
	args := m.Called(ctx, email, otp)
	if s, _ := args.Get(0).(*auth.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuthSvc) SendPhoneCode(ctx context.Context, phoneNumber string) (string, error) {
	args := m.Called(ctx, phoneNumber)
	return args.String(0), args.Error(1)
}
func (m *mockAuthSvc) VerifyPhoneCode(ctx context.Context, verificationID, phoneNumber, code string) (*auth.Session, error) {
	args := m.Called(ctx, verificationID, phoneNumber, code)
	if s, _ := args.Get(0).(*auth.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuthSvc) CheckPhone(ctx context.Context, phoneNumber string) (bool, error) {
	args := m.Called(ctx, phoneNumber)
	return args.Bool(0), args.Error(1)
}
func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*auth.Session, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*auth.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (*auth.Session, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*auth.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuthSvc) GoogleLogin(ctx context.Context, idToken string) (*auth.Session, error) {
	args := m.Called(ctx, idToken)
	if s, _ := args.Get(0).(*auth.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func strPtr(s string) *string { return &s }

// --- email ---

func TestSendEmailOTP_OK(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendEmailOTP", mock.Anything, "a@b.com").Return(nil)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).SendEmailOTP, map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OTP sent to email", decodeBody(t, rr)["message"])
}

func TestSendEmailOTP_InvalidEmail(t *testing.T) {
	svc := &mockAuthSvc{}
	rr := postJSON(t, NewAuthHandler(svc, Options{}).SendEmailOTP, map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "SendEmailOTP", mock.Anything, mock.Anything)
}

func TestSendEmailOTP_DeliveryUnavailableIs500(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendEmailOTP", mock.Anything, "a@b.com").Return(
		errors.Join(errors.New("failed to send OTP"), domain.ErrDeliveryUnavailable))

	rr := postJSON(t, NewAuthHandler(svc, Options{}).SendEmailOTP, map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body["message"], "failed to send OTP")
	assert.NotContains(t, body, "stack")
}

func TestVerifyEmailOTP_Success(t *testing.T) {
	svc := &mockAuthSvc{}
	u := &domain.User{UserID: "u1", Name: "a", Email: strPtr("a@b.com"), IsVerified: true, Role: domain.RoleUser}
	svc.On("VerifyEmailOTP", mock.Anything, "a@b.com", "482913").Return(&auth.Session{User: u, Token: "tok"}, nil)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).VerifyEmailOTP, map[string]string{"email": "a@b.com", "otp": "482913"})
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "u1", body["_id"])
	assert.Equal(t, true, body["isVerified"])
	assert.Equal(t, "tok", body["token"])
	assert.NotContains(t, body, "password")
}

func TestVerifyEmailOTP_ExpiredIs400(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("VerifyEmailOTP", mock.Anything, "a@b.com", "482913").Return(nil, domain.ErrCodeNotFound)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).VerifyEmailOTP, map[string]string{"email": "a@b.com", "otp": "482913"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.ErrCodeNotFound.Error(), decodeBody(t, rr)["message"])
}

// --- phone ---

func TestSendPhoneCode_ReturnsVerificationID(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendPhoneCode", mock.Anything, "+15551234567").Return("vid-1", nil)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).SendPhoneCode, map[string]string{"phoneNumber": "+15551234567"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "vid-1", decodeBody(t, rr)["verificationId"])
}

func TestVerifyPhoneCode_Scenario(t *testing.T) {
	svc := &mockAuthSvc{}
	u := &domain.User{UserID: "u2", Name: "User 4567", PhoneNumber: strPtr("+15551234567"), IsPhoneVerified: true, Role: domain.RoleUser}
	svc.On("VerifyPhoneCode", mock.Anything, "vid-1", "+15551234567", "000000").Return(nil, domain.ErrCodeMismatch)
	svc.On("VerifyPhoneCode", mock.Anything, "vid-1", "+15551234567", "482913").Return(&auth.Session{User: u, Token: "tok"}, nil)
	h := NewAuthHandler(svc, Options{})

	rr := postJSON(t, h.VerifyPhoneCode, map[string]string{
		"phoneNumber": "+15551234567", "verificationId": "vid-1", "verificationCode": "000000",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, h.VerifyPhoneCode, map[string]string{
		"phoneNumber": "+15551234567", "verificationId": "vid-1", "verificationCode": "482913",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "u2", body["_id"])
	assert.Equal(t, "+15551234567", body["phoneNumber"])
	assert.Equal(t, true, body["isPhoneVerified"])
	assert.Equal(t, "tok", body["token"])
}

func TestCheckPhone(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("CheckPhone", mock.Anything, "+15551234567").Return(true, nil)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).CheckPhone, map[string]string{"phoneNumber": "+15551234567"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody(t, rr)["exists"])
}

// --- register / login ---

func TestRegister_Created(t *testing.T) {
	svc := &mockAuthSvc{}
	req := domain.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "password123"}
	u := &domain.User{UserID: "u1", Name: "Alice", Email: strPtr("alice@example.com"), Role: domain.RoleUser}
	svc.On("Register", mock.Anything, req).Return(&auth.Session{User: u, Token: "tok"}, nil)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).Register, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "tok", decodeBody(t, rr)["token"])
}

func TestRegister_DuplicateIs400(t *testing.T) {
	svc := &mockAuthSvc{}
	req := domain.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "password123"}
	svc.On("Register", mock.Anything, req).Return(nil, domain.ErrDuplicateIdentity)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).Register, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_UnauthorizedIs401(t *testing.T) {
	svc := &mockAuthSvc{}
	req := domain.LoginRequest{Email: "a@b.com", Password: "x"}
	svc.On("Login", mock.Anything, req).Return(nil, domain.ErrUnauthorized)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).Login, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGoogle_ProviderUnavailableIs500(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("GoogleLogin", mock.Anything, "idtok").Return(nil, domain.ErrProviderUnavailable)

	rr := postJSON(t, NewAuthHandler(svc, Options{}).Google, map[string]string{"idToken": "idtok"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// --- error envelope ---

func TestHTTPError_UnknownErrorHidesDetails(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendEmailOTP", mock.Anything, "a@b.com").Return(errors.New("dial tcp 10.0.0.5:6379: refused"))

	rr := postJSON(t, NewAuthHandler(svc, Options{}).SendEmailOTP, map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rr)["message"])
}

func TestHTTPError_StackOutsideProduction(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendEmailOTP", mock.Anything, "a@b.com").Return(errors.New("boom"))

	rr := postJSON(t, NewAuthHandler(svc, Options{ExposeStack: true}).SendEmailOTP, map[string]string{"email": "a@b.com"})
	body := decodeBody(t, rr)
	assert.Contains(t, body["stack"], "boom")
}

func TestHTTPError_NoStackOnClientErrors(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("SendEmailOTP", mock.Anything, "a@b.com").Return(fmt.Errorf("stored code: %w", domain.ErrValidation))

	rr := postJSON(t, NewAuthHandler(svc, Options{ExposeStack: true}).SendEmailOTP, map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotContains(t, decodeBody(t, rr), "stack")
}

func TestDecode_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	NewAuthHandler(&mockAuthSvc{}, Options{}).Login(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["message"], "invalid request body")
}
