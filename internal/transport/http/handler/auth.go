package handler

import (
	"net/http"

	"github.com/storefront-api/internal/application/auth"
	"github.com/storefront-api/internal/domain"
)

type sendEmailOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyEmailOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

type verifyPhoneRequest struct {
	PhoneNumber      string `json:"phoneNumber" validate:"required"`
	VerificationID   string `json:"verificationId" validate:"required"`
	VerificationCode string `json:"verificationCode" validate:"required,len=6,numeric"`
}

type googleRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// AuthHandler serves the verification and sign-in endpoints.
type AuthHandler struct {
	svc auth.Service
	errorWriter
}

func NewAuthHandler(svc auth.Service, opts Options) *AuthHandler {
	return &AuthHandler{svc: svc, errorWriter: newErrorWriter(opts)}
}

func (h *AuthHandler) SendEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req sendEmailOTPRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	if err := h.svc.SendEmailOTP(r.Context(), req.Email); err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent to email"})
}

func (h *AuthHandler) VerifyEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailOTPRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	sess, err := h.svc.VerifyEmailOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthEnvelope(sess))
}

func (h *AuthHandler) SendPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	vid, err := h.svc.SendPhoneCode(r.Context(), req.PhoneNumber)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message        string `json:"message"`
		VerificationID string `json:"verificationId"`
	}{Message: "Verification code sent", VerificationID: vid})
}

func (h *AuthHandler) VerifyPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req verifyPhoneRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	sess, err := h.svc.VerifyPhoneCode(r.Context(), req.VerificationID, req.PhoneNumber, req.VerificationCode)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PhoneAuthEnvelope{
		ID:              sess.User.UserID,
		Name:            sess.User.Name,
		PhoneNumber:     sess.User.PhoneValue(),
		Role:            sess.User.Role,
		IsPhoneVerified: sess.User.IsPhoneVerified,
		Token:           sess.Token,
	})
}

func (h *AuthHandler) CheckPhone(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	exists, err := h.svc.CheckPhone(r.Context(), req.PhoneNumber)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Exists bool `json:"exists"`
	}{Exists: exists})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	sess, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthEnvelope(sess))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	sess, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthEnvelope(sess))
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := decode(r, &req); err != nil {
		h.httpError(w, r, err)
		return
	}
	sess, err := h.svc.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		h.httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthEnvelope(sess))
}

func toAuthEnvelope(sess *auth.Session) AuthEnvelope {
	return AuthEnvelope{UserPayload: toUserPayload(sess.User), Token: sess.Token}
}
