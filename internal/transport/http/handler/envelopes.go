package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/pkg/validate"
	"go.uber.org/zap"
)

// MessageEnvelope is the generic response wrapper. Stack is only populated
// outside production.
type MessageEnvelope struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// UserPayload is the public view of a user.
type UserPayload struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Email           *string   `json:"email,omitempty"`
	PhoneNumber     *string   `json:"phoneNumber,omitempty"`
	IsVerified      bool      `json:"isVerified"`
	IsPhoneVerified bool      `json:"isPhoneVerified"`
	Role            string    `json:"role"`
	AuthProvider    string    `json:"authProvider,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// AuthEnvelope is a user payload with a bearer token.
type AuthEnvelope struct {
	UserPayload
	Token string `json:"token"`
}

// PhoneAuthEnvelope is returned by phone code verification.
type PhoneAuthEnvelope struct {
	ID              string `json:"_id"`
	Name            string `json:"name"`
	PhoneNumber     string `json:"phoneNumber"`
	Role            string `json:"role"`
	IsPhoneVerified bool   `json:"isPhoneVerified"`
	Token           string `json:"token"`
}

// PaginatedUsersEnvelope wraps cursor-paginated user lists.
type PaginatedUsersEnvelope struct {
	Users      []UserPayload `json:"users"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func toUserPayload(u *domain.User) UserPayload {
	return UserPayload{
		ID:              u.UserID,
		Name:            u.Name,
		Email:           u.Email,
		PhoneNumber:     u.PhoneNumber,
		IsVerified:      u.IsVerified,
		IsPhoneVerified: u.IsPhoneVerified,
		Role:            u.Role,
		AuthProvider:    u.AuthProvider,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Options configure error rendering shared by all handlers.
type Options struct {
	// ExposeStack adds a stack trace to error responses.
	ExposeStack bool
	Log         *zap.Logger
}

type errorWriter struct {
	exposeStack bool
	log         *zap.Logger
}

func newErrorWriter(opts Options) errorWriter {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return errorWriter{exposeStack: opts.ExposeStack, log: log}
}

// httpError maps domain sentinels to HTTP status codes.
func (e errorWriter) httpError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrCodeNotFound),
		errors.Is(err, domain.ErrCodeMismatch),
		errors.Is(err, domain.ErrDuplicateIdentity):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrDeliveryUnavailable),
		errors.Is(err, domain.ErrProviderUnavailable):
		msg = err.Error()
	}

	if status >= http.StatusInternalServerError {
		e.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	env := MessageEnvelope{Message: msg}
	if e.exposeStack && status >= http.StatusInternalServerError {
		env.Stack = err.Error() + "\n" + string(debug.Stack())
	}
	writeJSON(w, status, env)
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return validate.Struct(v)
}

var errInvalidBody = fmt.Errorf("invalid request body: %w", domain.ErrValidation)
