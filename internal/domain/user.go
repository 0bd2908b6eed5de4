package domain

import (
	"fmt"
	"strings"
	"time"
)

// User is the persistent account record. Email and PhoneNumber are optional but
// at least one must be set; each is unique when present.
type User struct {
	UserID          string    `json:"_id" dynamodbav:"user_id" bson:"_id"`
	Name            string    `json:"name" dynamodbav:"name" bson:"name"`
	Email           *string   `json:"email,omitempty" dynamodbav:"email,omitempty" bson:"email,omitempty"`
	PhoneNumber     *string   `json:"phoneNumber,omitempty" dynamodbav:"phone_number,omitempty" bson:"phoneNumber,omitempty"`
	PasswordHash    string    `json:"-" dynamodbav:"password_hash,omitempty" bson:"password,omitempty"`
	IsVerified      bool      `json:"isVerified" dynamodbav:"is_verified" bson:"isVerified"`
	IsPhoneVerified bool      `json:"isPhoneVerified" dynamodbav:"is_phone_verified" bson:"isPhoneVerified"`
	Role            string    `json:"role" dynamodbav:"role" bson:"role"`
	AuthProvider    string    `json:"authProvider,omitempty" dynamodbav:"auth_provider" bson:"authProvider"` // "local" | "google"
	GoogleSub       string    `json:"-" dynamodbav:"google_sub,omitempty" bson:"googleSub,omitempty"`
	CreatedAt       time.Time `json:"createdAt" dynamodbav:"created_at" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" dynamodbav:"updated_at" bson:"updatedAt"`
}

// Validate checks the record-level invariants enforced by every credential store.
func (u *User) Validate() error {
	if u.EmailValue() == "" && u.PhoneValue() == "" {
		return fmt.Errorf("email or phone number required: %w", ErrValidation)
	}
	if u.EmailValue() != "" && u.PasswordHash == "" {
		return fmt.Errorf("password required when email is set: %w", ErrValidation)
	}
	if u.Role != RoleUser && u.Role != RoleAdmin {
		return fmt.Errorf("invalid role %q: %w", u.Role, ErrValidation)
	}
	return nil
}

// EmailValue returns the email or "" when unset.
func (u *User) EmailValue() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// PhoneValue returns the phone number or "" when unset.
func (u *User) PhoneValue() string {
	if u.PhoneNumber == nil {
		return ""
	}
	return *u.PhoneNumber
}

// NormalizeEmail lower-cases and trims an address so it can be used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=6,max=72"`
	PhoneNumber *string `json:"phoneNumber"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phoneNumber"`
	Password    *string `json:"password" validate:"omitempty,min=6,max=72"`
}
