package domain

import "time"

// Verification keys in the ephemeral store.
const (
	EmailOTPKeyPrefix     = "otp:"
	VerificationKeyPrefix = "verification:"
)

// DefaultCodeTTL is how long an issued code stays valid.
const DefaultCodeTTL = 600 * time.Second

// EmailOTPKey returns the store key holding the code sent to email.
func EmailOTPKey(email string) string { return EmailOTPKeyPrefix + email }

// VerificationKey returns the store key of a phone verification record.
func VerificationKey(verificationID string) string { return VerificationKeyPrefix + verificationID }
