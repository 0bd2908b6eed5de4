package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/storefront-api/internal/domain"
)

// Normalize parses an international phone number and returns it in E.164 form.
// Numbers must carry their country code ("+15551234567").
func Normalize(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return "", fmt.Errorf("phone number required: %w", domain.ErrValidation)
	}
	if !strings.HasPrefix(clean, "+") {
		return "", fmt.Errorf("phone number must include country code: %w", domain.ErrValidation)
	}
	num, err := phonenumbers.Parse(clean, "")
	if err != nil {
		return "", fmt.Errorf("invalid phone number: %w", domain.ErrValidation)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("invalid phone number: %w", domain.ErrValidation)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
