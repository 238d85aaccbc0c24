package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// defaultPhoneRegion interprets numbers submitted without a country prefix.
// A leading + always wins over the region.
const defaultPhoneRegion = "US"

// NormalizePhone strips spaces and dashes and drops a leading plus sign so
// the stored value is plain digits.
func NormalizePhone(raw string) string {
	normalized := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	return strings.TrimPrefix(normalized, "+")
}

// validatePhone rejects values that cannot possibly be a phone number. The
// field itself is optional, an empty value passes.
func validatePhone(raw string) error {
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return errors.New("phone number is not valid", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	return nil
}
