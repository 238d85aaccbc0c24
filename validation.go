package identity

import (
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	hasLetter = validation.NewStringRule(func(s string) bool {
		for _, r := range s {
			if unicode.IsLetter(r) {
				return true
			}
		}
		return false
	}, "must contain at least one letter")

	hasDigitOrSymbol = validation.NewStringRule(func(s string) bool {
		for _, r := range s {
			if !unicode.IsLetter(r) {
				return true
			}
		}
		return false
	}, "must contain at least one digit or symbol")
)

// ValidatePasswordStrength enforces the password rules shared by the initial
// set and the reset flows: minimum length 8, at least one letter, and at
// least one digit or symbol.
func ValidatePasswordStrength(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(8, 0),
		hasLetter,
		hasDigitOrSymbol,
	)
	if err != nil {
		return ErrWeakPassword
	}
	return nil
}
