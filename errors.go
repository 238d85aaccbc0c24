package identity

import (
	"github.com/goliatone/go-errors"
)

// Text codes exposed to API consumers. These are stable identifiers, the
// human readable messages are not part of the contract.
const (
	TextCodeAccountExists      = "ACCOUNT_EXISTS"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeOTPInvalid         = "OTP_INVALID"
	TextCodeOTPExpired         = "OTP_EXPIRED"
	TextCodeWeakPassword       = "WEAK_PASSWORD"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeAccountNotReady    = "ACCOUNT_NOT_READY"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeMailUnavailable    = "MAIL_UNAVAILABLE"
)

// ErrAccountExists is returned when an email or username collides with an
// already verified account.
var ErrAccountExists = errors.New("an account with this email or username already exists", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeAccountExists)

// ErrAccountNotFound is returned when no account matches the given identifier.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrOTPInvalid is returned when a candidate code matches none of the live
// OTP records for the account.
var ErrOTPInvalid = errors.New("the verification code is not valid", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeOTPInvalid)

// ErrOTPExpired is returned when the account has no live OTP records left.
var ErrOTPExpired = errors.New("the verification code has expired, request a new one", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeOTPExpired)

// ErrWeakPassword is returned when a new password fails the strength rules.
var ErrWeakPassword = errors.New("password must be at least 8 characters and mix letters with digits or symbols", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeWeakPassword)

// ErrInvalidCredentials is returned on login when the identifier or the
// password do not match. The two cases are indistinguishable on purpose.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrAccountNotReady is returned when an operation requires a verified or
// active account and the precondition does not hold.
var ErrAccountNotReady = errors.New("account is not verified or not active", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeAccountNotReady)

// ErrUnauthenticated covers every bad action or session token: expired,
// forged, malformed, or carrying the wrong purpose. Collapsing them into one
// outcome keeps token validation internals away from callers.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthenticated)

// ErrMailUnavailable is returned when the mail transport is down or not
// configured and no development bypass applies.
var ErrMailUnavailable = errors.New("could not deliver the verification email, try again later", errors.CategoryOperation).
	WithCode(errors.CodeInternal).
	WithTextCode(TextCodeMailUnavailable)

// HasTextCode reports whether err carries the given stable text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == code
	}

	return false
}
