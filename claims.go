package identity

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Action token purposes. The purpose set is closed: any other value is
// rejected at decode time.
const (
	// PurposeSetPassword bridges OTP verification to the initial password set.
	PurposeSetPassword = "set_password"
	// PurposeResetPassword bridges reset verification to the password change.
	PurposeResetPassword = "reset_password"
)

// ActionClaims is the claim set carried by an action token: subject id,
// subject email, and a bound purpose. Tokens are not persisted, validity is
// entirely a function of signature and expiry.
type ActionClaims struct {
	jwt.RegisteredClaims
	AccountID int64  `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
}

// Empty reports whether the claim set is missing any required field. Decode
// returns an empty set for every invalid token, callers treat it uniformly.
func (c ActionClaims) Empty() bool {
	return c.AccountID == 0 || c.Email == "" || c.Purpose == ""
}

// SessionClaims is the claim set carried by a bearer session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	AccountID int64  `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
}

func validPurpose(purpose string) bool {
	switch purpose {
	case PurposeSetPassword, PurposeResetPassword:
		return true
	default:
		return false
	}
}

func subjectFromID(id int64) string {
	return strconv.FormatInt(id, 10)
}
