package identity

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Account is the identity record. Email and username are unique across all
// accounts. An account with no password set yet carries a random unusable
// placeholder hash so it can never authenticate.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Email         string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Username      string    `bun:"username,notnull,unique" json:"username,omitempty"`
	FirstName     string    `bun:"first_name" json:"first_name,omitempty"`
	LastName      string    `bun:"last_name" json:"last_name,omitempty"`
	Phone         string    `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash  string    `bun:"password_hash,notnull" json:"-"`
	EmailVerified bool      `bun:"email_verified,notnull,default:false" json:"email_verified"`
	IsActive      bool      `bun:"is_active,notnull,default:false" json:"is_active"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
}

// FullName joins the first and last name, skipping empty parts.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// ReadyForLogin reports whether the account completed the registration flow.
// is_active implies email_verified, activation only happens after the email
// was verified and a password was set.
func (a *Account) ReadyForLogin() bool {
	return a.EmailVerified && a.IsActive
}

// EmailOTP is one issued one-time code. The raw code is never persisted, only
// a one-way digest of salt:code. Records are consumed at most once and never
// deleted, expiry alone excludes them from matching.
type EmailOTP struct {
	bun.BaseModel `bun:"table:email_otps,alias:otp"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	AccountID     int64      `bun:"account_id,notnull" json:"account_id,omitempty"`
	CodeSalt      string     `bun:"code_salt,notnull" json:"-"`
	CodeHash      string     `bun:"code_hash,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
}

// Live reports whether the record can still match a candidate code: not yet
// consumed and not past its expiry.
func (o *EmailOTP) Live(now time.Time) bool {
	return o.ConsumedAt == nil && o.ExpiresAt.After(now)
}
