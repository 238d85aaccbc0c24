package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// OTPCodeLength is the number of decimal digits in a generated code.
// Leading zeros are preserved.
const OTPCodeLength = 6

var otpCodeSpace = big.NewInt(1_000_000)

// OTPCodec generates one-time codes, stores their salted digests, and
// verifies candidate codes against the live records of an account.
type OTPCodec struct {
	otps EmailOTPs
	ttl  time.Duration
	now  func() time.Time
}

// NewOTPCodec creates a codec persisting through the given repository. Codes
// expire ttl after issuance.
func NewOTPCodec(otps EmailOTPs, ttl time.Duration) *OTPCodec {
	return &OTPCodec{
		otps: otps,
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock overrides the time source, used by tests to control expiry.
func (c *OTPCodec) WithClock(now func() time.Time) *OTPCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// IssueTx generates a fresh code for the account, persists its salted digest
// with the configured expiry, and returns the raw code for dispatch. Prior
// live codes stay valid, a resend must not lock out another device.
func (c *OTPCodec) IssueTx(ctx context.Context, tx bun.IDB, account *Account) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate verification code")
	}

	salt, err := generateOTPSalt()
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate code salt")
	}

	now := c.now()
	record := &EmailOTP{
		AccountID: account.ID,
		CodeSalt:  salt,
		CodeHash:  digestOTP(salt, code),
		ExpiresAt: now.Add(c.ttl),
		CreatedAt: now,
	}

	if _, err := c.otps.CreateTx(ctx, tx, record); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to persist verification code")
	}

	return code, nil
}

// MatchTx checks the candidate against every live record for the account,
// newest first. Any unconsumed, unexpired historical code still verifies so
// codes delivered to multiple devices keep working. Returns ErrOTPExpired
// when no live record exists and ErrOTPInvalid when none matches.
func (c *OTPCodec) MatchTx(ctx context.Context, tx bun.IDB, account *Account, candidate string) (*EmailOTP, error) {
	records, err := c.otps.LiveForAccountTx(ctx, tx, account.ID, c.now())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load verification codes")
	}

	if len(records) == 0 {
		return nil, ErrOTPExpired
	}

	for _, record := range records {
		digest := digestOTP(record.CodeSalt, candidate)
		if subtle.ConstantTimeCompare([]byte(digest), []byte(record.CodeHash)) == 1 {
			return record, nil
		}
	}

	return nil, ErrOTPInvalid
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPCodeLength, n), nil
}

func generateOTPSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func digestOTP(salt, code string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}
