package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// ActionTokenIssuer mints and decodes the short-lived purpose-bound tokens
// that bridge OTP verification to the password-setting step.
type ActionTokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

// NewActionTokenIssuer creates an issuer from the configured signing secret
// and the action token lifetime.
func NewActionTokenIssuer(cfg Config) *ActionTokenIssuer {
	return &ActionTokenIssuer{
		signingKey: []byte(cfg.GetSigningKey()),
		ttl:        minutesOrDefault(cfg.GetActionTokenExpiration(), DefaultActionTokenExpiration),
		issuer:     cfg.GetIssuer(),
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (s *ActionTokenIssuer) WithLogger(logger Logger) *ActionTokenIssuer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source, used by tests to control expiry.
func (s *ActionTokenIssuer) WithClock(now func() time.Time) *ActionTokenIssuer {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue signs a token binding the subject id and email to a purpose. The
// expiry is fixed at issuance.
func (s *ActionTokenIssuer) Issue(accountID int64, email, purpose string) (string, error) {
	if !validPurpose(purpose) {
		return "", errors.New("unknown action token purpose", errors.CategoryInternal).
			WithMetadata(map[string]any{"purpose": purpose})
	}

	now := s.now()
	claims := &ActionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectFromID(accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		AccountID: accountID,
		Email:     email,
		Purpose:   purpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign action token")
	}

	return signed, nil
}

// Decode verifies signature and expiry and returns the claim set. Every
// failure, expired, forged, malformed, or an unknown purpose, yields the
// empty claim set: callers must not be able to tell the cases apart.
func (s *ActionTokenIssuer) Decode(raw string) ActionClaims {
	claims := &ActionClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method", errors.CategoryAuth)
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil || !token.Valid {
		s.logger.Debug("action token rejected", "error", err)
		return ActionClaims{}
	}

	if claims.Empty() || !validPurpose(claims.Purpose) {
		s.logger.Debug("action token carries an incomplete claim set")
		return ActionClaims{}
	}

	return *claims
}
