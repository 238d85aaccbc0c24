package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// SessionTokenIssuer mints the long-lived bearer tokens used on
// authenticated requests and decodes them back into session claims.
type SessionTokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

// NewSessionTokenIssuer creates an issuer from the configured signing secret
// and the session token lifetime.
func NewSessionTokenIssuer(cfg Config) *SessionTokenIssuer {
	return &SessionTokenIssuer{
		signingKey: []byte(cfg.GetSigningKey()),
		ttl:        minutesOrDefault(cfg.GetSessionTokenExpiration(), DefaultSessionTokenExpiration),
		issuer:     cfg.GetIssuer(),
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (s *SessionTokenIssuer) WithLogger(logger Logger) *SessionTokenIssuer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source, used by tests to control expiry.
func (s *SessionTokenIssuer) WithClock(now func() time.Time) *SessionTokenIssuer {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue signs a bearer session token for the account.
func (s *SessionTokenIssuer) Issue(accountID int64, email string) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectFromID(accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		AccountID: accountID,
		Email:     email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Decode verifies signature and expiry and returns the session claims. Any
// failure maps to ErrUnauthenticated, the cause is not surfaced.
func (s *SessionTokenIssuer) Decode(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method", errors.CategoryAuth)
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil || !token.Valid {
		s.logger.Debug("session token rejected", "error", err)
		return nil, ErrUnauthenticated
	}

	if claims.AccountID == 0 {
		return nil, ErrUnauthenticated
	}

	return claims, nil
}
