package identity

import (
	"context"

	"github.com/goliatone/go-errors"
)

// Auther authenticates credentials and resolves bearer session tokens back
// to accounts.
type Auther struct {
	repo     RepositoryManager
	sessions *SessionTokenIssuer
	logger   Logger
}

// NewAuthenticator returns a new Auther.
func NewAuthenticator(repo RepositoryManager, cfg Config) *Auther {
	return &Auther{
		repo:     repo,
		sessions: NewSessionTokenIssuer(cfg),
		logger:   defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
		s.sessions.WithLogger(logger)
	}
	return s
}

// Sessions returns the session token issuer used by this authenticator.
func (s *Auther) Sessions() *SessionTokenIssuer {
	return s.sessions
}

// TokenResponse is the login success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login verifies the identifier, which may be an email or a username, and
// the password, then issues a bearer session token. A missing account and a
// wrong password fail identically.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenResponse, error) {
	account, err := s.repo.Accounts().GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("login account lookup failed", "error", err)
		return nil, err
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !account.ReadyForLogin() {
		return nil, ErrAccountNotReady
	}

	token, err := s.sessions.Issue(account.ID, account.Email)
	if err != nil {
		s.logger.Error("login token issuance failed", "error", err)
		return nil, err
	}

	return &TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// ResolveSession decodes a bearer token and loads the subject account. Any
// token failure or a vanished account yields Unauthenticated.
func (s *Auther) ResolveSession(ctx context.Context, raw string) (*Account, error) {
	claims, err := s.sessions.Decode(raw)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Accounts().GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	return account, nil
}
