package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Registrar drives the registration, verification, and password lifecycle
// state machine. Accounts move PendingVerification -> VerifiedPendingPassword
// -> Active, and password resets revisit the pending-password step without
// losing verification.
type Registrar struct {
	repo      RepositoryManager
	mailer    Mailer
	otp       *OTPCodec
	actions   *ActionTokenIssuer
	devBypass bool
	logger    Logger
	now       func() time.Time
}

// NewRegistrar wires the registrar from the repository manager and the
// configuration surface. No mailer is attached by default, use WithMailer.
func NewRegistrar(repo RepositoryManager, cfg Config) *Registrar {
	return &Registrar{
		repo:      repo,
		otp:       NewOTPCodec(repo.OTPs(), minutesOrDefault(cfg.GetOTPExpiration(), DefaultOTPExpiration)),
		actions:   NewActionTokenIssuer(cfg),
		devBypass: cfg.GetOTPDevBypass(),
		logger:    defLogger{},
		now:       time.Now,
	}
}

// WithMailer attaches the outbound mail gateway.
func (r *Registrar) WithMailer(mailer Mailer) *Registrar {
	r.mailer = mailer
	return r
}

func (r *Registrar) WithLogger(logger Logger) *Registrar {
	if logger != nil {
		r.logger = logger
		r.actions.WithLogger(logger)
	}
	return r
}

// WithClock overrides the time source for the registrar and its codec.
func (r *Registrar) WithClock(now func() time.Time) *Registrar {
	if now != nil {
		r.now = now
		r.otp.WithClock(now)
		r.actions.WithClock(now)
	}
	return r
}

// ActionTokens exposes the issuer, used by the HTTP surface for wiring.
func (r *Registrar) ActionTokens() *ActionTokenIssuer {
	return r.actions
}

// StartRegistrationMessage is the request payload for a registration attempt.
type StartRegistrationMessage struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

func (m StartRegistrationMessage) Type() string { return "identity.registration.start" }

// Validate will validate the payload
func (m StartRegistrationMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&m.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// Receipt is the success payload of the OTP-dispatching operations. Code is
// only populated by the development bypass.
type Receipt struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StartRegistration creates or reuses an account for the email and
// dispatches exactly one OTP. A verified account for the same email fails
// with AlreadyExists. An unverified one is reused: profile overwritten,
// password replaced with an unusable placeholder, OTP reissued.
func (r *Registrar) StartRegistration(ctx context.Context, msg StartRegistrationMessage) (*Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid registration payload").
			WithCode(errors.CodeBadRequest)
	}

	if err := validatePhone(msg.Phone); err != nil {
		return nil, err
	}

	firstName, lastName := splitFullName(msg.FullName)
	username := strings.TrimSpace(msg.Username)
	email := strings.TrimSpace(msg.Email)
	phone := NormalizePhone(msg.Phone)

	var code string
	var to string

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accounts := r.repo.Accounts()

		existing, err := accounts.GetByEmailTx(ctx, tx, email)
		if err != nil && !errors.IsNotFound(err) {
			return err
		}

		var account *Account

		switch {
		case existing != nil && existing.EmailVerified:
			return ErrAccountExists

		case existing != nil:
			// Repeated attempt for an unverified email: reuse the row, the
			// username must not belong to anyone else.
			if other, err := accounts.GetByUsernameTx(ctx, tx, username); err == nil && other.ID != existing.ID {
				return ErrAccountExists
			} else if err != nil && !errors.IsNotFound(err) {
				return err
			}

			existing.FirstName = firstName
			existing.LastName = lastName
			existing.Username = username
			existing.Phone = phone
			existing.PasswordHash = RandomPasswordHash()
			existing.IsActive = false

			if account, err = accounts.UpdateTx(ctx, tx, existing); err != nil {
				return err
			}

		default:
			if _, err := accounts.GetByUsernameTx(ctx, tx, username); err == nil {
				return ErrAccountExists
			} else if !errors.IsNotFound(err) {
				return err
			}

			record := &Account{
				Email:        email,
				Username:     username,
				FirstName:    firstName,
				LastName:     lastName,
				Phone:        phone,
				PasswordHash: RandomPasswordHash(),
				CreatedAt:    r.now(),
			}

			if account, err = accounts.CreateTx(ctx, tx, record); err != nil {
				return err
			}
		}

		to = account.Email
		code, err = r.otp.IssueTx(ctx, tx, account)
		return err
	})

	if err != nil {
		return nil, err
	}

	// The OTP row is committed before dispatch so a transport failure never
	// rolls back a record a later resend depends on.
	return r.dispatch(ctx, to, code)
}

// ResendOTPMessage asks for a fresh code for a pending account.
type ResendOTPMessage struct {
	Email string `json:"email"`
}

func (m ResendOTPMessage) Type() string { return "identity.otp.resend" }

// Validate will validate the payload
func (m ResendOTPMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

// ResendOTP dispatches a fresh code without invalidating prior live ones.
// Resending for an already active account is a no-op success.
func (r *Registrar) ResendOTP(ctx context.Context, msg ResendOTPMessage) (*Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid resend payload").
			WithCode(errors.CodeBadRequest)
	}

	var code string
	var noop bool

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := r.repo.Accounts().GetByEmailTx(ctx, tx, msg.Email)
		if err != nil {
			return err
		}

		if account.ReadyForLogin() {
			noop = true
			return nil
		}

		code, err = r.otp.IssueTx(ctx, tx, account)
		return err
	})

	if err != nil {
		return nil, err
	}

	if noop {
		return &Receipt{Message: "Account is already verified"}, nil
	}

	return r.dispatch(ctx, msg.Email, code)
}

// VerifyOTPMessage carries a candidate code for an email.
type VerifyOTPMessage struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (m VerifyOTPMessage) Type() string { return "identity.otp.verify" }

// Validate will validate the payload
func (m VerifyOTPMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Code, validation.Required, validation.Length(4, 10), is.Digit),
	)
}

// ActionTokenResponse carries the purpose-bound token that authorizes the
// next password-mutating step.
type ActionTokenResponse struct {
	ActionToken string `json:"action_token"`
}

// VerifyOTP matches the candidate against the account's live codes, consumes
// the matched record, marks the email verified, and issues a set_password
// action token. Activation stays off until the password is set.
func (r *Registrar) VerifyOTP(ctx context.Context, msg VerifyOTPMessage) (*ActionTokenResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid verification payload").
			WithCode(errors.CodeBadRequest)
	}

	account, err := r.consumeOTP(ctx, msg.Email, msg.Code, func(account *Account) error {
		account.EmailVerified = true
		account.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := r.actions.Issue(account.ID, account.Email, PurposeSetPassword)
	if err != nil {
		return nil, err
	}

	return &ActionTokenResponse{ActionToken: token}, nil
}

// SetPasswordMessage finalizes registration with the action token issued by
// VerifyOTP.
type SetPasswordMessage struct {
	ActionToken string `json:"action_token"`
	Password    string `json:"password"`
}

func (m SetPasswordMessage) Type() string { return "identity.password.set" }

// Validate will validate the payload
func (m SetPasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ActionToken, validation.Required),
		validation.Field(&m.Password, validation.Required),
	)
}

// SetPassword stores the initial password and activates the account. The
// token must carry the set_password purpose and still resolve to a matching
// account.
func (r *Registrar) SetPassword(ctx context.Context, msg SetPasswordMessage) (*Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid password payload").
			WithCode(errors.CodeBadRequest)
	}

	if err := r.completePassword(ctx, msg.ActionToken, PurposeSetPassword, msg.Password); err != nil {
		return nil, err
	}
	return &Receipt{Message: "Password set"}, nil
}

// PasswordResetStartMessage begins a reset for an active account.
type PasswordResetStartMessage struct {
	Email string `json:"email"`
}

func (m PasswordResetStartMessage) Type() string { return "identity.password_reset.start" }

// Validate will validate the payload
func (m PasswordResetStartMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

// PasswordResetStart dispatches a reset code. The account must be verified
// and active, the same dispatch path as registration applies.
func (r *Registrar) PasswordResetStart(ctx context.Context, msg PasswordResetStartMessage) (*Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid reset payload").
			WithCode(errors.CodeBadRequest)
	}

	var code string

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := r.repo.Accounts().GetByEmailTx(ctx, tx, msg.Email)
		if err != nil {
			return err
		}

		if !account.ReadyForLogin() {
			return ErrAccountNotReady
		}

		code, err = r.otp.IssueTx(ctx, tx, account)
		return err
	})

	if err != nil {
		return nil, err
	}

	return r.dispatch(ctx, msg.Email, code)
}

// PasswordResetVerify consumes a reset code and issues a reset_password
// action token. The activation flag is left untouched.
func (r *Registrar) PasswordResetVerify(ctx context.Context, msg VerifyOTPMessage) (*ActionTokenResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid verification payload").
			WithCode(errors.CodeBadRequest)
	}

	account, err := r.consumeOTP(ctx, msg.Email, msg.Code, func(account *Account) error {
		if !account.EmailVerified {
			return ErrAccountNotReady
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := r.actions.Issue(account.ID, account.Email, PurposeResetPassword)
	if err != nil {
		return nil, err
	}

	return &ActionTokenResponse{ActionToken: token}, nil
}

// PasswordResetConfirm stores the new password. The token must carry the
// reset_password purpose, replaying a set_password token here fails.
func (r *Registrar) PasswordResetConfirm(ctx context.Context, msg SetPasswordMessage) (*Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid password payload").
			WithCode(errors.CodeBadRequest)
	}

	if err := r.completePassword(ctx, msg.ActionToken, PurposeResetPassword, msg.Password); err != nil {
		return nil, err
	}
	return &Receipt{Message: "Password updated"}, nil
}

// consumeOTP runs the shared lookup-match-consume sequence inside one
// transaction and applies mutate to the account before persisting it.
func (r *Registrar) consumeOTP(ctx context.Context, email, code string, mutate func(*Account) error) (*Account, error) {
	var account *Account

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accounts := r.repo.Accounts()

		var err error
		if account, err = accounts.GetByEmailTx(ctx, tx, email); err != nil {
			return err
		}

		if err := mutate(account); err != nil {
			return err
		}

		record, err := r.otp.MatchTx(ctx, tx, account, code)
		if err != nil {
			return err
		}

		if err := r.repo.OTPs().ConsumeTx(ctx, tx, record, r.now()); err != nil {
			return err
		}

		_, err = accounts.UpdateTx(ctx, tx, account)
		return err
	})

	if err != nil {
		return nil, err
	}

	return account, nil
}

// completePassword is the shared decode-resolve-strength-store sequence of
// SetPassword and PasswordResetConfirm.
func (r *Registrar) completePassword(ctx context.Context, token, purpose, password string) error {
	claims := r.actions.Decode(token)
	if claims.Empty() || claims.Purpose != purpose {
		return ErrUnauthenticated
	}

	return r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accounts := r.repo.Accounts()

		// The subject must resolve by id and still carry the claimed email,
		// a token minted before an email change is dead.
		account, err := accounts.GetByIDTx(ctx, tx, claims.AccountID)
		if err != nil {
			return err
		}

		if !strings.EqualFold(account.Email, claims.Email) {
			return ErrAccountNotFound
		}

		if !account.EmailVerified {
			return ErrAccountNotReady
		}

		if err := ValidatePasswordStrength(password); err != nil {
			return err
		}

		hash, err := HashPassword(password)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
		}

		return accounts.SetPasswordTx(ctx, tx, account.ID, hash, true)
	})
}

// dispatch delivers the code, applying the development bypass when the
// transport is missing or down. The bypass must be enabled explicitly, it
// defaults to off.
func (r *Registrar) dispatch(ctx context.Context, to, code string) (*Receipt, error) {
	if r.mailer == nil {
		if r.devBypass {
			r.logger.Warn("mail transport unset, returning raw code (dev bypass)")
			return &Receipt{Message: "OTP generated", Code: code}, nil
		}
		return nil, ErrMailUnavailable
	}

	if err := r.mailer.SendOTP(ctx, to, code); err != nil {
		if r.devBypass {
			r.logger.Warn("mail dispatch failed, returning raw code (dev bypass)", "error", err)
			return &Receipt{Message: "OTP generated", Code: code}, nil
		}

		r.logger.Error("mail dispatch failed", "error", err)
		return nil, errors.Wrap(err, errors.CategoryOperation, ErrMailUnavailable.Message).
			WithTextCode(TextCodeMailUnavailable)
	}

	return &Receipt{Message: "OTP sent to email"}, nil
}

func splitFullName(fullName string) (string, string) {
	trimmed := strings.TrimSpace(fullName)
	if first, last, found := strings.Cut(trimmed, " "); found {
		return first, strings.TrimSpace(last)
	}
	return trimmed, ""
}
