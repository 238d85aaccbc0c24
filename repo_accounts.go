package identity

import (
	"context"
	"database/sql"
	"net/mail"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Accounts is the account store consumed by the registration flows. Every
// mutation has a Tx variant so operations can share a request-scoped
// transaction.
type Accounts interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
	SetPasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string, active bool) error
}

type accounts struct {
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{db: db}
}

func (a *accounts) GetByID(ctx context.Context, id int64) (*Account, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Account, error) {
	return a.getOne(ctx, tx, "?TableAlias.id = ?", id)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.getOne(ctx, tx, "lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email))
}

func (a *accounts) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return a.getOne(ctx, tx, "?TableAlias.username = ?", strings.TrimSpace(username))
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier)
}

// GetByIdentifierTx resolves a login identifier that may be either an email
// address or a username.
func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error) {
	trimmed := strings.TrimSpace(identifier)

	if isEmail(trimmed) {
		record, err := a.GetByEmailTx(ctx, tx, trimmed)
		if err == nil {
			return record, nil
		}
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}

	return a.GetByUsernameTx(ctx, tx, trimmed)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create account")
	}
	return record, nil
}

func (a *accounts) UpdateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update account")
	}
	return record, nil
}

// SetPasswordTx stores a new password hash and updates the activation flag
// in one statement.
func (a *accounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string, active bool) error {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("is_active = ?", active).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store password")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrAccountNotFound
	}

	return nil
}

func (a *accounts) getOne(ctx context.Context, tx bun.IDB, where string, arg any) (*Account, error) {
	record := &Account{}

	err := tx.NewSelect().
		Model(record).
		Where(where, arg).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account")
	}

	return record, nil
}

func isEmail(identifier string) bool {
	_, err := mail.ParseAddress(identifier)
	return err == nil
}

// isUniqueViolation detects unique constraint failures across the drivers we
// run on. Concurrent registrations for the same email or username race at
// the store and must surface as AlreadyExists, not a generic fault.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
