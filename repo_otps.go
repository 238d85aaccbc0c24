package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// EmailOTPs is the store for issued one-time codes. Records are never
// deleted, expiry is enforced lazily by the live-set query.
type EmailOTPs interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *EmailOTP) (*EmailOTP, error)
	// LiveForAccountTx returns every unconsumed, unexpired record for the
	// account, newest first by creation then id.
	LiveForAccountTx(ctx context.Context, tx bun.IDB, accountID int64, now time.Time) ([]*EmailOTP, error)
	// ConsumeTx marks the record consumed. A record can be consumed at most
	// once.
	ConsumeTx(ctx context.Context, tx bun.IDB, record *EmailOTP, at time.Time) error
}

type emailOTPs struct {
	db *bun.DB
}

var _ EmailOTPs = (*emailOTPs)(nil)

func NewEmailOTPsRepository(db *bun.DB) EmailOTPs {
	return &emailOTPs{db: db}
}

func (r *emailOTPs) CreateTx(ctx context.Context, tx bun.IDB, record *EmailOTP) (*EmailOTP, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create otp record")
	}
	return record, nil
}

func (r *emailOTPs) LiveForAccountTx(ctx context.Context, tx bun.IDB, accountID int64, now time.Time) ([]*EmailOTP, error) {
	var records []*EmailOTP

	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.consumed_at IS NULL").
		Where("?TableAlias.expires_at > ?", now).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Scan(ctx)

	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load otp records")
	}

	return records, nil
}

func (r *emailOTPs) ConsumeTx(ctx context.Context, tx bun.IDB, record *EmailOTP, at time.Time) error {
	res, err := tx.NewUpdate().
		Model((*EmailOTP)(nil)).
		Set("consumed_at = ?", at).
		Where("?TableAlias.id = ?", record.ID).
		Where("?TableAlias.consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to consume otp record")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrOTPInvalid
	}

	record.ConsumedAt = &at
	return nil
}
