package ledger

import (
	"context"
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ErrCategoryExists is returned on a duplicate category name for an account.
var ErrCategoryExists = errors.New("a category with this name already exists", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode("CATEGORY_EXISTS")

// ErrRecordNotFound is returned when a row does not exist or belongs to a
// different account. The two cases are indistinguishable on purpose.
var ErrRecordNotFound = errors.New("record not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode("RECORD_NOT_FOUND")

// Store is the ledger persistence surface. All queries are scoped by the
// owning account id.
type Store interface {
	CreateCategory(ctx context.Context, record *Category) (*Category, error)
	ListCategories(ctx context.Context, accountID int64) ([]*Category, error)
	GetCategory(ctx context.Context, accountID, id int64) (*Category, error)

	CreateTransaction(ctx context.Context, record *Transaction) (*Transaction, error)
	GetTransaction(ctx context.Context, accountID, id int64) (*Transaction, error)
	UpdateTransaction(ctx context.Context, record *Transaction) (*Transaction, error)
	DeleteTransaction(ctx context.Context, accountID, id int64) error
	ListTransactions(ctx context.Context, accountID int64, filter Filter) ([]*Transaction, error)

	Summary(ctx context.Context, accountID int64, filter Filter) (*Summary, error)
	CategoryBreakdown(ctx context.Context, accountID int64, filter Filter) ([]*BreakdownRow, error)
}

type store struct {
	db *bun.DB
}

var _ Store = (*store)(nil)

func NewStore(db *bun.DB) Store {
	return &store{db: db}
}

func (s *store) CreateCategory(ctx context.Context, record *Category) (*Category, error) {
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCategoryExists
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create category")
	}
	return record, nil
}

func (s *store) ListCategories(ctx context.Context, accountID int64) ([]*Category, error) {
	var records []*Category

	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list categories")
	}

	return records, nil
}

func (s *store) GetCategory(ctx context.Context, accountID, id int64) (*Category, error) {
	record := &Category{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load category")
	}

	return record, nil
}

func (s *store) CreateTransaction(ctx context.Context, record *Transaction) (*Transaction, error) {
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create transaction")
	}
	return record, nil
}

func (s *store) GetTransaction(ctx context.Context, accountID, id int64) (*Transaction, error) {
	record := &Transaction{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load transaction")
	}

	return record, nil
}

func (s *store) UpdateTransaction(ctx context.Context, record *Transaction) (*Transaction, error) {
	res, err := s.db.NewUpdate().
		Model(record).
		WherePK().
		Where("?TableAlias.account_id = ?", record.AccountID).
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update transaction")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrRecordNotFound
	}

	return record, nil
}

func (s *store) DeleteTransaction(ctx context.Context, accountID, id int64) error {
	res, err := s.db.NewDelete().
		Model((*Transaction)(nil)).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete transaction")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *store) ListTransactions(ctx context.Context, accountID int64, filter Filter) ([]*Transaction, error) {
	var records []*Transaction

	q := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.account_id = ?", accountID)

	applyFilter(q, filter)

	err := q.OrderExpr("?TableAlias.date DESC, ?TableAlias.id DESC").Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list transactions")
	}

	return records, nil
}

func (s *store) Summary(ctx context.Context, accountID int64, filter Filter) (*Summary, error) {
	summary := &Summary{}

	q := s.db.NewSelect().
		Model((*Transaction)(nil)).
		ColumnExpr("coalesce(sum(case when ?TableAlias.transaction_type = ? then ?TableAlias.amount else 0 end), 0) AS income", KindIncome).
		ColumnExpr("coalesce(sum(case when ?TableAlias.transaction_type = ? then ?TableAlias.amount else 0 end), 0) AS expense", KindExpense).
		Where("?TableAlias.account_id = ?", accountID)

	applyFilter(q, filter)

	if err := q.Scan(ctx, summary); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to compute summary")
	}

	summary.Net = summary.Income - summary.Expense
	return summary, nil
}

func (s *store) CategoryBreakdown(ctx context.Context, accountID int64, filter Filter) ([]*BreakdownRow, error) {
	var rows []*BreakdownRow

	q := s.db.NewSelect().
		Model((*Transaction)(nil)).
		ColumnExpr("?TableAlias.category_id AS category_id").
		ColumnExpr("coalesce(cat.name, 'uncategorized') AS category").
		ColumnExpr("coalesce(sum(?TableAlias.amount), 0) AS total").
		Join("LEFT JOIN categories AS cat ON cat.id = ?TableAlias.category_id").
		Where("?TableAlias.account_id = ?", accountID).
		GroupExpr("?TableAlias.category_id, cat.name")

	applyFilter(q, filter)

	if err := q.Scan(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to compute breakdown")
	}

	return rows, nil
}

func applyFilter(q *bun.SelectQuery, filter Filter) {
	if filter.Start != nil {
		q.Where("?TableAlias.date >= ?", *filter.Start)
	}
	if filter.End != nil {
		q.Where("?TableAlias.date <= ?", *filter.End)
	}
	if filter.CategoryID != nil {
		q.Where("?TableAlias.category_id = ?", *filter.CategoryID)
	}
	if filter.Kind != "" {
		q.Where("?TableAlias.transaction_type = ?", filter.Kind)
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
