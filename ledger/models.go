// Package ledger implements the owned-resource record keeping built on top
// of authenticated identity: per-account categories, transactions, and
// aggregate reports. Every row is scoped to the owning account.
package ledger

import (
	"time"

	"github.com/uptrace/bun"
)

// Transaction kinds.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// Category groups transactions. Names are unique per account.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	AccountID     int64  `bun:"account_id,notnull,unique:uq_account_category_name" json:"-"`
	Name          string `bun:"name,notnull,unique:uq_account_category_name" json:"name"`
}

// Transaction is a single dated ledger entry.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:trx"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	AccountID     int64     `bun:"account_id,notnull" json:"-"`
	CategoryID    *int64    `bun:"category_id,nullzero" json:"category_id,omitempty"`
	Description   string    `bun:"description,notnull" json:"description"`
	Amount        float64   `bun:"amount,notnull" json:"amount"`
	Kind          string    `bun:"transaction_type,notnull" json:"transaction_type"`
	Date          time.Time `bun:"date,notnull" json:"date"`
}

// Summary aggregates a filtered transaction set.
type Summary struct {
	Income  float64 `bun:"income" json:"income"`
	Expense float64 `bun:"expense" json:"expense"`
	Net     float64 `bun:"-" json:"net"`
}

// BreakdownRow is one category slice of the breakdown report.
type BreakdownRow struct {
	CategoryID *int64  `bun:"category_id" json:"category_id,omitempty"`
	Category   string  `bun:"category" json:"category"`
	Total      float64 `bun:"total" json:"total"`
}

// Filter narrows transaction queries. Nil fields are ignored.
type Filter struct {
	Start      *time.Time
	End        *time.Time
	CategoryID *int64
	Kind       string
}
