package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-identity/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory ledger.Store for service-level tests.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	categories   map[int64]*ledger.Category
	transactions map[int64]*ledger.Transaction
}

var _ ledger.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		categories:   map[int64]*ledger.Category{},
		transactions: map[int64]*ledger.Transaction{},
	}
}

func (m *memStore) CreateCategory(_ context.Context, record *ledger.Category) (*ledger.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.categories {
		if row.AccountID == record.AccountID && row.Name == record.Name {
			return nil, ledger.ErrCategoryExists
		}
	}

	m.nextID++
	record.ID = m.nextID
	clone := *record
	m.categories[record.ID] = &clone
	return record, nil
}

func (m *memStore) ListCategories(_ context.Context, accountID int64) ([]*ledger.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.Category
	for _, row := range m.categories {
		if row.AccountID == accountID {
			clone := *row
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStore) GetCategory(_ context.Context, accountID, id int64) (*ledger.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.categories[id]; ok && row.AccountID == accountID {
		clone := *row
		return &clone, nil
	}
	return nil, ledger.ErrRecordNotFound
}

func (m *memStore) CreateTransaction(_ context.Context, record *ledger.Transaction) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	record.ID = m.nextID
	clone := *record
	m.transactions[record.ID] = &clone
	return record, nil
}

func (m *memStore) GetTransaction(_ context.Context, accountID, id int64) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.transactions[id]; ok && row.AccountID == accountID {
		clone := *row
		return &clone, nil
	}
	return nil, ledger.ErrRecordNotFound
}

func (m *memStore) UpdateTransaction(_ context.Context, record *ledger.Transaction) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.transactions[record.ID]
	if !ok || row.AccountID != record.AccountID {
		return nil, ledger.ErrRecordNotFound
	}

	clone := *record
	m.transactions[record.ID] = &clone
	return record, nil
}

func (m *memStore) DeleteTransaction(_ context.Context, accountID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.transactions[id]
	if !ok || row.AccountID != accountID {
		return ledger.ErrRecordNotFound
	}

	delete(m.transactions, id)
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, accountID int64, filter ledger.Filter) ([]*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.Transaction
	for _, row := range m.transactions {
		if row.AccountID != accountID || !matches(row, filter) {
			continue
		}
		clone := *row
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) Summary(_ context.Context, accountID int64, filter ledger.Filter) (*ledger.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &ledger.Summary{}
	for _, row := range m.transactions {
		if row.AccountID != accountID || !matches(row, filter) {
			continue
		}
		switch row.Kind {
		case ledger.KindIncome:
			summary.Income += row.Amount
		case ledger.KindExpense:
			summary.Expense += row.Amount
		}
	}
	summary.Net = summary.Income - summary.Expense
	return summary, nil
}

func (m *memStore) CategoryBreakdown(_ context.Context, accountID int64, filter ledger.Filter) ([]*ledger.BreakdownRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := map[int64]float64{}
	for _, row := range m.transactions {
		if row.AccountID != accountID || !matches(row, filter) {
			continue
		}
		var key int64
		if row.CategoryID != nil {
			key = *row.CategoryID
		}
		totals[key] += row.Amount
	}

	var out []*ledger.BreakdownRow
	for id, total := range totals {
		row := &ledger.BreakdownRow{Category: "uncategorized", Total: total}
		if id != 0 {
			catID := id
			row.CategoryID = &catID
			if cat, ok := m.categories[id]; ok {
				row.Category = cat.Name
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func matches(row *ledger.Transaction, filter ledger.Filter) bool {
	if filter.Start != nil && row.Date.Before(*filter.Start) {
		return false
	}
	if filter.End != nil && row.Date.After(*filter.End) {
		return false
	}
	if filter.CategoryID != nil && (row.CategoryID == nil || *row.CategoryID != *filter.CategoryID) {
		return false
	}
	if filter.Kind != "" && row.Kind != filter.Kind {
		return false
	}
	return true
}

func TestCreateCategory(t *testing.T) {
	store := newMemStore()
	service := ledger.NewService(store)

	record, err := service.CreateCategory(context.Background(), 1, ledger.CategoryMessage{Name: "groceries"})
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, "groceries", record.Name)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := service.CreateCategory(context.Background(), 1, ledger.CategoryMessage{Name: "groceries"})
		assert.ErrorIs(t, err, ledger.ErrCategoryExists)
	})

	t.Run("same name for another account is fine", func(t *testing.T) {
		_, err := service.CreateCategory(context.Background(), 2, ledger.CategoryMessage{Name: "groceries"})
		assert.NoError(t, err)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := service.CreateCategory(context.Background(), 1, ledger.CategoryMessage{})
		assert.Error(t, err)
	})
}

func TestCreateTransaction(t *testing.T) {
	store := newMemStore()
	service := ledger.NewService(store)

	category, err := service.CreateCategory(context.Background(), 1, ledger.CategoryMessage{Name: "groceries"})
	require.NoError(t, err)

	t.Run("valid transaction", func(t *testing.T) {
		record, err := service.CreateTransaction(context.Background(), 1, ledger.TransactionMessage{
			Description: "weekly shop",
			Amount:      82.50,
			Kind:        ledger.KindExpense,
			CategoryID:  &category.ID,
		})
		require.NoError(t, err)

		assert.NotZero(t, record.ID)
		assert.False(t, record.Date.IsZero(), "date defaults to now when omitted")
	})

	t.Run("explicit date is kept", func(t *testing.T) {
		date := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

		record, err := service.CreateTransaction(context.Background(), 1, ledger.TransactionMessage{
			Description: "salary",
			Amount:      5000,
			Kind:        ledger.KindIncome,
			Date:        &date,
		})
		require.NoError(t, err)
		assert.Equal(t, date, record.Date)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, err := service.CreateTransaction(context.Background(), 1, ledger.TransactionMessage{
			Description: "weekly shop",
			Amount:      82.50,
			Kind:        "transfer",
		})
		assert.Error(t, err)
	})

	t.Run("category of another account rejected", func(t *testing.T) {
		_, err := service.CreateTransaction(context.Background(), 2, ledger.TransactionMessage{
			Description: "weekly shop",
			Amount:      82.50,
			Kind:        ledger.KindExpense,
			CategoryID:  &category.ID,
		})
		assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
	})
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	store := newMemStore()
	service := ledger.NewService(store)

	record, err := service.CreateTransaction(context.Background(), 1, ledger.TransactionMessage{
		Description: "weekly shop",
		Amount:      82.50,
		Kind:        ledger.KindExpense,
	})
	require.NoError(t, err)

	t.Run("update", func(t *testing.T) {
		updated, err := service.UpdateTransaction(context.Background(), 1, record.ID, ledger.TransactionMessage{
			Description: "weekly shop, corrected",
			Amount:      91.00,
			Kind:        ledger.KindExpense,
		})
		require.NoError(t, err)
		assert.Equal(t, 91.00, updated.Amount)
	})

	t.Run("update someone else's row", func(t *testing.T) {
		_, err := service.UpdateTransaction(context.Background(), 2, record.ID, ledger.TransactionMessage{
			Description: "hijack",
			Amount:      1,
			Kind:        ledger.KindExpense,
		})
		assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, service.DeleteTransaction(context.Background(), 1, record.ID))

		err := service.DeleteTransaction(context.Background(), 1, record.ID)
		assert.ErrorIs(t, err, ledger.ErrRecordNotFound)
	})
}

func TestSummaryAndBreakdown(t *testing.T) {
	store := newMemStore()
	service := ledger.NewService(store)

	category, err := service.CreateCategory(context.Background(), 1, ledger.CategoryMessage{Name: "groceries"})
	require.NoError(t, err)

	seed := []ledger.TransactionMessage{
		{Description: "salary", Amount: 5000, Kind: ledger.KindIncome},
		{Description: "weekly shop", Amount: 82.50, Kind: ledger.KindExpense, CategoryID: &category.ID},
		{Description: "rent", Amount: 1500, Kind: ledger.KindExpense},
	}

	for _, msg := range seed {
		_, err := service.CreateTransaction(context.Background(), 1, msg)
		require.NoError(t, err)
	}

	summary, err := service.Summary(context.Background(), 1, ledger.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 5000.0, summary.Income)
	assert.Equal(t, 1582.50, summary.Expense)
	assert.Equal(t, 3417.50, summary.Net)

	t.Run("filter by kind", func(t *testing.T) {
		summary, err := service.Summary(context.Background(), 1, ledger.Filter{Kind: ledger.KindExpense})
		require.NoError(t, err)
		assert.Zero(t, summary.Income)
		assert.Equal(t, 1582.50, summary.Expense)
	})

	t.Run("breakdown groups by category", func(t *testing.T) {
		rows, err := service.CategoryBreakdown(context.Background(), 1, ledger.Filter{Kind: ledger.KindExpense})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		totals := map[string]float64{}
		for _, row := range rows {
			totals[row.Category] = row.Total
		}

		assert.Equal(t, 82.50, totals["groceries"])
		assert.Equal(t, 1500.0, totals["uncategorized"])
	})

	t.Run("other accounts see nothing", func(t *testing.T) {
		summary, err := service.Summary(context.Background(), 2, ledger.Filter{})
		require.NoError(t, err)
		assert.Zero(t, summary.Income)
		assert.Zero(t, summary.Expense)
	})
}
