package ledger

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// CategoryMessage is the request payload for creating a category.
type CategoryMessage struct {
	Name string `json:"name"`
}

// Validate will validate the payload
func (m CategoryMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 100)),
	)
}

// TransactionMessage is the request payload for creating or updating a
// transaction. Date defaults to today when omitted.
type TransactionMessage struct {
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	Kind        string     `json:"transaction_type"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

// Validate will validate the payload
func (m TransactionMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Description, validation.Required, validation.Length(1, 500)),
		validation.Field(&m.Amount, validation.Required),
		validation.Field(&m.Kind, validation.Required, validation.In(KindIncome, KindExpense)),
	)
}

// Service scopes every ledger operation to the acting account.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

func (s *Service) CreateCategory(ctx context.Context, accountID int64, msg CategoryMessage) (*Category, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid category payload").
			WithCode(errors.CodeBadRequest)
	}

	return s.store.CreateCategory(ctx, &Category{
		AccountID: accountID,
		Name:      msg.Name,
	})
}

func (s *Service) ListCategories(ctx context.Context, accountID int64) ([]*Category, error) {
	return s.store.ListCategories(ctx, accountID)
}

func (s *Service) CreateTransaction(ctx context.Context, accountID int64, msg TransactionMessage) (*Transaction, error) {
	record, err := s.buildTransaction(ctx, accountID, msg)
	if err != nil {
		return nil, err
	}

	return s.store.CreateTransaction(ctx, record)
}

func (s *Service) UpdateTransaction(ctx context.Context, accountID, id int64, msg TransactionMessage) (*Transaction, error) {
	if _, err := s.store.GetTransaction(ctx, accountID, id); err != nil {
		return nil, err
	}

	record, err := s.buildTransaction(ctx, accountID, msg)
	if err != nil {
		return nil, err
	}

	record.ID = id
	return s.store.UpdateTransaction(ctx, record)
}

func (s *Service) DeleteTransaction(ctx context.Context, accountID, id int64) error {
	return s.store.DeleteTransaction(ctx, accountID, id)
}

func (s *Service) ListTransactions(ctx context.Context, accountID int64, filter Filter) ([]*Transaction, error) {
	return s.store.ListTransactions(ctx, accountID, filter)
}

func (s *Service) Summary(ctx context.Context, accountID int64, filter Filter) (*Summary, error) {
	return s.store.Summary(ctx, accountID, filter)
}

func (s *Service) CategoryBreakdown(ctx context.Context, accountID int64, filter Filter) ([]*BreakdownRow, error) {
	return s.store.CategoryBreakdown(ctx, accountID, filter)
}

func (s *Service) buildTransaction(ctx context.Context, accountID int64, msg TransactionMessage) (*Transaction, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid transaction payload").
			WithCode(errors.CodeBadRequest)
	}

	// A referenced category must belong to the same account.
	if msg.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, accountID, *msg.CategoryID); err != nil {
			return nil, err
		}
	}

	date := s.now()
	if msg.Date != nil {
		date = *msg.Date
	}

	return &Transaction{
		AccountID:   accountID,
		CategoryID:  msg.CategoryID,
		Description: msg.Description,
		Amount:      msg.Amount,
		Kind:        msg.Kind,
		Date:        date,
	}, nil
}
