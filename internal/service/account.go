package service

import (
	"context"
	"fmt"
	"math"

	"github.com/ayo6706/axis-ledger/internal/domain"
	"github.com/ayo6706/axis-ledger/internal/models"
	"github.com/ayo6706/axis-ledger/internal/repository"
	"github.com/google/uuid"
)

// AccountService is the read side: balances and transaction history.
type AccountService struct {
	store QueryStore
}

func NewAccountService(store QueryStore) *AccountService {
	return &AccountService{store: store}
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	acc, err := s.store.Queries().GetAccount(ctx, accountID)
	if err != nil {
		return nil, storeError("account", err)
	}
	return &acc, nil
}

func (s *AccountService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// GetTransactionByID parses id and returns the matching transaction.
func (s *AccountService) GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.InvalidArgument("transaction id must be a UUID")
	}
	tx, err := s.store.Queries().GetTransaction(ctx, txID)
	if err != nil {
		return nil, storeError("transaction", err)
	}
	return &tx, nil
}

// normalizeFilter applies the paging defaults and rejects impossible filters.
func normalizeFilter(f models.TransactionFilter) (models.TransactionFilter, error) {
	if f.Kind != "" && !domain.IsValidKind(f.Kind) {
		return f, domain.InvalidArgument(fmt.Sprintf("unknown transaction type %q", f.Kind))
	}
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return f, domain.InvalidArgument("start date must not be after end date")
	}
	if f.Limit < 0 || f.Limit > domain.MaxPageSize {
		return f, domain.InvalidArgument(fmt.Sprintf("limit must be between 0 and %d", domain.MaxPageSize))
	}
	if f.Page <= 0 || f.Limit == 0 {
		f.Page = 1
	}
	return f, nil
}

// ListTransactions returns one page of the account's transactions, newest
// first. A zero limit returns every match.
func (s *AccountService) ListTransactions(ctx context.Context, accountID string, filter models.TransactionFilter) (*models.TransactionPage, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	queries := s.store.Queries()
	if _, err := queries.GetAccount(ctx, accountID); err != nil {
		return nil, storeError("account", err)
	}

	total, err := queries.CountAccountTransactions(ctx, repository.CountAccountTransactionsParams{
		AccountID: accountID,
		Kind:      filter.Kind,
		Start:     filter.Start,
		End:       filter.End,
	})
	if err != nil {
		return nil, storeError("transaction", fmt.Errorf("count transactions: %w", err))
	}

	items, err := queries.ListAccountTransactions(ctx, repository.ListAccountTransactionsParams{
		AccountID: accountID,
		Kind:      filter.Kind,
		Start:     filter.Start,
		End:       filter.End,
		Limit:     int32(filter.Limit),
		Offset:    pageOffset(filter.Page, filter.Limit),
	})
	if err != nil {
		return nil, storeError("transaction", fmt.Errorf("list transactions: %w", err))
	}
	if items == nil {
		items = []models.Transaction{}
	}

	return &models.TransactionPage{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, filter.Limit),
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// totalPages counts pages of size limit; an unbounded listing is one page.
func totalPages(total int64, limit int) int64 {
	if total == 0 {
		return 0
	}
	if limit <= 0 {
		return 1
	}
	return (total + int64(limit) - 1) / int64(limit)
}

// pageOffset clamps to MaxInt32 before multiplying so huge pages cannot wrap.
func pageOffset(page, limit int) int32 {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt32/limit {
		return math.MaxInt32
	}
	return int32((page - 1) * limit)
}
