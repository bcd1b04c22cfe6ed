package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/shopspring/decimal"
)

var errAlreadyChained = errors.New("expense already has a create entry")

// LedgerService records expenses and keeps the audit chain in step with them.
type LedgerService struct {
	BaseService
	repo                portsrepo.LedgerRepository
	chain               *HashChainLog
	converter           portssvc.ConverterSvc
	validate            *validator.Validate
	normalizeCategories bool
	now                 func() time.Time
	newID               func() string
}

// LedgerServiceOption configures a LedgerService.
type LedgerServiceOption func(*LedgerService)

// WithCategoryNormalization maps free-text categories onto the known set
// before they are stored or queried.
func WithCategoryNormalization(enabled bool) LedgerServiceOption {
	return func(s *LedgerService) {
		s.normalizeCategories = enabled
	}
}

// WithLedgerClock replaces time.Now for CreatedAt stamps.
func WithLedgerClock(now func() time.Time) LedgerServiceOption {
	return func(s *LedgerService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExpenseIDs replaces the expense id generator.
func WithExpenseIDs(newID func() string) LedgerServiceOption {
	return func(s *LedgerService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	repo portsrepo.LedgerRepository,
	chain *HashChainLog,
	converter portssvc.ConverterSvc,
	opts ...LedgerServiceOption,
) *LedgerService {
	s := &LedgerService{
		repo:      repo,
		chain:     chain,
		converter: converter,
		validate:  newValidator(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordExpense validates req, persists the expense and appends its CREATE entry.
func (s *LedgerService) RecordExpense(ctx context.Context, req dto.RecordExpenseRequest, requestID string) (*domain.Expense, error) {
	expense, err := s.buildExpense(req)
	if err != nil {
		s.LogWarn(ctx, "Rejected expense", slog.String("error", err.Error()))
		return nil, err
	}
	requestID = strings.TrimSpace(requestID)

	_, err = s.chain.Record(ctx, func(ctx context.Context, repo portsrepo.LedgerRepository) (domain.TransactionAction, domain.Expense, error) {
		if requestID != "" {
			first, err := repo.Expenses().MarkProcessed(ctx, requestID)
			if err != nil {
				return "", domain.Expense{}, fmt.Errorf("failed to mark request %s: %w", requestID, err)
			}
			if !first {
				return "", domain.Expense{}, &apperrors.DuplicateRequestError{RequestID: requestID}
			}
		}
		if err := repo.Expenses().Insert(ctx, expense); err != nil {
			return "", domain.Expense{}, fmt.Errorf("failed to insert expense: %w", err)
		}
		return domain.ActionCreate, expense, nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateRequest) {
			s.LogInfo(ctx, "Duplicate expense request ignored", slog.String("request_id", requestID))
		} else {
			s.LogError(ctx, err, "Failed to record expense", slog.String("expense_id", expense.ExpenseID))
		}
		return nil, err
	}

	s.LogInfo(ctx, "Expense recorded",
		slog.String("expense_id", expense.ExpenseID),
		slog.String("category", expense.Category),
		slog.String("currency", expense.CurrencyCode))
	return &expense, nil
}

func (s *LedgerService) buildExpense(req dto.RecordExpenseRequest) (domain.Expense, error) {
	req.Category = strings.TrimSpace(req.Category)
	req.Description = strings.TrimSpace(req.Description)
	req.CurrencyCode = strings.ToUpper(strings.TrimSpace(req.CurrencyCode))

	if err := s.validate.Struct(req); err != nil {
		return domain.Expense{}, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}
	if !req.Amount.IsPositive() {
		return domain.Expense{}, fmt.Errorf("%w: amount must be greater than zero", apperrors.ErrValidation)
	}
	date, err := domain.NormalizeDisplayDate(req.Date)
	if err != nil {
		return domain.Expense{}, fmt.Errorf("%w: %s", apperrors.ErrValidation, err.Error())
	}

	category := req.Category
	if s.normalizeCategories {
		category = domain.NormalizeCategory(category)
	}

	return domain.Expense{
		ExpenseID:    s.newID(),
		Category:     category,
		CurrencyCode: req.CurrencyCode,
		Amount:       req.Amount,
		Description:  req.Description,
		Date:         date,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}, nil
}

// ListAll returns every expense, newest date first.
func (s *LedgerService) ListAll(ctx context.Context) ([]domain.Expense, error) {
	expenses, err := s.repo.Expenses().FindAll(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list expenses")
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

// ListByCategory returns the expenses filed under category.
func (s *LedgerService) ListByCategory(ctx context.Context, category string) ([]domain.Expense, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apperrors.NewValidationError("category is required")
	}
	if s.normalizeCategories {
		category = domain.NormalizeCategory(category)
	}
	expenses, err := s.repo.Expenses().FindByCategory(ctx, category)
	if err != nil {
		s.LogError(ctx, err, "Failed to list expenses by category", slog.String("category", category))
		return nil, fmt.Errorf("failed to list expenses for category %s: %w", category, err)
	}
	return expenses, nil
}

// ListByDateRange returns the expenses dated within [from, to].
func (s *LedgerService) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperrors.NewValidationError("both from and to dates are required")
	}
	if from.After(to) {
		return nil, apperrors.NewValidationError("from date must not be after to date")
	}
	expenses, err := s.repo.Expenses().FindByDateRange(ctx, from, to)
	if err != nil {
		s.LogError(ctx, err, "Failed to list expenses by date range")
		return nil, fmt.Errorf("failed to list expenses by date range: %w", err)
	}
	return expenses, nil
}

// Count returns the number of recorded expenses.
func (s *LedgerService) Count(ctx context.Context) (int, error) {
	expenses, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(expenses), nil
}

// CategoryBreakdownByCurrencyUnconverted sums raw amounts per category and currency.
// Categories and currencies are sorted by name.
func (s *LedgerService) CategoryBreakdownByCurrencyUnconverted(ctx context.Context) ([]domain.CategoryCurrencyBreakdown, error) {
	expenses, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]map[string]decimal.Decimal)
	for _, e := range expenses {
		byCurrency, ok := sums[e.Category]
		if !ok {
			byCurrency = make(map[string]decimal.Decimal)
			sums[e.Category] = byCurrency
		}
		byCurrency[e.CurrencyCode] = byCurrency[e.CurrencyCode].Add(e.Amount)
	}

	out := make([]domain.CategoryCurrencyBreakdown, 0, len(sums))
	for _, category := range sortedKeys(sums) {
		byCurrency := sums[category]
		row := domain.CategoryCurrencyBreakdown{Category: category}
		for _, code := range sortedKeys(byCurrency) {
			row.Totals = append(row.Totals, domain.CurrencyTotal{CurrencyCode: code, Total: byCurrency[code]})
		}
		out = append(out, row)
	}
	return out, nil
}

// CategoryBreakdownConverted converts each expense into currency before
// summing per category. Totals are left unrounded for the caller to present.
func (s *LedgerService) CategoryBreakdownConverted(ctx context.Context, currency string) ([]domain.CategoryTotal, error) {
	target, err := normalizeCurrency(s.validate, currency)
	if err != nil {
		return nil, err
	}
	expenses, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		converted, err := s.converter.Convert(ctx, e.Amount, e.CurrencyCode, target)
		if err != nil {
			s.LogError(ctx, err, "Failed to convert expense for breakdown",
				slog.String("expense_id", e.ExpenseID),
				slog.String("from", e.CurrencyCode),
				slog.String("to", target))
			return nil, err
		}
		sums[e.Category] = sums[e.Category].Add(converted)
	}

	out := make([]domain.CategoryTotal, 0, len(sums))
	for _, category := range sortedKeys(sums) {
		out = append(out, domain.CategoryTotal{Category: category, CurrencyCode: target, Total: sums[category]})
	}
	return out, nil
}

// Transactions returns the audit chain in append order.
func (s *LedgerService) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	entries, err := s.chain.FindAll(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to load transactions")
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return entries, nil
}

// VerifyChain checks the integrity of the audit chain.
func (s *LedgerService) VerifyChain(ctx context.Context) (domain.VerifyResult, error) {
	result, err := s.chain.Verify(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrChainIntegrity) {
			s.LogWarn(ctx, "Chain verification failed",
				slog.Int("first_bad_index", result.FirstBadIndex),
				slog.String("reason", result.Reason))
		} else {
			s.LogError(ctx, err, "Failed to verify chain")
		}
		return result, err
	}
	s.LogDebug(ctx, "Chain verified", slog.Int("length", result.Length))
	return result, nil
}

// Reconcile appends a CREATE entry for every expense that has none, oldest
// first, and returns the repaired expense ids. It only matters for stores
// whose writes are not atomic.
func (s *LedgerService) Reconcile(ctx context.Context) ([]string, error) {
	expenses, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}

	chained := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Action == domain.ActionCreate {
			chained[entry.ExpenseID] = struct{}{}
		}
	}

	var missing []domain.Expense
	for _, e := range expenses {
		if _, ok := chained[e.ExpenseID]; !ok {
			missing = append(missing, e)
		}
	}
	sort.SliceStable(missing, func(i, j int) bool {
		return missing[i].CreatedAt.Before(missing[j].CreatedAt)
	})

	repaired := make([]string, 0, len(missing))
	for _, e := range missing {
		expense := e
		_, err := s.chain.Record(ctx, func(ctx context.Context, repo portsrepo.LedgerRepository) (domain.TransactionAction, domain.Expense, error) {
			// Another reconcile may have run since the listing above.
			current, err := repo.Transactions().FindAll(ctx)
			if err != nil {
				return "", domain.Expense{}, err
			}
			for _, entry := range current {
				if entry.Action == domain.ActionCreate && entry.ExpenseID == expense.ExpenseID {
					return "", domain.Expense{}, errAlreadyChained
				}
			}
			return domain.ActionCreate, expense, nil
		})
		if errors.Is(err, errAlreadyChained) {
			continue
		}
		if err != nil {
			s.LogError(ctx, err, "Failed to reconcile expense", slog.String("expense_id", expense.ExpenseID))
			return repaired, fmt.Errorf("failed to reconcile expense %s: %w", expense.ExpenseID, err)
		}
		repaired = append(repaired, expense.ExpenseID)
	}

	if len(repaired) > 0 {
		s.LogWarn(ctx, "Reconciled expenses missing chain entries", slog.Int("count", len(repaired)))
	}
	return repaired, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
