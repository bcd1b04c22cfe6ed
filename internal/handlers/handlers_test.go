package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/hivefi/ledger/internal/handlers"
	"github.com/hivefi/ledger/internal/platform/config"
	"github.com/hivefi/ledger/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) RecordExpense(ctx context.Context, req dto.RecordExpenseRequest, requestID string) (*domain.Expense, error) {
	args := m.Called(ctx, req, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Expense), args.Error(1)
}
func (m *MockLedgerService) ListAll(ctx context.Context) ([]domain.Expense, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Expense), args.Error(1)
}
func (m *MockLedgerService) ListByCategory(ctx context.Context, category string) ([]domain.Expense, error) {
	args := m.Called(ctx, category)
	return args.Get(0).([]domain.Expense), args.Error(1)
}
func (m *MockLedgerService) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]domain.Expense), args.Error(1)
}
func (m *MockLedgerService) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *MockLedgerService) CategoryBreakdownByCurrencyUnconverted(ctx context.Context) ([]domain.CategoryCurrencyBreakdown, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.CategoryCurrencyBreakdown), args.Error(1)
}
func (m *MockLedgerService) CategoryBreakdownConverted(ctx context.Context, currency string) ([]domain.CategoryTotal, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).([]domain.CategoryTotal), args.Error(1)
}
func (m *MockLedgerService) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}
func (m *MockLedgerService) VerifyChain(ctx context.Context) (domain.VerifyResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.VerifyResult), args.Error(1)
}
func (m *MockLedgerService) Reconcile(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Mock ExchangeRateService ---
type MockExchangeRateService struct {
	mock.Mock
}

func (m *MockExchangeRateService) GetRate(ctx context.Context, fromCode, toCode string) (decimal.Decimal, error) {
	args := m.Called(ctx, fromCode, toCode)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
func (m *MockExchangeRateService) Convert(ctx context.Context, amount decimal.Decimal, fromCode, toCode string) (decimal.Decimal, error) {
	args := m.Called(ctx, amount, fromCode, toCode)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
func (m *MockExchangeRateService) InvalidateRates(ctx context.Context) {
	m.Called(ctx)
}

const (
	testJWTSecret = "test-secret"
	testIssuer    = "hivefi-ledger"
)

// --- Test Suite Setup ---
type HandlersTestSuite struct {
	suite.Suite
	router  *gin.Engine
	ledger  *MockLedgerService
	rates   *MockExchangeRateService
	token   string
	baseURL string
}

func (suite *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.ledger = new(MockLedgerService)
	suite.rates = new(MockExchangeRateService)
	suite.router = newRouter(suite.T(), suite.ledger, suite.rates, "1000-M")
	suite.token = signToken(suite.T(), testJWTSecret, testIssuer)
	suite.baseURL = "/api/v1"
}

func (suite *HandlersTestSuite) TearDownTest() {
	suite.ledger.AssertExpectations(suite.T())
	suite.rates.AssertExpectations(suite.T())
}

func newRouter(t *testing.T, ledger portssvc.LedgerSvcFacade, rates portssvc.ExchangeRateSvcFacade, rateLimit string) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		IsProduction: true,
		JWTSecret:    testJWTSecret,
		JWTIssuer:    testIssuer,
		RateLimit:    rateLimit,
	}
	router := gin.New()
	container := &portssvc.ServiceContainer{Ledger: ledger, ExchangeRate: rates}
	if err := handlers.RegisterRoutes(router, cfg, container, memory.NewStore()); err != nil {
		t.Fatalf("register routes: %v", err)
	}
	return router
}

func signToken(t *testing.T, secret, issuer string) string {
	t.Helper()
	token, err := utils.GenerateJWT("tester", secret, time.Hour, issuer)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (suite *HandlersTestSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, suite.baseURL+path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+suite.token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func sampleExpense() *domain.Expense {
	return &domain.Expense{
		ExpenseID:    "exp-1",
		Category:     "Food",
		CurrencyCode: "USD",
		Amount:       decimal.RequireFromString("12.50"),
		Description:  "Lunch",
		Date:         "01/09/2025",
		CreatedAt:    time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func amountIs(want string) interface{} {
	return mock.MatchedBy(func(req dto.RecordExpenseRequest) bool {
		return req.Amount.Equal(decimal.RequireFromString(want))
	})
}

// --- Tests ---

func (suite *HandlersTestSuite) TestHealth() {
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("OK", w.Body.String())
}

func (suite *HandlersTestSuite) TestAuth_MissingHeader() {
	req, _ := http.NewRequest(http.MethodGet, suite.baseURL+"/expenses/count", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestAuth_WrongSecretAndIssuer() {
	for _, token := range []string{
		signToken(suite.T(), "other-secret", testIssuer),
		signToken(suite.T(), testJWTSecret, "someone-else"),
	} {
		suite.token = token
		w := suite.do(http.MethodGet, "/expenses/count", "", nil)
		suite.Equal(http.StatusUnauthorized, w.Code)
	}
}

func (suite *HandlersTestSuite) TestAuth_ExpiredToken() {
	claims := jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	suite.Require().NoError(err)
	suite.token = signed

	w := suite.do(http.MethodGet, "/expenses/count", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Contains(w.Body.String(), "expired")
}

func (suite *HandlersTestSuite) TestRecordExpense_Success() {
	body := `{"category":"Food","currencyCode":"USD","amount":"12.50","description":"Lunch","date":"1/9/2025"}`
	suite.ledger.On("RecordExpense", mock.Anything, amountIs("12.50"), "req-1").Return(sampleExpense(), nil).Once()

	w := suite.do(http.MethodPost, "/expenses", body, map[string]string{handlers.IdempotencyKeyHeader: "req-1"})

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.ExpenseResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("exp-1", resp.ExpenseID)
	suite.Equal("01/09/2025", resp.Date)
	suite.True(decimal.RequireFromString("12.5").Equal(resp.Amount))
}

func (suite *HandlersTestSuite) TestRecordExpense_NoIdempotencyKey() {
	body := `{"category":"Food","currencyCode":"USD","amount":3,"date":"01/09/2025"}`
	suite.ledger.On("RecordExpense", mock.Anything, amountIs("3"), "").Return(sampleExpense(), nil).Once()

	w := suite.do(http.MethodPost, "/expenses", body, nil)
	suite.Equal(http.StatusCreated, w.Code)
}

func (suite *HandlersTestSuite) TestRecordExpense_Duplicate() {
	body := `{"category":"Food","currencyCode":"USD","amount":"1","date":"01/09/2025"}`
	suite.ledger.On("RecordExpense", mock.Anything, mock.Anything, "req-1").
		Return(nil, &apperrors.DuplicateRequestError{RequestID: "req-1"}).Once()

	w := suite.do(http.MethodPost, "/expenses", body, map[string]string{handlers.IdempotencyKeyHeader: "req-1"})
	suite.Equal(http.StatusConflict, w.Code)
	suite.Contains(w.Body.String(), "req-1")
}

func (suite *HandlersTestSuite) TestRecordExpense_ServiceValidation() {
	body := `{"category":"Food","currencyCode":"USD","amount":"-1","date":"01/09/2025"}`
	suite.ledger.On("RecordExpense", mock.Anything, mock.Anything, "").
		Return(nil, apperrors.NewValidationError("amount must be positive")).Once()

	w := suite.do(http.MethodPost, "/expenses", body, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(w.Body.String(), "amount must be positive")
}

func (suite *HandlersTestSuite) TestRecordExpense_BindingErrors() {
	tests := map[string]string{
		"malformed json":   `{"category":`,
		"missing category": `{"currencyCode":"USD","amount":"1","date":"01/09/2025"}`,
		"bad currency":     `{"category":"Food","currencyCode":"US","amount":"1","date":"01/09/2025"}`,
		"missing date":     `{"category":"Food","currencyCode":"USD","amount":"1"}`,
	}
	for name, body := range tests {
		w := suite.do(http.MethodPost, "/expenses", body, nil)
		suite.Equal(http.StatusBadRequest, w.Code, name)
	}
	suite.ledger.AssertNotCalled(suite.T(), "RecordExpense", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *HandlersTestSuite) TestRecordExpense_InternalError() {
	body := `{"category":"Food","currencyCode":"USD","amount":"1","date":"01/09/2025"}`
	suite.ledger.On("RecordExpense", mock.Anything, mock.Anything, "").Return(nil, errors.New("disk full")).Once()

	w := suite.do(http.MethodPost, "/expenses", body, nil)
	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.NotContains(w.Body.String(), "disk full")
}

func (suite *HandlersTestSuite) TestListExpenses_Filters() {
	all := []domain.Expense{*sampleExpense()}
	suite.ledger.On("ListAll", mock.Anything).Return(all, nil).Once()
	suite.ledger.On("ListByCategory", mock.Anything, "Food").Return(all, nil).Once()
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	suite.ledger.On("ListByDateRange", mock.Anything, from, to).Return([]domain.Expense{}, nil).Once()

	w := suite.do(http.MethodGet, "/expenses", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ListExpensesResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(1, resp.Count)

	w = suite.do(http.MethodGet, "/expenses?category=Food", "", nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodGet, "/expenses?from=01/09/2025&to=30/09/2025", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(0, resp.Count)
}

func (suite *HandlersTestSuite) TestListExpenses_BadFilters() {
	for _, query := range []string{
		"?category=Food&from=01/09/2025&to=30/09/2025",
		"?from=01/09/2025",
		"?from=2025-09-01&to=30/09/2025",
	} {
		w := suite.do(http.MethodGet, "/expenses"+query, "", nil)
		suite.Equal(http.StatusBadRequest, w.Code, query)
	}

	suite.ledger.On("ListByDateRange", mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.Expense(nil), apperrors.NewValidationError("from must not be after to")).Once()
	w := suite.do(http.MethodGet, "/expenses?from=30/09/2025&to=01/09/2025", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestCountExpenses() {
	suite.ledger.On("Count", mock.Anything).Return(7, nil).Once()

	w := suite.do(http.MethodGet, "/expenses/count", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"count":7}`, w.Body.String())
}

func chainOf(n int) []domain.Transaction {
	out := make([]domain.Transaction, n)
	for i := range out {
		out[i] = domain.Transaction{Sequence: int64(i + 1), Action: domain.ActionCreate}
	}
	return out
}

func (suite *HandlersTestSuite) TestListTransactions_Paging() {
	suite.ledger.On("Transactions", mock.Anything).Return(chainOf(5), nil).Times(3)

	var resp dto.ListTransactionsResponse
	w := suite.do(http.MethodGet, "/ledger/transactions?limit=2", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp.Transactions, 2)
	suite.Require().NotNil(resp.NextToken)
	suite.Equal(int64(1), resp.Transactions[0].Sequence)

	w = suite.do(http.MethodGet, "/ledger/transactions?limit=2&nextToken="+*resp.NextToken, "", nil)
	resp = dto.ListTransactionsResponse{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp.Transactions, 2)
	suite.Equal(int64(3), resp.Transactions[0].Sequence)

	w = suite.do(http.MethodGet, "/ledger/transactions?limit=2&nextToken="+*resp.NextToken, "", nil)
	resp = dto.ListTransactionsResponse{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp.Transactions, 1)
	suite.Nil(resp.NextToken)
}

func (suite *HandlersTestSuite) TestListTransactions_BadParams() {
	w := suite.do(http.MethodGet, "/ledger/transactions?nextToken=garbage!", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/ledger/transactions?limit=501", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestVerifyChain() {
	suite.ledger.On("VerifyChain", mock.Anything).
		Return(domain.VerifyResult{Valid: true, Length: 3, FirstBadIndex: -1, HeadHash: "abc"}, nil).Once()

	w := suite.do(http.MethodGet, "/ledger/verify", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"valid":true,"length":3,"headHash":"abc"}`, w.Body.String())
}

func (suite *HandlersTestSuite) TestVerifyChain_Broken() {
	result := domain.VerifyResult{Valid: false, Length: 3, FirstBadIndex: 1, Reason: "hash mismatch"}
	suite.ledger.On("VerifyChain", mock.Anything).
		Return(result, &apperrors.ChainIntegrityError{Index: 1, Reason: "hash mismatch"}).Once()

	w := suite.do(http.MethodGet, "/ledger/verify", "", nil)
	suite.Equal(http.StatusConflict, w.Code)
	var resp dto.VerifyChainResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.False(resp.Valid)
	suite.Require().NotNil(resp.FirstBadIndex)
	suite.Equal(1, *resp.FirstBadIndex)
}

func (suite *HandlersTestSuite) TestReconcile() {
	suite.ledger.On("Reconcile", mock.Anything).Return(nil, nil).Once()

	w := suite.do(http.MethodPost, "/ledger/reconcile", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"repaired":[]}`, w.Body.String())
}

func (suite *HandlersTestSuite) TestCategoryBreakdown() {
	rows := []domain.CategoryCurrencyBreakdown{{
		Category: "Food",
		Totals: []domain.CurrencyTotal{
			{CurrencyCode: "EUR", Total: decimal.RequireFromString("5")},
			{CurrencyCode: "USD", Total: decimal.RequireFromString("12.5")},
		},
	}}
	suite.ledger.On("CategoryBreakdownByCurrencyUnconverted", mock.Anything).Return(rows, nil).Once()

	w := suite.do(http.MethodGet, "/reports/category-breakdown", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	var resp []dto.CategoryCurrencyBreakdownResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Require().Len(resp, 1)
	suite.Require().Len(resp[0].Totals, 2)
	suite.Equal("$12.50", resp[0].Totals[1].Display)
}

func (suite *HandlersTestSuite) TestConvertedBreakdown() {
	rows := []domain.CategoryTotal{
		{Category: "Food", CurrencyCode: "USD", Total: decimal.RequireFromString("10.125")},
		{Category: "Rent", CurrencyCode: "USD", Total: decimal.RequireFromString("0.004")},
	}
	suite.ledger.On("CategoryBreakdownConverted", mock.Anything, "USD").Return(rows, nil).Once()

	w := suite.do(http.MethodGet, "/reports/category-breakdown/converted?currency=usd", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ConvertedBreakdownResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("10.13", resp.Categories[0].Total.String())
	suite.Equal("0", resp.Categories[1].Total.String())
	// 10.129 rounds to 10.13
	suite.Equal("10.13", resp.GrandTotal.String())
}

func (suite *HandlersTestSuite) TestConvertedBreakdown_Errors() {
	w := suite.do(http.MethodGet, "/reports/category-breakdown/converted", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.ledger.On("CategoryBreakdownConverted", mock.Anything, "JPY").
		Return([]domain.CategoryTotal(nil), &apperrors.RateFetchError{From: "USD", To: "JPY", Err: errors.New("timeout")}).Once()
	w = suite.do(http.MethodGet, "/reports/category-breakdown/converted?currency=JPY", "", nil)
	suite.Equal(http.StatusBadGateway, w.Code)
}

func (suite *HandlersTestSuite) TestGetExchangeRate() {
	suite.rates.On("GetRate", mock.Anything, "EUR", "USD").Return(decimal.RequireFromString("1.1"), nil).Once()

	w := suite.do(http.MethodGet, "/exchange-rates/eur/usd", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ExchangeRateResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("EUR", resp.FromCurrencyCode)
	suite.Equal("1.1", resp.Rate.String())
}

func (suite *HandlersTestSuite) TestGetExchangeRate_Errors() {
	w := suite.do(http.MethodGet, "/exchange-rates/EURO/USD", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.rates.On("GetRate", mock.Anything, "USD", "XYZ").
		Return(decimal.Decimal{}, apperrors.NewRateParseError("USD", "XYZ", []byte("<html/>"))).Once()
	w = suite.do(http.MethodGet, "/exchange-rates/USD/XYZ", "", nil)
	suite.Equal(http.StatusBadGateway, w.Code)
}

func (suite *HandlersTestSuite) TestRefreshRates() {
	suite.rates.On("InvalidateRates", mock.Anything).Once()

	w := suite.do(http.MethodPost, "/exchange-rates/refresh", "", nil)
	suite.Equal(http.StatusNoContent, w.Code)
	suite.rates.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) TestConvert() {
	suite.rates.On("Convert", mock.Anything, mock.MatchedBy(func(a decimal.Decimal) bool {
		return a.Equal(decimal.NewFromInt(100))
	}), "EUR", "USD").Return(decimal.RequireFromString("110"), nil).Once()

	w := suite.do(http.MethodGet, "/convert?amount=100&from=eur&to=usd", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ConvertResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("110", resp.Converted.String())
	suite.Equal("$110.00", resp.Display)
}

func (suite *HandlersTestSuite) TestConvert_BadParams() {
	for _, query := range []string{"?from=EUR&to=USD", "?amount=abc&from=EUR&to=USD", "?amount=1&from=E&to=USD"} {
		w := suite.do(http.MethodGet, "/convert"+query, "", nil)
		suite.Equal(http.StatusBadRequest, w.Code, query)
	}
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := new(MockLedgerService)
	ledger.On("Count", mock.Anything).Return(1, nil)
	router := newRouter(t, ledger, new(MockExchangeRateService), "2-M")
	token := signToken(t, testJWTSecret, testIssuer)

	codes := make([]int, 3)
	for i := range codes {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/expenses/count", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestRegisterRoutes_InvalidRateLimit(t *testing.T) {
	cfg := &config.Config{IsProduction: true, JWTSecret: testJWTSecret, RateLimit: "lots"}
	err := handlers.RegisterRoutes(gin.New(), cfg, &portssvc.ServiceContainer{}, memory.NewStore())
	if err == nil {
		t.Fatal("expected an error for an unparsable rate")
	}
}
