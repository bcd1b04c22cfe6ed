package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hivefi/ledger/internal/core/domain"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/hivefi/ledger/internal/middleware"
)

// IdempotencyKeyHeader carries the client-chosen request id of a write.
const IdempotencyKeyHeader = "Idempotency-Key"

// expenseHandler handles HTTP requests related to expenses.
type expenseHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

// newExpenseHandler creates a new expenseHandler.
func newExpenseHandler(ls portssvc.LedgerSvcFacade) *expenseHandler {
	return &expenseHandler{
		ledgerService: ls,
	}
}

// registerExpenseRoutes registers routes related to expenses.
func registerExpenseRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newExpenseHandler(ledgerService)

	expenses := rg.Group("/expenses")
	{
		expenses.POST("", h.recordExpense)
		expenses.GET("", h.listExpenses)
		expenses.GET("/count", h.countExpenses)
	}
}

// recordExpense godoc
// @Summary Record an expense
// @Description Validates and stores an expense and appends a CREATE entry to the audit chain.
// @Description Sending the same Idempotency-Key twice answers 409 for the repeat.
// @Tags expenses
// @Accept  json
// @Produce  json
// @Param   Idempotency-Key header string false "Client request id"
// @Param   expense body dto.RecordExpenseRequest true "Expense details"
// @Success 201 {object} dto.ExpenseResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Request id already processed"
// @Failure 500 {object} map[string]string "Failed to record expense"
// @Security BearerAuth
// @Router /expenses [post]
func (h *expenseHandler) recordExpense(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RecordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RecordExpense", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	requestID := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if requestID != "" {
		logger = logger.With(slog.String("idempotency_key", requestID))
	}

	expense, err := h.ledgerService.RecordExpense(c.Request.Context(), req, requestID)
	if err != nil {
		respondWithError(c, logger, err, "Failed to record expense")
		return
	}

	logger.Info("Expense recorded", slog.String("expense_id", expense.ExpenseID))
	c.JSON(http.StatusCreated, dto.ToExpenseResponse(expense))
}

// listExpenses godoc
// @Summary List expenses
// @Description Lists expenses, newest date first. Filter either by category or by an inclusive from/to date range.
// @Tags expenses
// @Produce  json
// @Param   category query string false "Category"
// @Param   from query string false "Range start (dd/MM/yyyy)"
// @Param   to query string false "Range end (dd/MM/yyyy)"
// @Success 200 {object} dto.ListExpensesResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list expenses"
// @Security BearerAuth
// @Router /expenses [get]
func (h *expenseHandler) listExpenses(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListExpensesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	hasRange := params.From != "" || params.To != ""
	if hasRange && params.Category != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Filter by category or by date range, not both"})
		return
	}

	var (
		expenses []domain.Expense
		err      error
	)
	switch {
	case params.Category != "":
		expenses, err = h.ledgerService.ListByCategory(c.Request.Context(), params.Category)
	case hasRange:
		if params.From == "" || params.To == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Both from and to are required for a date range"})
			return
		}
		from, perr := domain.ParseDisplayDate(params.From)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		to, perr := domain.ParseDisplayDate(params.To)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		expenses, err = h.ledgerService.ListByDateRange(c.Request.Context(), from, to)
	default:
		expenses, err = h.ledgerService.ListAll(c.Request.Context())
	}
	if err != nil {
		respondWithError(c, logger, err, "Failed to list expenses")
		return
	}

	c.JSON(http.StatusOK, dto.ToListExpensesResponse(expenses))
}

// countExpenses godoc
// @Summary Count expenses
// @Tags expenses
// @Produce  json
// @Success 200 {object} dto.CountResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to count expenses"
// @Security BearerAuth
// @Router /expenses/count [get]
func (h *expenseHandler) countExpenses(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	count, err := h.ledgerService.Count(c.Request.Context())
	if err != nil {
		respondWithError(c, logger, err, "Failed to count expenses")
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: count})
}
