package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hivefi/ledger/internal/apperrors"
	"github.com/hivefi/ledger/internal/core/domain"
	portssvc "github.com/hivefi/ledger/internal/core/ports/services"
	"github.com/hivefi/ledger/internal/dto"
	"github.com/hivefi/ledger/internal/middleware"
	"github.com/hivefi/ledger/internal/utils/pagination"
)

// ledgerHandler serves the audit chain.
type ledgerHandler struct {
	auditService portssvc.AuditSvc
}

func newLedgerHandler(as portssvc.AuditSvc) *ledgerHandler {
	return &ledgerHandler{auditService: as}
}

// registerLedgerRoutes registers routes related to the audit chain.
func registerLedgerRoutes(rg *gin.RouterGroup, auditService portssvc.AuditSvc) {
	h := newLedgerHandler(auditService)

	ledger := rg.Group("/ledger")
	{
		ledger.GET("/transactions", h.listTransactions)
		ledger.GET("/verify", h.verifyChain)
		ledger.POST("/reconcile", h.reconcile)
	}
}

// listTransactions godoc
// @Summary List audit log entries
// @Description Returns chain entries in append order, paged by sequence.
// @Tags ledger
// @Produce  json
// @Param   limit query int false "Page size (1-500)"
// @Param   nextToken query string false "Cursor from a previous page"
// @Success 200 {object} dto.ListTransactionsResponse
// @Failure 400 {object} map[string]string "Invalid paging parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list transactions"
// @Security BearerAuth
// @Router /ledger/transactions [get]
func (h *ledgerHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}
	after, err := pagination.DecodeSequenceToken(params.NextToken)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.auditService.Transactions(c.Request.Context())
	if err != nil {
		respondWithError(c, logger, err, "Failed to list transactions")
		return
	}

	page, next := pagination.Page(entries, after, params.Limit, func(t domain.Transaction) int64 { return t.Sequence })
	c.JSON(http.StatusOK, dto.ListTransactionsResponse{Transactions: page, NextToken: next})
}

// verifyChain godoc
// @Summary Verify the audit chain
// @Description Recomputes every entry hash and checks every link. A broken chain answers 409 with the first bad index.
// @Tags ledger
// @Produce  json
// @Success 200 {object} dto.VerifyChainResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} dto.VerifyChainResponse "Chain integrity violated"
// @Failure 500 {object} map[string]string "Failed to verify chain"
// @Security BearerAuth
// @Router /ledger/verify [get]
func (h *ledgerHandler) verifyChain(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	result, err := h.auditService.VerifyChain(c.Request.Context())
	if err != nil {
		if errors.Is(err, apperrors.ErrChainIntegrity) {
			c.JSON(http.StatusConflict, dto.ToVerifyChainResponse(result))
			return
		}
		respondWithError(c, logger, err, "Failed to verify chain")
		return
	}
	c.JSON(http.StatusOK, dto.ToVerifyChainResponse(result))
}

// reconcile godoc
// @Summary Repair missing audit entries
// @Description Appends a CREATE entry for every stored expense the chain does not reference.
// @Tags ledger
// @Produce  json
// @Success 200 {object} dto.ReconcileResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to reconcile"
// @Security BearerAuth
// @Router /ledger/reconcile [post]
func (h *ledgerHandler) reconcile(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	repaired, err := h.auditService.Reconcile(c.Request.Context())
	if err != nil {
		respondWithError(c, logger, err, "Failed to reconcile")
		return
	}
	if repaired == nil {
		repaired = []string{}
	}
	logger.Info("Reconcile finished", slog.Int("repaired", len(repaired)))
	c.JSON(http.StatusOK, dto.ReconcileResponse{Repaired: repaired})
}
