package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hivefi/ledger/internal/apperrors"
)

// statusForError maps service errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrChainIntegrity):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrRateFetch), errors.Is(err, apperrors.ErrRateParse):
		return http.StatusBadGateway
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code >= 400 && appErr.Code < 600 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// respondWithError writes the error response for err. Client errors echo the
// error text, server errors answer with fallback and log the cause.
func respondWithError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	logger.Warn(fallback, slog.String("error", err.Error()), slog.Int("status", status))
	c.JSON(status, gin.H{"error": err.Error()})
}
