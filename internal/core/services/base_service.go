package services

import (
	"context"
	"log/slog"

	"github.com/hivefi/ledger/internal/middleware"
)

// BaseService gives the ledger services the request-scoped logger that the
// HTTP middleware stores in the context, falling back to slog.Default.
type BaseService struct{}

func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs msg at error level with the error attached as "error".
func (s *BaseService) LogError(ctx context.Context, err error, msg string, attrs ...any) {
	s.GetLogger(ctx).With(slog.String("error", err.Error())).Error(msg, attrs...)
}

func (s *BaseService) LogWarn(ctx context.Context, msg string, attrs ...any) {
	s.GetLogger(ctx).Warn(msg, attrs...)
}

func (s *BaseService) LogInfo(ctx context.Context, msg string, attrs ...any) {
	s.GetLogger(ctx).Info(msg, attrs...)
}

func (s *BaseService) LogDebug(ctx context.Context, msg string, attrs ...any) {
	s.GetLogger(ctx).Debug(msg, attrs...)
}
