// Package rediscache moves the idempotency guard of a ledger store into Redis
// so several ledger instances sharing one store agree on processed request ids.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hivefi/ledger/internal/apperrors"
	portsrepo "github.com/hivefi/ledger/internal/core/ports/repositories"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces request id keys.
const DefaultKeyPrefix = "hivefi:ledger:request:"

// Connect opens a client for addr and checks it with PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	slog.Info("Connected to Redis", slog.String("addr", addr))
	return client, nil
}

// IdempotentLedger wraps a LedgerRepository, replacing its MarkProcessed with
// SETNX on Redis. Keys marked inside a failed RunInTx are deleted again.
type IdempotentLedger struct {
	inner  portsrepo.LedgerRepository
	client redis.Cmdable
	prefix string

	// marked collects keys set inside the current transaction; nil outside one.
	mu     *sync.Mutex
	marked *[]string
}

// NewIdempotentLedger decorates inner with a Redis-backed idempotency guard.
func NewIdempotentLedger(inner portsrepo.LedgerRepository, client redis.Cmdable, prefix string) *IdempotentLedger {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &IdempotentLedger{inner: inner, client: client, prefix: prefix}
}

func (l *IdempotentLedger) Expenses() portsrepo.ExpenseRepositoryFacade {
	return &guardedExpenses{ExpenseRepositoryFacade: l.inner.Expenses(), ledger: l}
}

func (l *IdempotentLedger) Transactions() portsrepo.TransactionRepositoryFacade {
	return l.inner.Transactions()
}

// RunInTx runs fn through the wrapped store's transaction and releases any
// request ids fn marked if the transaction does not commit.
func (l *IdempotentLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, repo portsrepo.LedgerRepository) error) error {
	if l.marked != nil {
		return fn(ctx, l)
	}

	var (
		mu     sync.Mutex
		marked []string
	)
	err := l.inner.RunInTx(ctx, func(ctx context.Context, repo portsrepo.LedgerRepository) error {
		scoped := &IdempotentLedger{inner: repo, client: l.client, prefix: l.prefix, mu: &mu, marked: &marked}
		return fn(ctx, scoped)
	})
	if err != nil && len(marked) > 0 {
		// The caller's ctx may already be cancelled; release the keys regardless.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if delErr := l.client.Del(releaseCtx, marked...).Err(); delErr != nil {
			return errors.Join(err, fmt.Errorf("failed to release request ids: %w", delErr))
		}
	}
	return err
}

func (l *IdempotentLedger) mark(ctx context.Context, requestID string) (bool, error) {
	key := l.prefix + requestID
	first, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return false, apperrors.NewAppError(500, "failed to mark request as processed", err)
	}
	if first && l.marked != nil {
		l.mu.Lock()
		*l.marked = append(*l.marked, key)
		l.mu.Unlock()
	}
	return first, nil
}

type guardedExpenses struct {
	portsrepo.ExpenseRepositoryFacade
	ledger *IdempotentLedger
}

func (g *guardedExpenses) MarkProcessed(ctx context.Context, requestID string) (bool, error) {
	return g.ledger.mark(ctx, requestID)
}
