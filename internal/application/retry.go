package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
)

// RetryPolicy は競合時の再実行回数と待ち時間
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// RetryOnConflict は fn が競合エラーを返す間、作業単位全体を最大 MaxAttempts 回まで実行する
// 待ち時間は試行ごとに倍になる。競合以外のエラーはそのまま返す
func RetryOnConflict[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !transaction.IsConflict(err) || attempt == attempts {
			return result, err
		}

		logger.Warn("競合のため再試行します",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return result, err
}
