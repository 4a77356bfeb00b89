package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/application"
	"github.com/sanosuguru/go-event-seat-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
)

// AuditLockKey は複数インスタンス間で監査を1つに絞るための分散ロックのキー
const AuditLockKey = "inventory-audit"

// InventoryAuditor は在庫の整合性を確認するインターフェース
type InventoryAuditor interface {
	AuditInventory(ctx context.Context) (*application.AuditReport, error)
}

// Locker は分散ロック下で処理を実行する
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// InventoryAuditWorker は定期的に在庫監査を実行するワーカー
// 不整合は記録するだけで修正しない
type InventoryAuditWorker struct {
	auditor  InventoryAuditor
	interval time.Duration
	locker   Locker
	lockTTL  time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Option はワーカーの設定を変更する
type Option func(*InventoryAuditWorker)

// WithLocker は分散ロックを設定する。ロックを取得できなかった回は監査をスキップする
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(w *InventoryAuditWorker) {
		w.locker = l
		w.lockTTL = ttl
	}
}

// NewInventoryAuditWorker は新しいワーカーを作成
func NewInventoryAuditWorker(a InventoryAuditor, interval time.Duration, opts ...Option) *InventoryAuditWorker {
	w := &InventoryAuditWorker{
		auditor:  a,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start はワーカーを開始し、停止するまでブロックする
func (w *InventoryAuditWorker) Start(ctx context.Context) {
	logger.Info("在庫監査ワーカー開始",
		zap.Duration("interval", w.interval),
		zap.Bool("distributed_lock", w.locker != nil),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("在庫監査ワーカー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("在庫監査ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop はワーカーを停止し、実行中の監査の終了を待つ
func (w *InventoryAuditWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

// RunOnce は監査を1回実行する
func (w *InventoryAuditWorker) RunOnce(ctx context.Context) {
	if w.locker == nil {
		_ = w.audit(ctx)
		return
	}

	err := w.locker.WithLock(ctx, AuditLockKey, w.lockTTL, w.audit)
	switch {
	case errors.Is(err, redis.ErrLockNotAcquired):
		logger.Debug("他のインスタンスが在庫監査中のためスキップ")
	case err != nil:
		logger.Error("在庫監査のロック処理に失敗", zap.Error(err))
	}
}

func (w *InventoryAuditWorker) audit(ctx context.Context) error {
	report, err := w.auditor.AuditInventory(ctx)
	if err != nil {
		logger.Error("在庫監査に失敗", zap.Error(err))
		return nil
	}

	if len(report.Drifted) > 0 {
		logger.Warn("在庫監査で不整合を検出",
			zap.Int("checked", report.Checked),
			zap.Int("drifted", len(report.Drifted)),
		)
	} else {
		logger.Debug("在庫監査完了", zap.Int("checked", report.Checked))
	}
	return nil
}
