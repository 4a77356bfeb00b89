package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/metrics"
)

func TestLockManager_AcquireLock(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	manager := NewLockManager(client, nil)

	t.Run("ロックを取得できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-1", 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)
		defer lock.Release(ctx)
	})

	t.Run("同じキーのロックは取得できない", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-2", 5*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.AcquireLock(ctx, "test-key-2", 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-3", 5*time.Second)
		require.NoError(t, err)

		err = lock1.Release(ctx)
		require.NoError(t, err)

		lock2, err := manager.AcquireLock(ctx, "test-key-3", 5*time.Second)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("リトライで取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-4", 500*time.Millisecond)
		require.NoError(t, err)

		go func() {
			time.Sleep(300 * time.Millisecond)
			lock1.Release(ctx)
		}()

		lock2, err := manager.AcquireLockWithRetry(ctx, "test-key-4", 5*time.Second, 5, 100*time.Millisecond)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("ロックを延長できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-extend", 1*time.Second)
		require.NoError(t, err)
		defer lock.Release(ctx)

		// ロックを延長
		err = lock.Extend(ctx, 5*time.Second)
		require.NoError(t, err)

		// まだロックを持っていることを確認
		lock2, err := manager.AcquireLock(ctx, "test-key-extend", 1*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は延長できない", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-extend-after-release", 1*time.Second)
		require.NoError(t, err)

		err = lock.Release(ctx)
		require.NoError(t, err)

		// 解放後に延長を試みる
		err = lock.Extend(ctx, 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotOwned)
	})
}

func TestLockManager_WithLock(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	manager := NewLockManager(client, m)

	t.Run("ロック取得中に処理を実行し、終了後に解放する", func(t *testing.T) {
		called := false
		err := manager.WithLock(ctx, "test-with-lock-1", 5*time.Second, func(ctx context.Context) error {
			called = true
			_, err := manager.AcquireLock(ctx, "test-with-lock-1", time.Second)
			assert.ErrorIs(t, err, ErrLockNotAcquired)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)

		lock, err := manager.AcquireLock(ctx, "test-with-lock-1", time.Second)
		require.NoError(t, err)
		_ = lock.Release(ctx)
	})

	t.Run("他の所有者がいる場合は実行しない", func(t *testing.T) {
		held, err := manager.AcquireLock(ctx, "test-with-lock-2", 5*time.Second)
		require.NoError(t, err)
		defer held.Release(ctx)

		called := false
		err = manager.WithLock(ctx, "test-with-lock-2", time.Second, func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.False(t, called)
	})

	t.Run("処理のエラーを返す", func(t *testing.T) {
		boom := errors.New("boom")
		err := manager.WithLock(ctx, "test-with-lock-3", time.Second, func(context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	assert.Greater(t, testutil.CollectAndCount(m.DistributedLockDuration), 0)
}
