package transaction

import (
	"context"
	"errors"
)

// ErrConcurrencyConflict は再試行可能な同時実行競合を表す
// ロック待ちタイムアウト、バージョン不一致、シリアライズ失敗などはすべてこのエラーでラップされる
var ErrConcurrencyConflict = errors.New("同時実行の競合が発生しました。再試行してください")

// Tx はトランザクションを表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}

// Run は fn を1つの作業単位として実行する
// fn が nil を返せばコミットし、エラーまたはパニックの場合はロールバックしてから伝播させる
func Run(ctx context.Context, m Manager, fn func(tx Tx) error) (err error) {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// IsConflict はエラーが再試行可能な競合かを返す
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
