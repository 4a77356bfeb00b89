package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-seat-booking/internal/config"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

// ErrForeignTx は PostgreSQL 以外のトランザクションが渡されたことを表す
var ErrForeignTx = errors.New("PostgreSQL のトランザクションではありません")

// TxWrapper は sqlx.Tx を transaction.Tx インターフェースでラップする
type TxWrapper struct {
	*sqlx.Tx
}

// Commit はトランザクションをコミットする
// SERIALIZABLE ではコミット時に直列化失敗が返ることがあるため競合エラーに変換する
func (t *TxWrapper) Commit() error {
	if err := t.Tx.Commit(); err != nil {
		return wrapError(err, "コミットに失敗しました")
	}
	return nil
}

// Rollback はトランザクションをロールバックする
func (t *TxWrapper) Rollback() error {
	return t.Tx.Rollback()
}

// TxManager は sqlx.DB を使用したトランザクションマネージャー
// 開始直後に lock_timeout を設定し、行ロック待ちを有限にする
type TxManager struct {
	db          *sqlx.DB
	isolation   sql.IsolationLevel
	lockTimeout time.Duration
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(db *sqlx.DB, cfg *config.DatabaseConfig) *TxManager {
	isolation := sql.LevelReadCommitted
	if cfg.Isolation == config.IsolationSerializable {
		isolation = sql.LevelSerializable
	}
	return &TxManager{db: db, isolation: isolation, lockTimeout: cfg.LockTimeout}
}

// Begin は新しいトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: m.isolation})
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	if m.lockTimeout > 0 {
		// SET はプレースホルダを受け付けないため整数で埋め込む
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("lock_timeout の設定に失敗しました: %w", err)
		}
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
// リポジトリ実装で使用する
func UnwrapTx(tx transaction.Tx) (*sqlx.Tx, error) {
	if wrapper, ok := tx.(*TxWrapper); ok && wrapper.Tx != nil {
		return wrapper.Tx, nil
	}
	return nil, ErrForeignTx
}

var _ transaction.Manager = (*TxManager)(nil)
