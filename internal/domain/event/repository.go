package event

import (
	"context"
	"time"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する（コミット済みの状態のみ）
	GetByID(ctx context.Context, id int64) (*Event, error)

	// List はイベント一覧を開催日時の昇順で取得する
	List(ctx context.Context) ([]*Event, error)

	// ListUpcoming は now より後に開催され空席のあるイベントを開催日時の昇順で取得する
	ListUpcoming(ctx context.Context, now time.Time) ([]*Event, error)

	// GetForUpdate は排他ロックを取得してイベントを読み込む（トランザクション必須）
	// ロックはトランザクション終了まで保持される
	GetForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*Event, error)

	// UpdateInventory は空席数を保存しバージョンを進める（楽観的ロック、トランザクション必須）
	UpdateInventory(ctx context.Context, tx transaction.Tx, event *Event) error

	// AuditInventory は全イベントの在庫と確定済み予約の座席合計を一貫した読み取りで返す
	AuditInventory(ctx context.Context) ([]InventoryAudit, error)
}
