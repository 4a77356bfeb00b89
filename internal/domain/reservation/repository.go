package reservation

import (
	"context"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	// 予約コードが既に存在する場合はトランザクションを壊さずに ErrDuplicateCode を返す
	Create(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// GetByCode は予約コードから予約を取得する
	GetByCode(ctx context.Context, code string) (*Reservation, error)

	// GetByCodeForUpdate は排他ロックを取得して予約を読み込む（トランザクション必須）
	GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*Reservation, error)

	// GetByUserID はユーザーの予約一覧を予約日時の降順で取得する
	GetByUserID(ctx context.Context, userID int64) ([]*Reservation, error)

	// UpdateStatus は予約の状態を更新する（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, reservation *Reservation) error
}
