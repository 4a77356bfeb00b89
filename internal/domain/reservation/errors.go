package reservation

import "errors"

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound     = errors.New("予約が見つかりません")
	ErrAlreadyCancelled        = errors.New("予約は既にキャンセルされています")
	ErrUnauthorized            = errors.New("この予約をキャンセルする権限がありません")
	ErrDuplicateCode           = errors.New("予約コードが重複しています")
	ErrCodeGenerationExhausted = errors.New("一意な予約コードを生成できませんでした")
	ErrEventIDRequired         = errors.New("イベントIDは必須です")
	ErrUserIDRequired          = errors.New("ユーザーIDは必須です")
	ErrInvalidNumberOfSeats    = errors.New("座席数は1以上である必要があります")
	ErrCodeRequired            = errors.New("予約コードは必須です")
	ErrInvalidStatus           = errors.New("予約の状態が不正です")
)
