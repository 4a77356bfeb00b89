package event

import (
	"errors"
	"fmt"
)

// Event ドメインのエラー定義
var (
	ErrEventNotFound          = errors.New("イベントが見つかりません")
	ErrEventNameRequired      = errors.New("イベント名は必須です")
	ErrEventDateRequired      = errors.New("開催日時は必須です")
	ErrInvalidTotalSeats      = errors.New("座席数は1以上である必要があります")
	ErrInvalidPrice           = errors.New("価格は0以上である必要があります")
	ErrInvalidAvailableSeats  = errors.New("空席数は0以上かつ座席数以下である必要があります")
	ErrInsufficientSeats      = errors.New("空席が不足しています")
	ErrInsufficientCapacity   = errors.New("在庫の事前確認なしに座席が確保されました")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
)

// InsufficientSeatsError は空席不足を表し、現在の空席数を保持する
type InsufficientSeatsError struct {
	Available int
	Requested int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("空席が不足しています（残り%d席、要求%d席）", e.Available, e.Requested)
}

// Is は errors.Is(err, ErrInsufficientSeats) を成立させる
func (e *InsufficientSeatsError) Is(target error) bool {
	return target == ErrInsufficientSeats
}
