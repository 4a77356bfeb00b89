package reservation

import (
	"math"
	"time"
)

// Status は予約の状態を表す
type Status string

const (
	// StatusPending は互換性のために残している。現在の予約フローでは使用しない
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid は定義済みの状態かを返す
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Reservation は予約エンティティを表す
// イベントとユーザーは外部キーのみで参照する
type Reservation struct {
	ID              int64
	Code            string
	UserID          int64
	EventID         int64
	NumberOfSeats   int
	TotalPrice      float64 // 作成時の価格で固定
	Status          Status
	ReservationDate time.Time
}

// NewReservation は確定済みの予約を作成する
func NewReservation(userID, eventID int64, numberOfSeats int, unitPrice float64, code string, now time.Time) *Reservation {
	return &Reservation{
		Code:            code,
		UserID:          userID,
		EventID:         eventID,
		NumberOfSeats:   numberOfSeats,
		TotalPrice:      TotalPrice(unitPrice, numberOfSeats),
		Status:          StatusConfirmed,
		ReservationDate: now,
	}
}

// TotalPrice は単価×席数を小数第2位で丸めて返す
func TotalPrice(unitPrice float64, seats int) float64 {
	return math.Round(unitPrice*float64(seats)*100) / 100
}

// IsConfirmed は予約が確定済みかを返す
func (r *Reservation) IsConfirmed() bool {
	return r.Status == StatusConfirmed
}

// IsOwnedBy は userID が予約の所有者かを返す
func (r *Reservation) IsOwnedBy(userID int64) bool {
	return r.UserID == userID
}

// Cancel は予約をキャンセルする。一度だけ可能で、取り消しはできない
func (r *Reservation) Cancel() error {
	if r.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	r.Status = StatusCancelled
	return nil
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.EventID == 0 {
		return ErrEventIDRequired
	}
	if r.UserID == 0 {
		return ErrUserIDRequired
	}
	if r.NumberOfSeats <= 0 {
		return ErrInvalidNumberOfSeats
	}
	if r.Code == "" {
		return ErrCodeRequired
	}
	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}
