package application

import (
	"time"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
)

// ReservationView は予約とその時点のイベント情報、予約者名をまとめた読み取り用の投影
type ReservationView struct {
	ID              int64
	Code            string
	UserID          int64
	UserName        string
	Event           *event.Event
	NumberOfSeats   int
	TotalPrice      float64
	Status          reservation.Status
	ReservationDate time.Time
}

func newReservationView(r *reservation.Reservation, e *event.Event, userName string) *ReservationView {
	return &ReservationView{
		ID:              r.ID,
		Code:            r.Code,
		UserID:          r.UserID,
		UserName:        userName,
		Event:           e,
		NumberOfSeats:   r.NumberOfSeats,
		TotalPrice:      r.TotalPrice,
		Status:          r.Status,
		ReservationDate: r.ReservationDate,
	}
}

// ReservationMessage はメッセージブローカーに送る予約イベント
type ReservationMessage struct {
	Code          string    `json:"reservation_code"`
	EventID       int64     `json:"event_id"`
	UserID        int64     `json:"user_id"`
	NumberOfSeats int       `json:"number_of_seats"`
	TotalPrice    float64   `json:"total_price"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ルーティングキー
const (
	KeyReservationConfirmed = "reservation.confirmed"
	KeyReservationCancelled = "reservation.cancelled"
)
