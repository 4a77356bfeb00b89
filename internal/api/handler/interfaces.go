package handler

import (
	"context"

	"github.com/sanosuguru/go-event-seat-booking/internal/application"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id int64) (*event.Event, error)
	ListEvents(ctx context.Context) ([]*event.Event, error)
	ListUpcomingEvents(ctx context.Context) ([]*event.Event, error)
	GetAvailability(ctx context.Context, id int64) (*application.Availability, error)
}

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	CreateReservation(ctx context.Context, input application.CreateReservationInput) (*application.ReservationView, error)
	CancelReservation(ctx context.Context, code, callerEmail string) (*application.ReservationView, error)
	GetReservationByCode(ctx context.Context, code string) (*application.ReservationView, error)
	GetUserReservations(ctx context.Context, userID int64) ([]*application.ReservationView, error)
	GetUserReservationsByEmail(ctx context.Context, email string) ([]*application.ReservationView, error)
}
