package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-event-seat-booking/internal/application"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id int64) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context) ([]*event.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) ListUpcomingEvents(ctx context.Context) ([]*event.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) GetAvailability(ctx context.Context, id int64) (*application.Availability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Availability), args.Error(1)
}

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) CreateReservation(ctx context.Context, input application.CreateReservationInput) (*application.ReservationView, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.ReservationView), args.Error(1)
}

func (m *MockReservationService) CancelReservation(ctx context.Context, code, callerEmail string) (*application.ReservationView, error) {
	args := m.Called(ctx, code, callerEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.ReservationView), args.Error(1)
}

func (m *MockReservationService) GetReservationByCode(ctx context.Context, code string) (*application.ReservationView, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.ReservationView), args.Error(1)
}

func (m *MockReservationService) GetUserReservations(ctx context.Context, userID int64) ([]*application.ReservationView, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*application.ReservationView), args.Error(1)
}

func (m *MockReservationService) GetUserReservationsByEmail(ctx context.Context, email string) ([]*application.ReservationView, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*application.ReservationView), args.Error(1)
}

// newTestServer はモックサービスでルートを登録したEchoを返す
func newTestServer(es EventServiceInterface, rs ReservationServiceInterface, cfg ReservationHandlerConfig) *echo.Echo {
	e := NewTestEcho()
	RegisterRoutes(e, Handlers{
		Event:       NewEventHandler(es),
		Reservation: NewReservationHandler(rs, cfg),
		Health:      NewHealthHandler(nil),
	})
	return e
}
