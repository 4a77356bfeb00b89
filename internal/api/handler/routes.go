package handler

import "github.com/labstack/echo/v4"

// Handlers はルーティング対象のハンドラー
type Handlers struct {
	Event       *EventHandler
	Reservation *ReservationHandler
	Health      *HealthHandler
}

// RegisterRoutes は /health と /api/v1 配下のルートを登録する
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/health", h.Health.Check)

	v1 := e.Group("/api/v1")
	v1.GET("/health", h.Health.Check)

	events := v1.Group("/events")
	events.GET("", h.Event.List)
	events.POST("", h.Event.Create)
	events.GET("/upcoming", h.Event.Upcoming)
	events.GET("/:id", h.Event.GetByID)
	events.GET("/:id/availability", h.Event.Availability)

	reservations := v1.Group("/reservations")
	reservations.POST("", h.Reservation.Create)
	reservations.GET("/me", h.Reservation.Mine)
	reservations.GET("/:code", h.Reservation.GetByCode)
	reservations.DELETE("/:code", h.Reservation.Cancel)
	reservations.GET("/:code/qr", h.Reservation.QRCode)

	v1.GET("/users/:user_id/reservations", h.Reservation.ByUser)
}
