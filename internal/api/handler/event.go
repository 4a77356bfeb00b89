package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-seat-booking/internal/application"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
)

type EventHandler struct {
	eventService EventServiceInterface
}

func NewEventHandler(eventService EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type CreateEventRequest struct {
	Name        string  `json:"name" validate:"required" example:"東京ドームコンサート2025"`
	Description string  `json:"description" example:"年末スペシャルコンサート"`
	EventDate   string  `json:"event_date" validate:"required" example:"2025-12-31T18:00:00+09:00"`
	TotalSeats  int     `json:"total_seats" validate:"required,gt=0" example:"50000"`
	Price       float64 `json:"price" validate:"gte=0" example:"89.99"`
	Category    string  `json:"category" example:"music"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url" example:"https://example.com/poster.png"`
}

type EventResponse struct {
	ID             int64   `json:"id" example:"1"`
	Name           string  `json:"name" example:"東京ドームコンサート2025"`
	Description    string  `json:"description,omitempty" example:"年末スペシャルコンサート"`
	EventDate      string  `json:"event_date" example:"2025-12-31T18:00:00+09:00"`
	TotalSeats     int     `json:"total_seats" example:"50000"`
	AvailableSeats int     `json:"available_seats" example:"49998"`
	ReservedSeats  int     `json:"reserved_seats" example:"2"`
	Price          float64 `json:"price" example:"89.99"`
	Category       string  `json:"category,omitempty" example:"music"`
	ImageURL       string  `json:"image_url,omitempty"`
	CreatedAt      string  `json:"created_at" example:"2025-12-06T10:00:00+09:00"`
}

type AvailabilityResponse struct {
	EventID        int64 `json:"event_id" example:"1"`
	AvailableSeats int   `json:"available_seats" example:"120"`
	Cached         bool  `json:"cached"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:             e.ID,
		Name:           e.Name,
		Description:    e.Description,
		EventDate:      e.EventDate.Format(time.RFC3339),
		TotalSeats:     e.TotalSeats,
		AvailableSeats: e.AvailableSeats,
		ReservedSeats:  e.ReservedSeats(),
		Price:          e.Price,
		Category:       e.Category,
		ImageURL:       e.ImageURL,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}

func toEventResponses(events []*event.Event) []*EventResponse {
	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return responses
}

// parseID はパスパラメータの正のIDを読み取る
func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "IDの形式が不正です")
	}
	return id, nil
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントを作成します（空席数 = 総座席数）
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開催日時の形式が不正です")
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		EventDate:   eventDate,
		TotalSeats:  req.TotalSeats,
		Price:       req.Price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path int true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Tags events
// @Produce json
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.eventService.ListEvents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// Upcoming godoc
// @Summary 開催予定のイベント一覧を取得
// @Description 空席があり、これから開催されるイベントを開催日時の昇順で返します
// @Tags events
// @Produce json
// @Success 200 {array} EventResponse
// @Router /events/upcoming [get]
func (h *EventHandler) Upcoming(c echo.Context) error {
	events, err := h.eventService.ListUpcomingEvents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponses(events))
}

// Availability godoc
// @Summary 空席数を取得
// @Description 表示用の空席数を返します（最大数秒古い場合があります）
// @Tags events
// @Produce json
// @Param id path int true "イベントID"
// @Success 200 {object} AvailabilityResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/availability [get]
func (h *EventHandler) Availability(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.eventService.GetAvailability(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{
		EventID:        a.EventID,
		AvailableSeats: a.AvailableSeats,
		Cached:         a.Cached,
	})
}
