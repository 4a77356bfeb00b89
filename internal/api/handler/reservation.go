package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"

	"github.com/sanosuguru/go-event-seat-booking/internal/application"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
)

// HeaderUserEmail は上流の認証基盤が設定する呼び出し元のメールアドレス
const HeaderUserEmail = "X-User-Email"

// QRCodeSize はチケットQRコードの一辺のピクセル数
const QRCodeSize = 256

type ReservationHandler struct {
	service  ReservationServiceInterface
	retry    application.RetryPolicy
	maxSeats int
}

// ReservationHandlerConfig は予約APIの設定
type ReservationHandlerConfig struct {
	Retry    application.RetryPolicy
	MaxSeats int // 0 なら上限なし
}

func NewReservationHandler(s ReservationServiceInterface, cfg ReservationHandlerConfig) *ReservationHandler {
	return &ReservationHandler{service: s, retry: cfg.Retry, maxSeats: cfg.MaxSeats}
}

type CreateReservationRequest struct {
	EventID       int64 `json:"event_id" validate:"required,gt=0" example:"1"`
	NumberOfSeats int   `json:"number_of_seats" validate:"required,gt=0" example:"2"`
}

type ReservationResponse struct {
	ID              int64          `json:"id" example:"42"`
	ReservationCode string         `json:"reservation_code" example:"RES-M4C2K9Q0-7ZK3M1PA"`
	UserID          int64          `json:"user_id" example:"7"`
	UserName        string         `json:"user_name" example:"Taro Yamada"`
	Event           *EventResponse `json:"event"`
	NumberOfSeats   int            `json:"number_of_seats" example:"2"`
	TotalPrice      float64        `json:"total_price" example:"179.98"`
	Status          string         `json:"status" example:"CONFIRMED"`
	ReservationDate string         `json:"reservation_date" example:"2025-12-06T10:00:00Z"`
}

func toReservationResponse(v *application.ReservationView) ReservationResponse {
	resp := ReservationResponse{
		ID:              v.ID,
		ReservationCode: v.Code,
		UserID:          v.UserID,
		UserName:        v.UserName,
		NumberOfSeats:   v.NumberOfSeats,
		TotalPrice:      v.TotalPrice,
		Status:          string(v.Status),
		ReservationDate: v.ReservationDate.Format(time.RFC3339),
	}
	if v.Event != nil {
		resp.Event = toEventResponse(v.Event)
	}
	return resp
}

func toReservationResponses(views []*application.ReservationView) []ReservationResponse {
	resp := make([]ReservationResponse, len(views))
	for i, v := range views {
		resp[i] = toReservationResponse(v)
	}
	return resp
}

// callerEmail は呼び出し元のメールアドレスを返す
func callerEmail(c echo.Context) (string, error) {
	email := strings.TrimSpace(c.Request().Header.Get(HeaderUserEmail))
	if email == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "ユーザーのメールアドレスが必要です")
	}
	return email, nil
}

// Create godoc
// @Summary 予約を作成
// @Description 空席を確保して確定済みの予約を作成します。競合時は数回まで自動で再試行します
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-Email header string true "呼び出し元のメールアドレス"
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "空席不足"
// @Failure 503 {object} api.ErrorResponse "同時実行の競合"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	email, err := callerEmail(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if h.maxSeats > 0 && req.NumberOfSeats > h.maxSeats {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("1回の予約は%d席までです", h.maxSeats))
	}

	input := application.CreateReservationInput{
		EventID:       req.EventID,
		NumberOfSeats: req.NumberOfSeats,
		UserEmail:     email,
	}
	v, err := application.RetryOnConflict(c.Request().Context(), h.retry,
		func(ctx context.Context) (*application.ReservationView, error) {
			return h.service.CreateReservation(ctx, input)
		})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReservationResponse(v))
}

// GetByCode godoc
// @Summary 予約を取得
// @Tags reservations
// @Produce json
// @Param code path string true "予約コード"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{code} [get]
func (h *ReservationHandler) GetByCode(c echo.Context) error {
	v, err := h.service.GetReservationByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(v))
}

// Mine godoc
// @Summary 自分の予約一覧を取得
// @Description 予約日時の新しい順に返します
// @Tags reservations
// @Produce json
// @Param X-User-Email header string true "呼び出し元のメールアドレス"
// @Success 200 {array} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/me [get]
func (h *ReservationHandler) Mine(c echo.Context) error {
	email, err := callerEmail(c)
	if err != nil {
		return err
	}
	views, err := h.service.GetUserReservationsByEmail(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponses(views))
}

// ByUser godoc
// @Summary ユーザーの予約一覧を取得
// @Tags reservations
// @Produce json
// @Param user_id path int true "ユーザーID"
// @Success 200 {array} ReservationResponse
// @Router /users/{user_id}/reservations [get]
func (h *ReservationHandler) ByUser(c echo.Context) error {
	userID, err := parseID(c, "user_id")
	if err != nil {
		return err
	}
	views, err := h.service.GetUserReservations(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponses(views))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約をキャンセルし、座席を在庫に戻します。予約者本人のみ実行できます
// @Tags reservations
// @Produce json
// @Param X-User-Email header string true "呼び出し元のメールアドレス"
// @Param code path string true "予約コード"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "キャンセル済み"
// @Failure 503 {object} api.ErrorResponse "同時実行の競合"
// @Router /reservations/{code} [delete]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	email, err := callerEmail(c)
	if err != nil {
		return err
	}
	code := c.Param("code")
	v, err := application.RetryOnConflict(c.Request().Context(), h.retry,
		func(ctx context.Context) (*application.ReservationView, error) {
			return h.service.CancelReservation(ctx, code, email)
		})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(v))
}

// QRCode godoc
// @Summary 予約チケットのQRコードを取得
// @Description 確定済みの予約コードをPNGのQRコードで返します
// @Tags reservations
// @Produce png
// @Param code path string true "予約コード"
// @Success 200 {file} binary
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "キャンセル済み"
// @Router /reservations/{code}/qr [get]
func (h *ReservationHandler) QRCode(c echo.Context) error {
	v, err := h.service.GetReservationByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	if v.Status == reservation.StatusCancelled {
		return reservation.ErrAlreadyCancelled
	}

	png, err := qrcode.Encode(v.Code, qrcode.Medium, QRCodeSize)
	if err != nil {
		return fmt.Errorf("QRコード生成に失敗: %w", err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
