package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
)

// エラー種別
const (
	KindNotFound          = "not_found"
	KindInsufficientSeats = "insufficient_seats"
	KindUnauthorized      = "unauthorized"
	KindUnauthenticated   = "unauthenticated"
	KindAlreadyCancelled  = "already_cancelled"
	KindConflict          = "concurrency_conflict"
	KindInvalidInput      = "invalid_input"
	KindInternal          = "internal"
)

// RetryAfterSeconds は競合時に返す Retry-After の秒数
const RetryAfterSeconds = "1"

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"`
}

// SeatShortage は空席不足時の詳細
type SeatShortage struct {
	Available int `json:"available"`
	Requested int `json:"requested"`
}

var validationErrors = []error{
	event.ErrEventNameRequired,
	event.ErrEventDateRequired,
	event.ErrInvalidTotalSeats,
	event.ErrInvalidPrice,
	event.ErrInvalidAvailableSeats,
	reservation.ErrInvalidNumberOfSeats,
}

// CustomHTTPErrorHandler はドメインエラーをHTTPステータスとエラー種別に変換する
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := ToErrorResponse(err)

	if resp.Code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", resp.Code),
			zap.String("kind", resp.Kind),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}
	if resp.Kind == KindConflict {
		c.Response().Header().Set("Retry-After", RetryAfterSeconds)
	}

	if err := c.JSON(resp.Code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

// ToErrorResponse はエラーをレスポンスに変換する
func ToErrorResponse(err error) ErrorResponse {
	var (
		he           *echo.HTTPError
		insufficient *event.InsufficientSeatsError
	)
	switch {
	case errors.As(err, &insufficient):
		return ErrorResponse{
			Error:   insufficient.Error(),
			Kind:    KindInsufficientSeats,
			Code:    http.StatusConflict,
			Details: SeatShortage{Available: insufficient.Available, Requested: insufficient.Requested},
		}
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, reservation.ErrReservationNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return ErrorResponse{Error: err.Error(), Kind: KindNotFound, Code: http.StatusNotFound}
	case errors.Is(err, reservation.ErrUnauthorized):
		return ErrorResponse{Error: reservation.ErrUnauthorized.Error(), Kind: KindUnauthorized, Code: http.StatusForbidden}
	case errors.Is(err, reservation.ErrAlreadyCancelled):
		return ErrorResponse{Error: reservation.ErrAlreadyCancelled.Error(), Kind: KindAlreadyCancelled, Code: http.StatusConflict}
	case transaction.IsConflict(err):
		return ErrorResponse{Error: transaction.ErrConcurrencyConflict.Error(), Kind: KindConflict, Code: http.StatusServiceUnavailable}
	case isValidationError(err):
		return ErrorResponse{Error: err.Error(), Kind: KindInvalidInput, Code: http.StatusBadRequest}
	case errors.As(err, &he):
		return fromHTTPError(he)
	}
	return ErrorResponse{Error: "内部サーバーエラー", Kind: KindInternal, Code: http.StatusInternalServerError}
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func fromHTTPError(he *echo.HTTPError) ErrorResponse {
	resp := ErrorResponse{Code: he.Code, Error: http.StatusText(he.Code)}
	if m, ok := he.Message.(string); ok {
		resp.Error = m
	}

	switch {
	case he.Code == http.StatusNotFound:
		resp.Kind = KindNotFound
	case he.Code == http.StatusUnauthorized:
		resp.Kind = KindUnauthenticated
	case he.Code == http.StatusForbidden:
		resp.Kind = KindUnauthorized
	case he.Code >= 500:
		resp.Kind = KindInternal
	default:
		resp.Kind = KindInvalidInput
	}

	var ve validator.ValidationErrors
	if errors.As(he.Internal, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		resp.Details = fields
	}
	return resp
}
