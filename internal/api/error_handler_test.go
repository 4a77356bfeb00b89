package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
)

func TestToErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"イベントなし", event.ErrEventNotFound, http.StatusNotFound, KindNotFound},
		{"予約なし", fmt.Errorf("取得失敗: %w", reservation.ErrReservationNotFound), http.StatusNotFound, KindNotFound},
		{"ユーザーなし", user.ErrUserNotFound, http.StatusNotFound, KindNotFound},
		{"空席不足", &event.InsufficientSeatsError{Available: 7, Requested: 8}, http.StatusConflict, KindInsufficientSeats},
		{"権限なし", reservation.ErrUnauthorized, http.StatusForbidden, KindUnauthorized},
		{"キャンセル済み", reservation.ErrAlreadyCancelled, http.StatusConflict, KindAlreadyCancelled},
		{"競合", fmt.Errorf("ロック待ち: %w", transaction.ErrConcurrencyConflict), http.StatusServiceUnavailable, KindConflict},
		{"座席数不正", reservation.ErrInvalidNumberOfSeats, http.StatusBadRequest, KindInvalidInput},
		{"イベント検証エラー", fmt.Errorf("バリデーションエラー: %w", event.ErrInvalidPrice), http.StatusBadRequest, KindInvalidInput},
		{"在庫の不変条件違反", event.ErrInsufficientCapacity, http.StatusInternalServerError, KindInternal},
		{"HTTP 400", echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト"), http.StatusBadRequest, KindInvalidInput},
		{"HTTP 401", echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です"), http.StatusUnauthorized, KindUnauthenticated},
		{"ルートなし", echo.ErrNotFound, http.StatusNotFound, KindNotFound},
		{"想定外", errors.New("db down"), http.StatusInternalServerError, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ToErrorResponse(tt.err)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestToErrorResponse_InternalDetailsHidden(t *testing.T) {
	resp := ToErrorResponse(errors.New("pq: password authentication failed"))
	assert.Equal(t, "内部サーバーエラー", resp.Error)
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	e := echo.New()

	t.Run("空席不足は残席数を details に含む", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		CustomHTTPErrorHandler(&event.InsufficientSeatsError{Available: 7, Requested: 8}, c)

		assert.Equal(t, http.StatusConflict, rec.Code)
		var body struct {
			Error   string       `json:"error"`
			Kind    string       `json:"kind"`
			Code    int          `json:"code"`
			Details SeatShortage `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, KindInsufficientSeats, body.Kind)
		assert.Equal(t, http.StatusConflict, body.Code)
		assert.Equal(t, SeatShortage{Available: 7, Requested: 8}, body.Details)
	})

	t.Run("競合は503とRetry-Afterを返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		CustomHTTPErrorHandler(transaction.ErrConcurrencyConflict, c)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, RetryAfterSeconds, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), `"kind":"concurrency_conflict"`)
	})

	t.Run("送信済みのレスポンスは変更しない", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, c.String(http.StatusOK, "ok"))

		CustomHTTPErrorHandler(errors.New("late"), c)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})
}

func TestCustomValidator(t *testing.T) {
	type request struct {
		EventID       int64  `json:"event_id" validate:"required,gt=0"`
		NumberOfSeats int    `json:"number_of_seats" validate:"required,gt=0"`
		Note          string `json:"-"`
	}
	v := NewValidator()

	t.Run("正常", func(t *testing.T) {
		assert.NoError(t, v.Validate(&request{EventID: 1, NumberOfSeats: 2}))
	})

	t.Run("不正な入力はフィールドごとの詳細を返す", func(t *testing.T) {
		err := v.Validate(&request{})
		require.Error(t, err)

		resp := ToErrorResponse(err)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, KindInvalidInput, resp.Kind)
		assert.Equal(t, map[string]string{"event_id": "required", "number_of_seats": "required"}, resp.Details)
	})
}
