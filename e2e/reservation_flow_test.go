package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo  *echo.Echo
	Users user.Repository
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

// CreateUser はユーザーを直接登録する。ユーザー登録APIは持たない
func (s *TestServer) CreateUser(t *testing.T, name string) string {
	t.Helper()
	email := fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8])
	require.NoError(t, s.Users.Create(context.Background(), &user.User{
		Email:     email,
		FirstName: name,
		LastName:  "Test",
		CreatedAt: time.Now(),
	}))
	return email
}

// CreateEvent はイベントを作成してIDを返す
func (s *TestServer) CreateEvent(t *testing.T, name string, totalSeats int, price float64, date time.Time) int64 {
	t.Helper()
	rec := s.Request(http.MethodPost, "/api/v1/events", map[string]interface{}{
		"name":        name,
		"event_date":  date.Format(time.RFC3339),
		"total_seats": totalSeats,
		"price":       price,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return int64(resp["id"].(float64))
}

func (s *TestServer) availableSeats(t *testing.T, eventID int64) int {
	t.Helper()
	rec := s.Request(http.MethodGet, fmt.Sprintf("/api/v1/events/%d", eventID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return int(resp["available_seats"].(float64))
}

func asUser(email string) map[string]string {
	return map[string]string{"X-User-Email": email}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

// TestE2E_HealthCheck はヘルスチェックをテスト
func TestE2E_HealthCheck(t *testing.T) {
	server := getTestServer(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := server.Request(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode(t, rec)["status"])
	}
}

// TestE2E_CompleteReservationJourney は予約からキャンセルまでの一連の流れをテスト
func TestE2E_CompleteReservationJourney(t *testing.T) {
	server := getTestServer(t)

	yamada := server.CreateUser(t, "yamada")
	suzuki := server.CreateUser(t, "suzuki")
	eventID := server.CreateEvent(t, "武道館ライブ", 10, 20, time.Now().Add(14*24*time.Hour))
	var code string

	t.Run("3席を予約", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/api/v1/reservations", map[string]interface{}{
			"event_id":        eventID,
			"number_of_seats": 3,
		}, asUser(yamada))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode(t, rec)
		code = resp["reservation_code"].(string)
		assert.NotEmpty(t, code)
		assert.Equal(t, "CONFIRMED", resp["status"])
		assert.Equal(t, float64(60), resp["total_price"])
		assert.Equal(t, float64(7), resp["event"].(map[string]interface{})["available_seats"])
		assert.Equal(t, 7, server.availableSeats(t, eventID))
	})

	t.Run("予約コードで取得", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/api/v1/reservations/"+code, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(3), decode(t, rec)["number_of_seats"])
	})

	t.Run("自分の予約一覧", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/api/v1/reservations/me", nil, asUser(yamada))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, code, resp[0]["reservation_code"])
	})

	t.Run("QRコード取得", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/api/v1/reservations/"+code+"/qr", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
		assert.NotEmpty(t, rec.Body.Bytes())
	})

	t.Run("空席を超える予約は409", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/api/v1/reservations", map[string]interface{}{
			"event_id":        eventID,
			"number_of_seats": 8,
		}, asUser(suzuki))
		require.Equal(t, http.StatusConflict, rec.Code)

		resp := decode(t, rec)
		assert.Equal(t, "insufficient_seats", resp["kind"])
		details := resp["details"].(map[string]interface{})
		assert.Equal(t, float64(7), details["available"])
		assert.Equal(t, float64(8), details["requested"])
		assert.Equal(t, 7, server.availableSeats(t, eventID))
	})

	t.Run("他人の予約はキャンセルできない", func(t *testing.T) {
		rec := server.Request(http.MethodDelete, "/api/v1/reservations/"+code, nil, asUser(suzuki))
		require.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "unauthorized", decode(t, rec)["kind"])
		assert.Equal(t, 7, server.availableSeats(t, eventID))
	})

	t.Run("本人がキャンセル", func(t *testing.T) {
		rec := server.Request(http.MethodDelete, "/api/v1/reservations/"+code, nil, asUser(yamada))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "CANCELLED", decode(t, rec)["status"])
		assert.Equal(t, 10, server.availableSeats(t, eventID))
	})

	t.Run("二重キャンセルは409", func(t *testing.T) {
		rec := server.Request(http.MethodDelete, "/api/v1/reservations/"+code, nil, asUser(yamada))
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "already_cancelled", decode(t, rec)["kind"])
		assert.Equal(t, 10, server.availableSeats(t, eventID))
	})

	t.Run("キャンセル済みのQRコードは409", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/api/v1/reservations/"+code+"/qr", nil, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

// TestE2E_ConcurrentReservationsNoOversell は同時予約で売り越しが起きないことをテスト
func TestE2E_ConcurrentReservationsNoOversell(t *testing.T) {
	server := getTestServer(t)

	const (
		workers  = 20
		capacity = 5
		seats    = 2
	)
	eventID := server.CreateEvent(t, "同時予約テスト", capacity, 10, time.Now().Add(7*24*time.Hour))

	emails := make([]string, workers)
	for i := range emails {
		emails[i] = server.CreateUser(t, fmt.Sprintf("user%d", i))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[int]int{}
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			<-start
			rec := server.Request(http.MethodPost, "/api/v1/reservations", map[string]interface{}{
				"event_id":        eventID,
				"number_of_seats": seats,
			}, asUser(email))
			mu.Lock()
			counts[rec.Code]++
			mu.Unlock()
		}(emails[i])
	}
	close(start)
	wg.Wait()

	assert.Equal(t, capacity/seats, counts[http.StatusCreated])
	assert.Equal(t, workers, counts[http.StatusCreated]+counts[http.StatusConflict]+counts[http.StatusServiceUnavailable])
	assert.Equal(t, capacity-(capacity/seats)*seats, server.availableSeats(t, eventID))
}

// TestE2E_CancelAndRebook はキャンセル後の再予約をテスト
func TestE2E_CancelAndRebook(t *testing.T) {
	server := getTestServer(t)

	userA := server.CreateUser(t, "user-a")
	userB := server.CreateUser(t, "user-b")
	eventID := server.CreateEvent(t, "キャンセル再予約テスト", 1, 100, time.Now().Add(5*24*time.Hour))
	body := map[string]interface{}{"event_id": eventID, "number_of_seats": 1}
	var code string

	t.Run("ユーザーAが最後の1席を予約", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/api/v1/reservations", body, asUser(userA))
		require.Equal(t, http.StatusCreated, rec.Code)
		code = decode(t, rec)["reservation_code"].(string)
	})

	t.Run("満席のイベントは開催予定一覧に出ない", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/api/v1/events/upcoming", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, upcomingIDs(t, rec), eventID)
	})

	t.Run("ユーザーBは予約できない", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/api/v1/reservations", body, asUser(userB))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("ユーザーAがキャンセル", func(t *testing.T) {
		rec := server.Request(http.MethodDelete, "/api/v1/reservations/"+code, nil, asUser(userA))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = server.Request(http.MethodGet, "/api/v1/events/upcoming", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, upcomingIDs(t, rec), eventID)
	})

	t.Run("ユーザーBが再予約に成功", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/api/v1/reservations", body, asUser(userB))
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, 0, server.availableSeats(t, eventID))
	})
}

func upcomingIDs(t *testing.T, rec *httptest.ResponseRecorder) []int64 {
	t.Helper()
	var resp []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	ids := make([]int64, 0, len(resp))
	for _, e := range resp {
		ids = append(ids, int64(e["id"].(float64)))
	}
	return ids
}

// TestE2E_RequestErrors は入力エラーと未認証のレスポンスをテスト
func TestE2E_RequestErrors(t *testing.T) {
	server := getTestServer(t)

	email := server.CreateUser(t, "errors")
	eventID := server.CreateEvent(t, "エラーテスト", 50, 10, time.Now().Add(3*24*time.Hour))

	tests := []struct {
		name     string
		method   string
		path     string
		body     interface{}
		headers  map[string]string
		wantCode int
		wantKind string
	}{
		{
			name:     "利用者ヘッダーなし",
			method:   http.MethodPost,
			path:     "/api/v1/reservations",
			body:     map[string]interface{}{"event_id": eventID, "number_of_seats": 1},
			wantCode: http.StatusUnauthorized,
			wantKind: "unauthenticated",
		},
		{
			name:     "座席数0",
			method:   http.MethodPost,
			path:     "/api/v1/reservations",
			body:     map[string]interface{}{"event_id": eventID, "number_of_seats": 0},
			headers:  asUser(email),
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_input",
		},
		{
			name:     "上限を超える座席数",
			method:   http.MethodPost,
			path:     "/api/v1/reservations",
			body:     map[string]interface{}{"event_id": eventID, "number_of_seats": 11},
			headers:  asUser(email),
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_input",
		},
		{
			name:     "存在しないイベント",
			method:   http.MethodPost,
			path:     "/api/v1/reservations",
			body:     map[string]interface{}{"event_id": 999999, "number_of_seats": 1},
			headers:  asUser(email),
			wantCode: http.StatusNotFound,
			wantKind: "not_found",
		},
		{
			name:     "未登録ユーザー",
			method:   http.MethodPost,
			path:     "/api/v1/reservations",
			body:     map[string]interface{}{"event_id": eventID, "number_of_seats": 1},
			headers:  asUser("nobody@example.com"),
			wantCode: http.StatusNotFound,
			wantKind: "not_found",
		},
		{
			name:     "存在しない予約コード",
			method:   http.MethodGet,
			path:     "/api/v1/reservations/RES-NOTFOUND-00000000",
			wantCode: http.StatusNotFound,
			wantKind: "not_found",
		},
		{
			name:     "不正なイベントID",
			method:   http.MethodGet,
			path:     "/api/v1/events/abc",
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := server.Request(tt.method, tt.path, tt.body, tt.headers)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantKind, decode(t, rec)["kind"])
		})
	}

	assert.Equal(t, 50, server.availableSeats(t, eventID))
}
