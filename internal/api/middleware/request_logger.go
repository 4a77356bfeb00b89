package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/api"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
)

// HeaderUserEmail は上流の認証基盤が設定する呼び出し元のメールアドレス
const HeaderUserEmail = "X-User-Email"

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
// ハンドラーのエラーはまだレスポンスになっていないため、HTTPErrorHandler と同じ対応表でステータスを求める
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			err := next(c)

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = res.Header().Get(echo.HeaderXRequestID)
			}

			status := res.Status
			if err != nil {
				status = api.ToErrorResponse(err).Code
			}

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", c.Path()),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}
			if caller := req.Header.Get(HeaderUserEmail); caller != "" {
				fields = append(fields, zap.String("caller", caller))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			switch {
			case status >= 500:
				logger.Error("server error", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}

			return err
		}
	}
}
