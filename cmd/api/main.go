package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/api"
	"github.com/sanosuguru/go-event-seat-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-seat-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-seat-booking/internal/application"
	"github.com/sanosuguru/go-event-seat-booking/internal/config"
	"github.com/sanosuguru/go-event-seat-booking/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-event-seat-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-seat-booking/internal/worker"
)

func main() {
	// .env は開発時のみ
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定エラー: %v", err)
	}
	if err := logger.Init(cfg.IsProduction(), cfg.Log.Level); err != nil {
		log.Fatalf("ロガー初期化エラー: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Fatal("起動エラー", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.Init()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	opts := []application.Option{application.WithMetrics(m)}

	// Redis が使えない場合はキャッシュと分散ロックなしで起動する
	var lockManager *redisinfra.LockManager
	if cfg.Redis.Enabled {
		rc, err := redisinfra.NewClient(&redisinfra.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redisに接続できません。キャッシュと分散ロックを無効にします", zap.Error(err))
		} else {
			defer rc.Close()
			opts = append(opts, application.WithAvailabilityCache(redisinfra.NewAvailabilityCache(rc, cfg.Redis.AvailabilityTTL)))
			lockManager = redisinfra.NewLockManager(rc, m)
			st.checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, rc) }
			logger.Info("Redisに接続しました", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Warn("RabbitMQに接続できません。予約通知を無効にします", zap.Error(err))
		} else {
			defer pub.Close()
			opts = append(opts, application.WithPublisher(pub))
			logger.Info("RabbitMQに接続しました", zap.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}

	eventService := application.NewEventService(st.events, opts...)
	reservationService := application.NewReservationService(st.txManager, st.events, st.reservations, st.users, opts...)

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e, m)
	handler.RegisterRoutes(e, handler.Handlers{
		Event: handler.NewEventHandler(eventService),
		Reservation: handler.NewReservationHandler(reservationService, handler.ReservationHandlerConfig{
			Retry: application.RetryPolicy{
				MaxAttempts: cfg.Reservation.ConflictRetries,
				Backoff:     cfg.Reservation.RetryBackoff,
			},
			MaxSeats: cfg.Reservation.MaxSeats,
		}),
		Health: handler.NewHealthHandler(st.checks),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	var auditor *worker.InventoryAuditWorker
	if cfg.Audit.Enabled {
		var wopts []worker.Option
		if lockManager != nil {
			wopts = append(wopts, worker.WithLocker(lockManager, cfg.Audit.LockTTL))
		}
		auditor = worker.NewInventoryAuditWorker(eventService, cfg.Audit.Interval, wopts...)
		go auditor.Start(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port), zap.String("store", cfg.StoreDriver))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// シグナル待機
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("サーバー起動エラー: %w", err)
	}

	logger.Info("サーバーをシャットダウンしています...")

	if auditor != nil {
		auditor.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}

	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}
