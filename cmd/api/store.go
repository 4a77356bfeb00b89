package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-seat-booking/internal/config"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
	"github.com/sanosuguru/go-event-seat-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-seat-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
)

// メモリストア起動時に登録する開発用ユーザー
const demoUserEmail = "demo@example.com"

// store は選択したドライバーのリポジトリ一式
type store struct {
	txManager    transaction.Manager
	events       event.Repository
	reservations reservation.Repository
	users        user.Repository
	checks       map[string]handler.Checker
	close        func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return openMemoryStore(ctx, cfg)
	}
	return openPostgresStore(cfg)
}

func openPostgresStore(cfg *config.Config) (*store, error) {
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("データベースに接続しました", zap.String("host", cfg.Database.Host), zap.String("isolation", cfg.Database.Isolation))

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("マイグレーションを適用しました", zap.String("path", cfg.Database.MigrationsPath))
	}

	return &store{
		txManager:    postgres.NewTxManager(db, &cfg.Database),
		events:       postgres.NewEventRepository(db),
		reservations: postgres.NewReservationRepository(db),
		users:        postgres.NewUserRepository(db),
		checks: map[string]handler.Checker{
			"database": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		},
		close: func() {
			if err := db.Close(); err != nil {
				logger.Warn("データベース切断エラー", zap.Error(err))
			}
		},
	}, nil
}

func openMemoryStore(ctx context.Context, cfg *config.Config) (*store, error) {
	s := memory.NewStore(memory.WithLockTimeout(cfg.Database.LockTimeout))
	users := memory.NewUserRepository(s)

	demo := &user.User{Email: demoUserEmail, FirstName: "Demo", LastName: "User"}
	if err := users.Create(ctx, demo); err != nil {
		return nil, fmt.Errorf("開発用ユーザーの登録に失敗しました: %w", err)
	}
	logger.Warn("メモリストアで起動しました。再起動するとデータは失われます", zap.String("demo_user", demo.Email))

	return &store{
		txManager:    s,
		events:       memory.NewEventRepository(s),
		reservations: memory.NewReservationRepository(s),
		users:        users,
		checks:       map[string]handler.Checker{},
		close:        func() {},
	}, nil
}
