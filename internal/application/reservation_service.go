package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/metrics"
)

// ReservationService は座席在庫の確保と解放を1つの作業単位として調整する
// 同じイベントへの操作はイベント行のロックで直列化され、異なるイベントは並行に進む
type ReservationService struct {
	deps
	txManager       transaction.Manager
	eventRepo       event.Repository
	reservationRepo reservation.Repository
	userRepo        user.Repository
}

func NewReservationService(tm transaction.Manager, er event.Repository, rr reservation.Repository, ur user.Repository, opts ...Option) *ReservationService {
	return &ReservationService{
		deps:            newDeps(opts),
		txManager:       tm,
		eventRepo:       er,
		reservationRepo: rr,
		userRepo:        ur,
	}
}

type CreateReservationInput struct {
	EventID       int64
	NumberOfSeats int
	UserEmail     string
}

// CreateReservation は座席を確保して確定済みの予約を作成する
func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*ReservationView, error) {
	if input.NumberOfSeats <= 0 {
		return nil, reservation.ErrInvalidNumberOfSeats
	}

	u, err := s.userRepo.GetByEmail(ctx, user.NormalizeEmail(input.UserEmail))
	if err != nil {
		s.countReservation(err)
		return nil, err
	}

	var (
		res *reservation.Reservation
		ev  *event.Event
	)
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		e, err := s.lockEvent(ctx, tx, input.EventID)
		if err != nil {
			return err
		}

		if !e.HasAvailableSeats(input.NumberOfSeats) {
			return &event.InsufficientSeatsError{Available: e.AvailableSeats, Requested: input.NumberOfSeats}
		}
		if err := e.ReserveSeats(input.NumberOfSeats); err != nil {
			logger.Error("在庫確認後の座席確保に失敗しました",
				zap.Int64("event_id", e.ID),
				zap.Int("requested", input.NumberOfSeats),
				zap.Int("available", e.AvailableSeats),
				zap.Error(err),
			)
			return err
		}
		if err := s.eventRepo.UpdateInventory(ctx, tx, e); err != nil {
			return err
		}

		r, err := s.insertWithUniqueCode(ctx, tx, u.ID, e, input.NumberOfSeats)
		if err != nil {
			return err
		}
		res, ev = r, e
		return nil
	})
	s.countReservation(err)
	if err != nil {
		logFailure("予約作成に失敗しました", err,
			zap.Int64("event_id", input.EventID),
			zap.Int("seats", input.NumberOfSeats),
		)
		return nil, err
	}

	logger.Info("予約を作成しました",
		zap.String("code", res.Code),
		zap.Int64("event_id", ev.ID),
		zap.Int64("user_id", u.ID),
		zap.Int("seats", res.NumberOfSeats),
		zap.Int("available", ev.AvailableSeats),
	)
	s.afterCommit(ctx, KeyReservationConfirmed, res, ev.Version)
	return newReservationView(res, ev, u.FullName()), nil
}

// insertWithUniqueCode はコード衝突時に新しいコードで再挿入する
func (s *ReservationService) insertWithUniqueCode(ctx context.Context, tx transaction.Tx, userID int64, e *event.Event, seats int) (*reservation.Reservation, error) {
	now := s.clock.Now()
	for attempt := 1; attempt <= reservation.MaxCodeAttempts; attempt++ {
		r := reservation.NewReservation(userID, e.ID, seats, e.Price, s.codes.Generate(now), now)
		if err := r.Validate(); err != nil {
			return nil, err
		}
		err := s.reservationRepo.Create(ctx, tx, r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, reservation.ErrDuplicateCode) {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.CodeCollisions.Inc()
		}
		logger.Warn("予約コードが衝突しました", zap.String("code", r.Code), zap.Int("attempt", attempt))
	}

	logger.Error("予約コードの生成が上限回数に達しました", zap.Int("attempts", reservation.MaxCodeAttempts))
	return nil, fmt.Errorf("%w: %w", transaction.ErrConcurrencyConflict, reservation.ErrCodeGenerationExhausted)
}

// CancelReservation は予約をキャンセルし、座席を在庫に戻す
// ロック順は予約行 → イベント行。作成はイベント行のみをロックするため循環しない
func (s *ReservationService) CancelReservation(ctx context.Context, code, callerEmail string) (*ReservationView, error) {
	if !reservation.IsWellFormed(code) {
		s.countCancellation(reservation.ErrReservationNotFound)
		return nil, reservation.ErrReservationNotFound
	}

	var (
		res    *reservation.Reservation
		ev     *event.Event
		caller *user.User
	)
	err := transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		r, err := s.reservationRepo.GetByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}

		u, err := s.userRepo.GetByEmail(ctx, user.NormalizeEmail(callerEmail))
		if err != nil {
			return err
		}
		if !r.IsOwnedBy(u.ID) {
			logger.Warn("予約の所有者以外がキャンセルを試みました",
				zap.String("code", code),
				zap.Int64("caller_id", u.ID),
				zap.Int64("owner_id", r.UserID),
			)
			return reservation.ErrUnauthorized
		}
		if err := r.Cancel(); err != nil {
			return err
		}

		e, err := s.lockEvent(ctx, tx, r.EventID)
		if err != nil {
			return err
		}
		clamped, err := e.ReleaseSeats(r.NumberOfSeats)
		if err != nil {
			return err
		}
		if clamped > 0 {
			logger.Error("解放する座席数が総座席数を超えたため切り詰めました",
				zap.Int64("event_id", e.ID),
				zap.String("code", r.Code),
				zap.Int("clamped", clamped),
			)
			if s.metrics != nil {
				s.metrics.SeatReleaseClamped.Add(float64(clamped))
			}
		}
		if err := s.eventRepo.UpdateInventory(ctx, tx, e); err != nil {
			return err
		}
		if err := s.reservationRepo.UpdateStatus(ctx, tx, r); err != nil {
			return err
		}
		res, ev, caller = r, e, u
		return nil
	})
	s.countCancellation(err)
	if err != nil {
		logFailure("予約キャンセルに失敗しました", err, zap.String("code", code))
		return nil, err
	}

	logger.Info("予約をキャンセルしました",
		zap.String("code", res.Code),
		zap.Int64("event_id", ev.ID),
		zap.Int("released", res.NumberOfSeats),
		zap.Int("available", ev.AvailableSeats),
	)
	s.afterCommit(ctx, KeyReservationCancelled, res, ev.Version)
	return newReservationView(res, ev, caller.FullName()), nil
}

// lockEvent はイベント行のロックを取得し、待ち時間を記録する
func (s *ReservationService) lockEvent(ctx context.Context, tx transaction.Tx, eventID int64) (*event.Event, error) {
	start := time.Now()
	e, err := s.eventRepo.GetForUpdate(ctx, tx, eventID)
	if s.metrics != nil {
		s.metrics.EventLockWait.Observe(time.Since(start).Seconds())
	}
	return e, err
}

// afterCommit はコミット後の副作用を実行する。失敗しても予約結果には影響させない
// version はコミット後のイベント在庫のバージョン
func (s *ReservationService) afterCommit(ctx context.Context, key string, r *reservation.Reservation, version int64) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, r.EventID, version); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Int64("event_id", r.EventID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		msg := ReservationMessage{
			Code:          r.Code,
			EventID:       r.EventID,
			UserID:        r.UserID,
			NumberOfSeats: r.NumberOfSeats,
			TotalPrice:    r.TotalPrice,
			Status:        string(r.Status),
			OccurredAt:    s.clock.Now(),
		}
		if err := s.publisher.PublishJSON(ctx, key, msg); err != nil {
			logger.Warn("予約イベントの通知に失敗しました", zap.String("key", key), zap.String("code", r.Code), zap.Error(err))
		}
	}
}

// GetReservationByCode は予約コードから予約を取得する
// 形式が不正なコードはストアを引かずに見つからない扱いにする
func (s *ReservationService) GetReservationByCode(ctx context.Context, code string) (*ReservationView, error) {
	if !reservation.IsWellFormed(code) {
		return nil, reservation.ErrReservationNotFound
	}
	r, err := s.reservationRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	views, err := s.project(ctx, []*reservation.Reservation{r})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// GetUserReservations はユーザーIDから予約一覧を新しい順に取得する
func (s *ReservationService) GetUserReservations(ctx context.Context, userID int64) ([]*ReservationView, error) {
	list, err := s.reservationRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, list)
}

// GetUserReservationsByEmail はメールアドレスから予約一覧を取得する
func (s *ReservationService) GetUserReservationsByEmail(ctx context.Context, email string) ([]*ReservationView, error) {
	u, err := s.userRepo.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return s.GetUserReservations(ctx, u.ID)
}

// project は予約にイベントと予約者名を付与する
func (s *ReservationService) project(ctx context.Context, list []*reservation.Reservation) ([]*ReservationView, error) {
	events := make(map[int64]*event.Event)
	names := make(map[int64]string)

	views := make([]*ReservationView, 0, len(list))
	for _, r := range list {
		e, ok := events[r.EventID]
		if !ok {
			var err error
			e, err = s.eventRepo.GetByID(ctx, r.EventID)
			if err != nil {
				return nil, fmt.Errorf("予約 %s のイベント取得に失敗: %w", r.Code, err)
			}
			events[r.EventID] = e
		}
		name, ok := names[r.UserID]
		if !ok {
			u, err := s.userRepo.GetByID(ctx, r.UserID)
			if err != nil {
				return nil, fmt.Errorf("予約 %s のユーザー取得に失敗: %w", r.Code, err)
			}
			name = u.FullName()
			names[r.UserID] = name
		}
		views = append(views, newReservationView(r, e, name))
	}
	return views, nil
}

func (s *ReservationService) countReservation(err error) {
	if s.metrics != nil {
		s.metrics.ReservationsTotal.WithLabelValues(outcome(err)).Inc()
	}
}

func (s *ReservationService) countCancellation(err error) {
	if s.metrics != nil {
		s.metrics.CancellationsTotal.WithLabelValues(outcome(err)).Inc()
	}
}

// logFailure は競合を warn、業務エラー以外を error で記録する
func logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case transaction.IsConflict(err):
		logger.Warn(msg, fields...)
	case !isBusinessError(err):
		logger.Error(msg, fields...)
	}
}

// outcome はエラーをメトリクスのラベルに分類する
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, event.ErrInsufficientSeats):
		return metrics.StatusInsufficientSeats
	case transaction.IsConflict(err):
		return metrics.StatusConflict
	case isBusinessError(err):
		return metrics.StatusRejected
	}
	return metrics.StatusError
}

// isBusinessError は呼び出し側に返すべき業務上の結果かを返す
func isBusinessError(err error) bool {
	for _, target := range []error{
		event.ErrEventNotFound,
		event.ErrInsufficientSeats,
		reservation.ErrReservationNotFound,
		reservation.ErrAlreadyCancelled,
		reservation.ErrUnauthorized,
		reservation.ErrInvalidNumberOfSeats,
		user.ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
