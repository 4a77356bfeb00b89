package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/logger"
)

type EventService struct {
	deps
	eventRepo event.Repository
}

func NewEventService(eventRepo event.Repository, opts ...Option) *EventService {
	return &EventService{deps: newDeps(opts), eventRepo: eventRepo}
}

type CreateEventInput struct {
	Name        string
	Description string
	EventDate   time.Time
	TotalSeats  int
	Price       float64
	Category    string
	ImageURL    string
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Name, input.Description, input.EventDate, input.TotalSeats, input.Price, input.Category, input.ImageURL, s.clock.Now())
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	logger.Info("イベントを作成しました", zap.Int64("event_id", e.ID), zap.Int("total_seats", e.TotalSeats))
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id int64) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context) ([]*event.Event, error) {
	return s.eventRepo.List(ctx)
}

// ListUpcomingEvents は現在時刻より後に開催され、空席のあるイベントを開催日時の昇順で返す
func (s *EventService) ListUpcomingEvents(ctx context.Context) ([]*event.Event, error) {
	return s.eventRepo.ListUpcoming(ctx, s.clock.Now())
}

// Availability はイベントの空席状況
type Availability struct {
	EventID        int64
	AvailableSeats int
	Cached         bool
}

// GetAvailability は空席数をキャッシュ経由で返す
// キャッシュの値は最大TTL分古い可能性がある。予約の可否判定には使わない
func (s *EventService) GetAvailability(ctx context.Context, id int64) (*Availability, error) {
	if s.cache != nil {
		count, err := s.cache.Get(ctx, id)
		if err == nil {
			s.countCache("hit")
			logger.Debug("キャッシュヒット", zap.Int64("event_id", id), zap.Int("count", count))
			return &Availability{EventID: id, AvailableSeats: count, Cached: true}, nil
		}
		if s.cache.IsMiss(err) {
			s.countCache("miss")
		} else {
			s.countCache("error")
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, id, e.Version, e.AvailableSeats); err != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(err))
		}
	}
	return &Availability{EventID: id, AvailableSeats: e.AvailableSeats}, nil
}

func (s *EventService) countCache(result string) {
	if s.metrics != nil {
		s.metrics.AvailabilityCache.WithLabelValues(result).Inc()
	}
}

// AuditReport は在庫監査の結果
type AuditReport struct {
	Checked int
	Drifted []event.InventoryAudit
}

// AuditInventory は確定済み予約の座席合計と在庫カウンタが一致するかを全イベントで確認する
// 不一致は修正せずに記録のみ行う
func (s *EventService) AuditInventory(ctx context.Context) (*AuditReport, error) {
	audits, err := s.eventRepo.AuditInventory(ctx)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Checked: len(audits)}
	for _, a := range audits {
		if a.Drift() != 0 {
			report.Drifted = append(report.Drifted, a)
			logger.Error("在庫の不整合を検出しました",
				zap.Int64("event_id", a.EventID),
				zap.Int("total_seats", a.TotalSeats),
				zap.Int("available_seats", a.AvailableSeats),
				zap.Int("confirmed_seats", a.ConfirmedSeats),
				zap.Int("drift", a.Drift()),
			)
		}
	}
	if s.metrics != nil {
		s.metrics.InventoryDriftEvents.Set(float64(len(report.Drifted)))
	}
	return report, nil
}
