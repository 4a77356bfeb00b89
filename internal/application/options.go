package application

import (
	"context"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/clock"
	"github.com/sanosuguru/go-event-seat-booking/internal/pkg/metrics"
)

// AvailabilityCache は空席数の表示用キャッシュ
// Set と Invalidate は在庫のバージョンを受け取り、より新しいバージョンの状態を古い値で上書きしない
type AvailabilityCache interface {
	Get(ctx context.Context, eventID int64) (int, error)
	Set(ctx context.Context, eventID, version int64, available int) error
	Invalidate(ctx context.Context, eventID, version int64) error
	IsMiss(err error) bool
}

// Publisher はコミット済みの予約イベントを外部に通知する
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// deps はサービス共通の任意依存
type deps struct {
	cache     AvailabilityCache
	publisher Publisher
	metrics   *metrics.Metrics
	clock     clock.Clock
	codes     reservation.CodeGenerator
}

// Option はサービスの任意依存を設定する
type Option func(*deps)

func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(d *deps) { d.cache = c }
}

func WithPublisher(p Publisher) Option {
	return func(d *deps) { d.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(d *deps) { d.clock = c }
}

func WithCodeGenerator(g reservation.CodeGenerator) Option {
	return func(d *deps) { d.codes = g }
}

func newDeps(opts []Option) deps {
	d := deps{
		clock: clock.NewSystem(),
		codes: reservation.NewCodeGenerator(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
