package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 予約結果のラベル値
const (
	StatusSuccess           = "success"
	StatusInsufficientSeats = "insufficient_seats"
	StatusConflict          = "conflict"
	StatusRejected          = "rejected"
	StatusError             = "error"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約の総数（status: success, insufficient_seats, conflict, rejected, error）
	ReservationsTotal *prometheus.CounterVec

	// キャンセルの総数（status: success, conflict, rejected, error）
	CancellationsTotal *prometheus.CounterVec

	// イベント行ロックの待ち時間
	EventLockWait prometheus.Histogram

	// 上限で切り詰められた座席解放の回数
	SeatReleaseClamped prometheus.Counter

	// 予約コード衝突の回数
	CodeCollisions prometheus.Counter

	// 在庫監査で不整合が見つかったイベント数（最新の監査結果）
	InventoryDriftEvents prometheus.Gauge

	// 空席数キャッシュの参照結果（result: hit, miss, error）
	AvailabilityCache *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation attempts by outcome",
			},
			[]string{"status"},
		),
		CancellationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cancellations_total",
				Help: "Total number of cancellation attempts by outcome",
			},
			[]string{"status"},
		),
		EventLockWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "event_lock_wait_seconds",
				Help:    "Time spent waiting for the per-event row lock",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		SeatReleaseClamped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seat_release_clamped_total",
				Help: "Seat releases that would have exceeded total seats",
			},
		),
		CodeCollisions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reservation_code_collisions_total",
				Help: "Reservation code collisions detected on insert",
			},
		),
		InventoryDriftEvents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inventory_drift_events",
				Help: "Events whose confirmed seats disagree with their inventory in the last audit",
			},
		),
		AvailabilityCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "availability_cache_requests_total",
				Help: "Availability cache lookups by result",
			},
			[]string{"result"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.CancellationsTotal,
		m.EventLockWait,
		m.SeatReleaseClamped,
		m.CodeCollisions,
		m.InventoryDriftEvents,
		m.AvailabilityCache,
		m.DistributedLockDuration,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
