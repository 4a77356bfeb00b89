package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ストアの実装
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// トランザクション分離レベル
const (
	IsolationReadCommitted = "read_committed"
	IsolationSerializable  = "serializable"
)

// Config はアプリケーション設定を表す
// ネストした項目は envconfig タグではなく split_words で名前を決める。
// タグを付けると接頭辞なしの環境変数（USER, PORT など）にもフォールバックしてしまう
type Config struct {
	Env         string `envconfig:"APP_ENV" default:"development"`
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`

	Server      ServerConfig      `envconfig:"SERVER"`
	Database    DatabaseConfig    `envconfig:"DB"`
	Redis       RedisConfig       `envconfig:"REDIS"`
	RabbitMQ    RabbitMQConfig    `envconfig:"RABBITMQ"`
	Reservation ReservationConfig `envconfig:"RESERVATION"`
	Audit       AuditConfig       `envconfig:"AUDIT"`
	Log         LogConfig         `envconfig:"LOG"`
	Metrics     MetricsConfig     `envconfig:"METRICS"`
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string        `default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"30s"`
	WriteTimeout    time.Duration `split_words:"true" default:"30s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host            string        `default:"localhost"`
	Port            string        `default:"5432"`
	User            string        `default:"postgres"`
	Password        string        `default:"postgres"`
	Name            string        `default:"seat_booking"`
	SSLMode         string        `split_words:"true" default:"disable"`
	MaxOpenConns    int           `split_words:"true" default:"25"`
	MaxIdleConns    int           `split_words:"true" default:"5"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"30m"`
	// LockTimeout は行ロック待ちの上限。超過すると競合エラーになる
	LockTimeout    time.Duration `split_words:"true" default:"5s"`
	Isolation      string        `default:"read_committed"`
	MigrationsPath string        `split_words:"true" default:"migrations"`
	AutoMigrate    bool          `split_words:"true" default:"true"`
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled         bool   `default:"true"`
	Host            string `default:"localhost"`
	Port            string `default:"6379"`
	Password        string
	DB              int           `default:"0"`
	AvailabilityTTL time.Duration `split_words:"true" default:"5s"`
}

// RabbitMQConfig は予約イベント通知の設定。URL が空なら通知しない
type RabbitMQConfig struct {
	URL      string
	Exchange string `default:"reservation.exchange"`
}

// ReservationConfig は予約処理の再試行設定
type ReservationConfig struct {
	ConflictRetries int           `split_words:"true" default:"3"`
	RetryBackoff    time.Duration `split_words:"true" default:"50ms"`
	MaxSeats        int           `split_words:"true" default:"10"`
}

// AuditConfig は在庫監査ワーカーの設定
type AuditConfig struct {
	Enabled  bool          `default:"true"`
	Interval time.Duration `default:"1m"`
	LockTTL  time.Duration `split_words:"true" default:"30s"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string
}

// MetricsConfig は /metrics の Basic 認証設定。両方が設定されている場合のみ認証を要求する
type MetricsConfig struct {
	User     string
	Password string
}

// Load は環境変数から設定を読み込む
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の組み合わせを検証する
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER が不正です: %q", c.StoreDriver)
	}
	switch c.Database.Isolation {
	case IsolationReadCommitted, IsolationSerializable:
	default:
		return fmt.Errorf("DB_ISOLATION が不正です: %q", c.Database.Isolation)
	}
	if c.Database.LockTimeout <= 0 {
		return errors.New("DB_LOCK_TIMEOUT は正の値である必要があります")
	}
	if c.Reservation.ConflictRetries < 1 {
		return errors.New("RESERVATION_CONFLICT_RETRIES は1以上である必要があります")
	}
	if c.Reservation.MaxSeats < 1 {
		return errors.New("RESERVATION_MAX_SEATS は1以上である必要があります")
	}
	if c.Audit.Enabled && c.Audit.Interval <= 0 {
		return errors.New("AUDIT_INTERVAL は正の値である必要があります")
	}
	return nil
}

// IsProduction は本番環境かを返す
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// AuthEnabled は /metrics の認証が有効かを返す
func (c *MetricsConfig) AuthEnabled() bool {
	return c.User != "" && c.Password != ""
}
