package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

const eventColumns = `id, name, description, event_date, total_seats, available_seats, price, category, image_url, created_at, version`

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	Description    *string   `db:"description"`
	EventDate      time.Time `db:"event_date"`
	TotalSeats     int       `db:"total_seats"`
	AvailableSeats int       `db:"available_seats"`
	Price          float64   `db:"price"`
	Category       *string   `db:"category"`
	ImageURL       *string   `db:"image_url"`
	CreatedAt      time.Time `db:"created_at"`
	Version        int64     `db:"version"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:             r.ID,
		Name:           r.Name,
		Description:    deref(r.Description),
		EventDate:      r.EventDate,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		Price:          r.Price,
		Category:       deref(r.Category),
		ImageURL:       deref(r.ImageURL),
		CreatedAt:      r.CreatedAt,
		Version:        r.Version,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (name, description, event_date, total_seats, available_seats, price, category, image_url, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		e.Name, nullable(e.Description), e.EventDate, e.TotalSeats, e.AvailableSeats,
		e.Price, nullable(e.Category), nullable(e.ImageURL), e.CreatedAt, e.Version,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List はイベント一覧を取得する
func (r *EventRepository) List(ctx context.Context) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY event_date ASC, id ASC`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

// ListUpcoming は開催前で空席のあるイベントを取得する
func (r *EventRepository) ListUpcoming(ctx context.Context, now time.Time) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE event_date > $1 AND available_seats > 0
		ORDER BY event_date ASC, id ASC
	`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("開催予定イベント取得に失敗しました: %w", err)
	}
	return toEvents(rows), nil
}

func toEvents(rows []eventRow) []*event.Event {
	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events
}

// GetForUpdate は SELECT ... FOR UPDATE でイベント行をロックして取得する
// 同じイベントへの他のトランザクションはコミットかロールバックまで待たされる
func (r *EventRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*event.Event, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	var row eventRow
	if err := sqlTx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, wrapError(err, "イベントのロック取得に失敗しました")
	}
	return row.toEntity(), nil
}

// UpdateInventory は空席数を更新する（楽観的ロック）
func (r *EventRepository) UpdateInventory(ctx context.Context, tx transaction.Tx, e *event.Event) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE events
		SET available_seats = $1, version = version + 1
		WHERE id = $2 AND version = $3
	`
	result, err := sqlTx.ExecContext(ctx, query, e.AvailableSeats, e.ID, e.Version)
	if err != nil {
		if code, ok := pqCode(err); ok && code == codeCheckViolation {
			return fmt.Errorf("%w: %v", event.ErrInsufficientCapacity, err)
		}
		return wrapError(err, "在庫更新に失敗しました")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %w", transaction.ErrConcurrencyConflict, event.ErrOptimisticLockConflict)
	}

	e.Version++
	return nil
}

// AuditInventory は全イベントの在庫と確定済み座席数を1つのクエリで取得する
// 単一の文は1つのスナップショットで評価されるため、集計と在庫カウンタは同時点の値になる
func (r *EventRepository) AuditInventory(ctx context.Context) ([]event.InventoryAudit, error) {
	query := `
		SELECT e.id, e.total_seats, e.available_seats,
		       COALESCE(SUM(r.number_of_seats) FILTER (WHERE r.status = 'CONFIRMED'), 0) AS confirmed_seats
		FROM events e
		LEFT JOIN reservations r ON r.event_id = e.id
		GROUP BY e.id
		ORDER BY e.id
	`

	var rows []struct {
		ID             int64 `db:"id"`
		TotalSeats     int   `db:"total_seats"`
		AvailableSeats int   `db:"available_seats"`
		ConfirmedSeats int   `db:"confirmed_seats"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("在庫監査クエリに失敗しました: %w", err)
	}

	audits := make([]event.InventoryAudit, len(rows))
	for i, row := range rows {
		audits[i] = event.InventoryAudit{
			EventID:        row.ID,
			TotalSeats:     row.TotalSeats,
			AvailableSeats: row.AvailableSeats,
			ConfirmedSeats: row.ConfirmedSeats,
		}
	}
	return audits, nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
