package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

const reservationColumns = `id, reservation_code, user_id, event_id, number_of_seats, total_price, status, reservation_date`

type reservationRow struct {
	ID              int64     `db:"id"`
	Code            string    `db:"reservation_code"`
	UserID          int64     `db:"user_id"`
	EventID         int64     `db:"event_id"`
	NumberOfSeats   int       `db:"number_of_seats"`
	TotalPrice      float64   `db:"total_price"`
	Status          string    `db:"status"`
	ReservationDate time.Time `db:"reservation_date"`
}

func (r *reservationRow) toEntity() *reservation.Reservation {
	return &reservation.Reservation{
		ID:              r.ID,
		Code:            r.Code,
		UserID:          r.UserID,
		EventID:         r.EventID,
		NumberOfSeats:   r.NumberOfSeats,
		TotalPrice:      r.TotalPrice,
		Status:          reservation.Status(r.Status),
		ReservationDate: r.ReservationDate,
	}
}

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create は予約を挿入する
// コード衝突は ON CONFLICT DO NOTHING で吸収し、トランザクションを中断させずに ErrDuplicateCode を返す
func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reservations (reservation_code, user_id, event_id, number_of_seats, total_price, status, reservation_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reservation_code) DO NOTHING
		RETURNING id
	`
	err = sqlTx.QueryRowContext(ctx, query,
		res.Code, res.UserID, res.EventID, res.NumberOfSeats, res.TotalPrice, string(res.Status), res.ReservationDate,
	).Scan(&res.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrDuplicateCode
		}
		return wrapError(err, "予約作成に失敗")
	}
	return nil
}

func (r *ReservationRepository) GetByCode(ctx context.Context, code string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_code = $1`
	if err := r.db.GetContext(ctx, &row, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetByCodeForUpdate は予約行をロックして取得する
// 同じ予約への同時キャンセルはここで直列化される
func (r *ReservationRepository) GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*reservation.Reservation, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}

	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_code = $1 FOR UPDATE`
	if err := sqlTx.GetContext(ctx, &row, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, wrapError(err, "予約のロック取得に失敗")
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) GetByUserID(ctx context.Context, userID int64) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY reservation_date DESC, id DESC`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("ユーザー予約一覧取得に失敗: %w", err)
	}

	reservations := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		reservations[i] = rows[i].toEntity()
	}
	return reservations, nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}

	result, err := sqlTx.ExecContext(ctx, `UPDATE reservations SET status = $1 WHERE id = $2`, string(res.Status), res.ID)
	if err != nil {
		return wrapError(err, "予約ステータス更新に失敗")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rowsAffected == 0 {
		return reservation.ErrReservationNotFound
	}
	return nil
}

var _ reservation.Repository = (*ReservationRepository)(nil)
