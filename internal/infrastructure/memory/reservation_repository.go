package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

// ReservationRepository は予約リポジトリのインメモリ実装
type ReservationRepository struct {
	store *Store
}

func NewReservationRepository(store *Store) *ReservationRepository {
	return &ReservationRepository{store: store}
}

// Create は予約コードを確保して保留中の予約に加える
// 他のトランザクションが確保中のコードも重複として扱う
func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	t, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[res.Code]; ok {
		return reservation.ErrDuplicateCode
	}
	if _, ok := s.claimed[res.Code]; ok {
		return reservation.ErrDuplicateCode
	}
	if _, ok := s.events[res.EventID]; !ok {
		return fmt.Errorf("予約作成に失敗: イベント %d が存在しません", res.EventID)
	}
	if _, ok := s.users[res.UserID]; !ok {
		return fmt.Errorf("予約作成に失敗: ユーザー %d が存在しません", res.UserID)
	}

	s.claimed[res.Code] = struct{}{}
	s.nextReservationID++
	res.ID = s.nextReservationID

	c := copyReservation(res)
	t.created = append(t.created, c)
	t.newByCode[c.Code] = c
	return nil
}

func (r *ReservationRepository) GetByCode(ctx context.Context, code string) (*reservation.Reservation, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codes[code]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return copyReservation(s.reservations[id]), nil
}

// GetByCodeForUpdate は予約行のロックを取得してから読み込む
func (r *ReservationRepository) GetByCodeForUpdate(ctx context.Context, tx transaction.Tx, code string) (*reservation.Reservation, error) {
	t, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	if own, ok := t.newByCode[code]; ok {
		return copyReservation(own), nil
	}
	if _, err := r.GetByCode(ctx, code); err != nil {
		return nil, err
	}
	if err := r.store.acquire(ctx, t, reservationKey(code)); err != nil {
		return nil, err
	}

	// ロック待ちの間に他のトランザクションがコミットした状態を読み直す
	res, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if status, ok := t.statusUpdates[res.ID]; ok {
		res.Status = status
	}
	return res, nil
}

func (r *ReservationRepository) GetByUserID(ctx context.Context, userID int64) ([]*reservation.Reservation, error) {
	s := r.store
	s.mu.Lock()
	list := make([]*reservation.Reservation, 0)
	for _, res := range s.reservations {
		if res.UserID == userID {
			list = append(list, copyReservation(res))
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].ReservationDate.Equal(list[j].ReservationDate) {
			return list[i].ID > list[j].ID
		}
		return list[i].ReservationDate.After(list[j].ReservationDate)
	})
	return list, nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	t, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if own, ok := t.newByCode[res.Code]; ok {
		own.Status = res.Status
		return nil
	}
	if _, err := r.GetByCode(ctx, res.Code); err != nil {
		return err
	}
	if err := r.store.acquire(ctx, t, reservationKey(res.Code)); err != nil {
		return err
	}
	t.statusUpdates[res.ID] = res.Status
	return nil
}

var _ reservation.Repository = (*ReservationRepository)(nil)
