package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
)

// EventRepository はイベントリポジトリのインメモリ実装
type EventRepository struct {
	store *Store
}

func NewEventRepository(store *Store) *EventRepository {
	return &EventRepository{store: store}
}

func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	e.ID = s.nextEventID
	s.events[e.ID] = copyEvent(e)
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (r *EventRepository) List(ctx context.Context) ([]*event.Event, error) {
	return r.filter(func(*event.Event) bool { return true }), nil
}

func (r *EventRepository) ListUpcoming(ctx context.Context, now time.Time) ([]*event.Event, error) {
	return r.filter(func(e *event.Event) bool { return e.IsUpcoming(now) }), nil
}

func (r *EventRepository) filter(keep func(*event.Event) bool) []*event.Event {
	s := r.store
	s.mu.Lock()
	events := make([]*event.Event, 0, len(s.events))
	for _, e := range s.events {
		if keep(e) {
			events = append(events, copyEvent(e))
		}
	}
	s.mu.Unlock()

	sort.Slice(events, func(i, j int) bool {
		if events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].ID < events[j].ID
		}
		return events[i].EventDate.Before(events[j].EventDate)
	})
	return events
}

// GetForUpdate はイベント行のロックを取得してから読み込む
func (r *EventRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id int64) (*event.Event, error) {
	t, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := r.store.acquire(ctx, t, eventKey(id)); err != nil {
		return nil, err
	}
	return r.current(t, id)
}

// current はトランザクション内の保留中の値を優先して返す
func (r *EventRepository) current(t *Tx, id int64) (*event.Event, error) {
	if e, ok := t.events[id]; ok {
		return copyEvent(e), nil
	}
	return r.GetByID(context.Background(), id)
}

// UpdateInventory はバージョンが一致する場合のみ空席数を更新する
func (r *EventRepository) UpdateInventory(ctx context.Context, tx transaction.Tx, e *event.Event) error {
	t, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if err := r.store.acquire(ctx, t, eventKey(e.ID)); err != nil {
		return err
	}

	cur, err := r.current(t, e.ID)
	if err != nil {
		return err
	}
	if cur.Version != e.Version {
		return fmt.Errorf("%w: %w", transaction.ErrConcurrencyConflict, event.ErrOptimisticLockConflict)
	}
	if e.AvailableSeats < 0 || e.AvailableSeats > cur.TotalSeats {
		return fmt.Errorf("%w: 空席数 %d は範囲外です", event.ErrInsufficientCapacity, e.AvailableSeats)
	}

	next := copyEvent(cur)
	next.AvailableSeats = e.AvailableSeats
	next.Version = cur.Version + 1
	t.events[e.ID] = next

	e.Version++
	return nil
}

// AuditInventory はストアのロック下で全イベントを集計する
func (r *EventRepository) AuditInventory(ctx context.Context) ([]event.InventoryAudit, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	confirmed := make(map[int64]int, len(s.events))
	for _, res := range s.reservations {
		if res.IsConfirmed() {
			confirmed[res.EventID] += res.NumberOfSeats
		}
	}

	audits := make([]event.InventoryAudit, 0, len(s.events))
	for id, e := range s.events {
		audits = append(audits, event.InventoryAudit{
			EventID:        id,
			TotalSeats:     e.TotalSeats,
			AvailableSeats: e.AvailableSeats,
			ConfirmedSeats: confirmed[id],
		})
	}
	sort.Slice(audits, func(i, j int) bool { return audits[i].EventID < audits[j].EventID })
	return audits, nil
}

var _ event.Repository = (*EventRepository)(nil)
