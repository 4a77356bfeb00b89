// Package memory はリレーショナルストアと同じロック契約を持つインメモリ実装を提供する。
// 行ロックはトランザクション終了まで保持され、待ち時間には上限がある。
// 書き込みはコミット時にまとめて反映される。
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/reservation"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
)

// DefaultLockTimeout は行ロック待ちの既定の上限
const DefaultLockTimeout = 5 * time.Second

var (
	ErrTxDone    = errors.New("トランザクションは既に終了しています")
	ErrForeignTx = errors.New("インメモリストアのトランザクションではありません")
)

// Store はコミット済みの状態と行ロックを保持する
type Store struct {
	mu          sync.Mutex
	lockTimeout time.Duration

	events       map[int64]*event.Event
	reservations map[int64]*reservation.Reservation
	users        map[int64]*user.User

	// codes は予約コードから予約IDへの対応。未コミットの確保は claimed に入る
	codes   map[string]int64
	claimed map[string]struct{}
	emails  map[string]int64

	locks map[string]*rowLock

	nextEventID       int64
	nextReservationID int64
	nextUserID        int64
}

// Option は Store の設定を変更する
type Option func(*Store)

// WithLockTimeout は行ロック待ちの上限を設定する
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// NewStore は空のストアを作成する
func NewStore(opts ...Option) *Store {
	s := &Store{
		lockTimeout:  DefaultLockTimeout,
		events:       make(map[int64]*event.Event),
		reservations: make(map[int64]*reservation.Reservation),
		users:        make(map[int64]*user.User),
		codes:        make(map[string]int64),
		claimed:      make(map[string]struct{}),
		emails:       make(map[string]int64),
		locks:        make(map[string]*rowLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin は新しいトランザクションを開始する
func (s *Store) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:         s,
		held:          make(map[string]*rowLock),
		events:        make(map[int64]*event.Event),
		statusUpdates: make(map[int64]reservation.Status),
		newByCode:     make(map[string]*reservation.Reservation),
	}, nil
}

// rowLock は1行分のロック。refs は保持者と待機者の数で、0になるとマップから外す
type rowLock struct {
	ch   chan struct{}
	refs int
}

func (s *Store) lockFor(key string) *rowLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l
}

func (s *Store) unref(key string, l *rowLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 && s.locks[key] == l {
		delete(s.locks, key)
	}
}

// acquire は行ロックを取得する。同じトランザクションが保持済みなら即座に戻る
func (s *Store) acquire(ctx context.Context, tx *Tx, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	l := s.lockFor(key)

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		tx.held[key] = l
		return nil
	case <-timer.C:
		s.unref(key, l)
		return fmt.Errorf("%w: %s のロック待ちがタイムアウトしました", transaction.ErrConcurrencyConflict, key)
	case <-ctx.Done():
		s.unref(key, l)
		return ctx.Err()
	}
}

func eventKey(id int64) string {
	return fmt.Sprintf("event:%d", id)
}

func reservationKey(code string) string {
	return "reservation:" + code
}

// Tx はインメモリストアのトランザクション
type Tx struct {
	store *Store
	held  map[string]*rowLock

	events        map[int64]*event.Event
	created       []*reservation.Reservation
	newByCode     map[string]*reservation.Reservation
	statusUpdates map[int64]reservation.Status

	done bool
}

// Commit は保留中の書き込みを反映してロックを解放する
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	for id, e := range t.events {
		s.events[id] = e
	}
	for _, r := range t.created {
		s.reservations[r.ID] = r
		s.codes[r.Code] = r.ID
		delete(s.claimed, r.Code)
	}
	for id, status := range t.statusUpdates {
		if r, ok := s.reservations[id]; ok {
			r.Status = status
		}
	}
	s.mu.Unlock()

	t.release()
	return nil
}

// Rollback は保留中の書き込みを破棄してロックを解放する
func (t *Tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	for _, r := range t.created {
		delete(s.claimed, r.Code)
	}
	s.mu.Unlock()

	t.release()
	return nil
}

func (t *Tx) release() {
	for key, l := range t.held {
		<-l.ch
		t.store.unref(key, l)
		delete(t.held, key)
	}
}

func unwrapTx(tx transaction.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, ErrForeignTx
	}
	if t.done {
		return nil, ErrTxDone
	}
	return t, nil
}

func copyEvent(e *event.Event) *event.Event {
	c := *e
	return &c
}

func copyReservation(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	return &c
}

func copyUser(u *user.User) *user.User {
	c := *u
	return &c
}

var _ transaction.Manager = (*Store)(nil)
