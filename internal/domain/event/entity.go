package event

import "time"

// Event はイベントエンティティを表す
// 座席は個別に管理せず、総座席数と空席数のカウンタで在庫を表現する
type Event struct {
	ID             int64
	Name           string
	Description    string
	EventDate      time.Time
	TotalSeats     int
	AvailableSeats int
	Price          float64
	Category       string
	ImageURL       string
	CreatedAt      time.Time
	Version        int64 // 楽観的ロック用
}

// NewEvent は新しいイベントを作成する（空席数 = 総座席数）
func NewEvent(name, description string, eventDate time.Time, totalSeats int, price float64, category, imageURL string, now time.Time) *Event {
	return &Event{
		Name:           name,
		Description:    description,
		EventDate:      eventDate,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		Price:          price,
		Category:       category,
		ImageURL:       imageURL,
		CreatedAt:      now,
		Version:        0,
	}
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Name == "" {
		return ErrEventNameRequired
	}
	if e.EventDate.IsZero() {
		return ErrEventDateRequired
	}
	if e.TotalSeats <= 0 {
		return ErrInvalidTotalSeats
	}
	if e.Price < 0 {
		return ErrInvalidPrice
	}
	if e.AvailableSeats < 0 || e.AvailableSeats > e.TotalSeats {
		return ErrInvalidAvailableSeats
	}
	return nil
}

// HasAvailableSeats は n 席を確保できるかを返す
func (e *Event) HasAvailableSeats(n int) bool {
	return n <= e.AvailableSeats
}

// ReserveSeats は空席数を n 減らす
// 呼び出し側はロック下で HasAvailableSeats を確認済みでなければならない
func (e *Event) ReserveSeats(n int) error {
	if n <= 0 || !e.HasAvailableSeats(n) {
		return ErrInsufficientCapacity
	}
	e.AvailableSeats -= n
	return nil
}

// ReleaseSeats は空席数を n 戻す。総座席数を超える分は切り捨て、その席数を返す
// 正常系では常に0になる。0以外は二重解放などの不整合を意味する
// n が0以下のときは空席数を変えずに ErrInsufficientCapacity を返す
func (e *Event) ReleaseSeats(n int) (clamped int, err error) {
	if n <= 0 {
		return 0, ErrInsufficientCapacity
	}
	next := e.AvailableSeats + n
	if next > e.TotalSeats {
		clamped = next - e.TotalSeats
		next = e.TotalSeats
	}
	e.AvailableSeats = next
	return clamped, nil
}

// ReservedSeats は確保済みの座席数を返す
func (e *Event) ReservedSeats() int {
	return e.TotalSeats - e.AvailableSeats
}

// IsUpcoming はイベントが now より後に開催され、空席があるかを返す
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.EventDate.After(now) && e.AvailableSeats > 0
}

// InventoryAudit はイベント単位の在庫整合性チェック結果
type InventoryAudit struct {
	EventID        int64
	TotalSeats     int
	AvailableSeats int
	ConfirmedSeats int
}

// Drift は確定済み予約の座席合計と在庫カウンタの差を返す（0なら整合）
func (a InventoryAudit) Drift() int {
	return a.ConfirmedSeats - (a.TotalSeats - a.AvailableSeats)
}
