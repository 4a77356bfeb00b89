package clock

import (
	"sync"
	"time"
)

// Clock はサービスやテストに時刻を注入するためのインターフェース
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は time.Now を返す Clock を作成する
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed は常に同じ時刻を返す Clock。Set/Advance でテスト中に時刻を進められる
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed は t を返し続ける Clock を作成する
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
