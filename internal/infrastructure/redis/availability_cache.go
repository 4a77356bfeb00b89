package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// キャッシュはハッシュで持つ。v は在庫のバージョン、n は空席数
// 保存済みのバージョンより古い値は書き込まない
var setScript = redis.NewScript(`
	local cur = tonumber(redis.call("HGET", KEYS[1], "v"))
	if cur and cur > tonumber(ARGV[1]) then
		return 0
	end
	redis.call("HSET", KEYS[1], "v", ARGV[1], "n", ARGV[2])
	redis.call("PEXPIRE", KEYS[1], ARGV[3])
	return 1
`)

// 無効化は空席数だけを消し、バージョンを墓標として残す
var invalidateScript = redis.NewScript(`
	local cur = tonumber(redis.call("HGET", KEYS[1], "v"))
	if cur and cur > tonumber(ARGV[1]) then
		return 0
	end
	redis.call("HSET", KEYS[1], "v", ARGV[1])
	redis.call("HDEL", KEYS[1], "n")
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
`)

// AvailabilityCache はイベントの空席数を短時間キャッシュする
// 値は表示用の目安で、予約の可否は常に行ロック下の在庫で判定する
// 無効化の墓標もTTLで消えるため、TTLより長く遅れた書き込みは防げない
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

// Get はイベントの空席数をキャッシュから取得する
func (c *AvailabilityCache) Get(ctx context.Context, eventID int64) (int, error) {
	val, err := c.client.HGet(ctx, availabilityKey(eventID), "n").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// Set は version 時点の空席数をキャッシュに保存する
// より新しいバージョンが保存済みか無効化済みなら何もしない
func (c *AvailabilityCache) Set(ctx context.Context, eventID, version int64, available int) error {
	err := setScript.Run(ctx, c.client, []string{availabilityKey(eventID)}, version, available, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は version 以前のキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID, version int64) error {
	err := invalidateScript.Run(ctx, c.client, []string{availabilityKey(eventID)}, version, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

// IsMiss はキャッシュミスかを返す
func (c *AvailabilityCache) IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func availabilityKey(eventID int64) string {
	return fmt.Sprintf("events:%d:availability", eventID)
}
