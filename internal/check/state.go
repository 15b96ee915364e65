package check

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrScanNotFound 指定的扫描不存在或状态已过期
var ErrScanNotFound = errors.New("check: scan not found")

// StateStore 扫描状态的持久化。每步结束后整体写回，
// 这样反复的 HTTP 轮询可以落在任意实例上继续同一个扫描。
type StateStore interface {
	Save(ctx context.Context, state *ScanState) error
	Load(ctx context.Context, scanID string) (*ScanState, error)
}

type redisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStateStore 基于 Redis 的状态存储；ttl<=0 时默认 24h。
func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) StateStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisStateStore{rdb: rdb, ttl: ttl}
}

func scanKey(id string) string { return "broadcast:scan:" + id }

func (s *redisStateStore) Save(ctx context.Context, state *ScanState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, scanKey(state.ID), data, s.ttl).Err()
}

func (s *redisStateStore) Load(ctx context.Context, scanID string) (*ScanState, error) {
	data, err := s.rdb.Get(ctx, scanKey(scanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, err
	}
	var state ScanState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("check: decode scan state: %w", err)
	}
	return &state, nil
}
