package scanner

import (
	"context"
	"time"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/logger"
	"github.com/jorseph/tw-stock/pkg/redis"
)

// RedisCheckpointStore persists scan progress in Redis so an
// interrupted scan can resume from the last batch boundary.
type RedisCheckpointStore struct {
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisCheckpointStore creates a checkpoint store backed by Redis
func NewRedisCheckpointStore(cache *redis.Cache, ttl time.Duration, log *logger.Logger) *RedisCheckpointStore {
	return &RedisCheckpointStore{
		cache:  cache,
		ttl:    ttl,
		logger: log.WithField("module", "checkpoint"),
	}
}

// LoadProgress returns the stored checkpoint, or nil when none exists.
// 壞掉的 checkpoint 當作不存在，從頭掃。
func (s *RedisCheckpointStore) LoadProgress(ctx context.Context) (*contracts.ScanProgress, error) {
	var progress contracts.ScanProgress
	found, err := s.cache.Get(ctx, redis.ScanProgressKey(), &progress)
	if err != nil {
		s.logger.WithError(err).Warn("Checkpoint unreadable, discarding")
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	return &progress, nil
}

// SaveProgress stores the checkpoint with the configured TTL
func (s *RedisCheckpointStore) SaveProgress(ctx context.Context, progress *contracts.ScanProgress) error {
	return s.cache.Set(ctx, redis.ScanProgressKey(), progress, s.ttl)
}

// ClearProgress removes the checkpoint after a completed scan
func (s *RedisCheckpointStore) ClearProgress(ctx context.Context) error {
	return s.cache.Delete(ctx, redis.ScanProgressKey())
}
