package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"community_inbox/pkg/logger"
)

// UnreadCacheRepository caches the per-user unread-conversation count that
// backs the inbox badge. It is strictly best-effort: a cache miss or redis
// failure falls through to the database count.
type UnreadCacheRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (int, bool, error)
	Set(ctx context.Context, userID uuid.UUID, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, userIDs ...uuid.UUID) error
}

type unreadCacheRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewUnreadCacheRepository(rdb *redis.Client, log logger.Logger) UnreadCacheRepository {
	return &unreadCacheRepository{redis: rdb, log: log}
}

func unreadKey(userID uuid.UUID) string {
	return fmt.Sprintf("inbox:unread:%s", userID)
}

func (r *unreadCacheRepository) Get(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	count, err := r.redis.Get(ctx, unreadKey(userID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		r.log.Warn("Failed to read unread cache", "error", err, "user_id", userID)
		return 0, false, err
	}
	return count, true, nil
}

func (r *unreadCacheRepository) Set(ctx context.Context, userID uuid.UUID, count int, ttl time.Duration) error {
	if err := r.redis.Set(ctx, unreadKey(userID), count, ttl).Err(); err != nil {
		r.log.Warn("Failed to write unread cache", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (r *unreadCacheRepository) Invalidate(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = unreadKey(id)
	}

	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		r.log.Warn("Failed to invalidate unread cache", "error", err)
		return err
	}
	return nil
}
