package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * 24 * time.Hour

// RedisStore keeps each user's list under recent_recommendations:<user id>,
// newest first, trimmed to limit entries and expiring after ttl.
type RedisStore struct {
	rdb   *goredis.Client
	limit int
	ttl   time.Duration
}

// NewRedisStore connects and pings addr.
func NewRedisStore(ctx context.Context, addr string, limit int, ttl time.Duration) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStore(rdb, limit, ttl), nil
}

func newRedisStore(rdb *goredis.Client, limit int, ttl time.Duration) *RedisStore {
	if limit <= 0 {
		limit = 20
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, limit: limit, ttl: ttl}
}

func key(userID uuid.UUID) string {
	return "recent_recommendations:" + userID.String()
}

func (s *RedisStore) Push(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	k := key(userID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, id := range ids {
			pipe.LRem(ctx, k, 0, id.String())
			pipe.LPush(ctx, k, id.String())
		}
		pipe.LTrim(ctx, k, 0, int64(s.limit-1))
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push recent recommendations: %w", err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	raw, err := s.rdb.LRange(ctx, key(userID), 0, int64(s.limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent recommendations: %w", err)
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			slog.Warn("dropping malformed recent recommendation id", "value", v)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
