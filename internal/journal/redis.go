package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/domain"
)

const (
	ttlMatch      = 30 * 24 * time.Hour
	defaultRecent = 20
	keyRecent     = "fc:matches:recent"
	keyStats      = "fc:matches:stats"
	fieldTotal    = "total"
)

// RedisStore keeps each match as JSON, a capped recent list and per-reason
// counters.
type RedisStore struct {
	rdb    *redis.Client
	recent int
}

// NewRedisStore connects and pings.
func NewRedisStore(ctx context.Context, redisURL string, recent int) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for the journal")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreFromClient(rdb, recent), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, recent int) *RedisStore {
	if recent <= 0 {
		recent = defaultRecent
	}
	return &RedisStore{rdb: rdb, recent: recent}
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keyMatch(id string) string { return "fc:match:" + strings.TrimSpace(id) }

func (s *RedisStore) SaveMatch(ctx context.Context, rec domain.MatchRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("match id required")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	reason := rec.EndReason
	if reason == "" {
		reason = domain.EndError
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyMatch(rec.ID), raw, ttlMatch)
	pipe.LRem(ctx, keyRecent, 0, rec.ID)
	pipe.LPush(ctx, keyRecent, rec.ID)
	pipe.LTrim(ctx, keyRecent, 0, int64(s.recent-1))
	pipe.HIncrBy(ctx, keyStats, fieldTotal, 1)
	pipe.HIncrBy(ctx, keyStats, reason, 1)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadMatch returns nil when the match is unknown or expired.
func (s *RedisStore) LoadMatch(ctx context.Context, id string) (*domain.MatchRecord, error) {
	raw, err := s.rdb.Get(ctx, keyMatch(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec domain.MatchRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentMatches lists up to n matches, newest first. Expired entries are skipped.
func (s *RedisStore) RecentMatches(ctx context.Context, n int) ([]domain.MatchRecord, error) {
	if n <= 0 || n > s.recent {
		n = s.recent
	}
	ids, err := s.rdb.LRange(ctx, keyRecent, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.MatchRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.LoadMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *RedisStore) Stats(ctx context.Context) (domain.MatchStats, error) {
	fields, err := s.rdb.HGetAll(ctx, keyStats).Result()
	if err != nil {
		return domain.MatchStats{}, err
	}
	st := domain.MatchStats{ByReason: make(map[string]int64, len(fields))}
	for k, v := range fields {
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			continue
		}
		if k == fieldTotal {
			st.Total = n
			continue
		}
		st.ByReason[k] = n
	}
	return st, nil
}
