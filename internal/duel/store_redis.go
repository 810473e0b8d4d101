package duel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = time.Hour

// RedisStore keeps live sessions as JSON under duel:session:<id>.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string { return "duel:session:" + strings.TrimSpace(id) }

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save applies optimistic concurrency: WATCH the key, compare versions, write in MULTI.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	key := sessionKey(s.ID)
	next := *s
	next.Version = s.Version + 1
	raw, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var stored struct {
				Version int64 `json:"version"`
			}
			if jerr := json.Unmarshal(cur, &stored); jerr != nil {
				return jerr
			}
			if stored.Version != s.Version {
				return ErrVersionConflict
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, r.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	if err != nil {
		return err
	}
	s.Version = next.Version
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, sessionKey(id)).Err()
}
