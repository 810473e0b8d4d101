package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyQueue   = "duel:matchmaking:queue"
	keyEntries = "duel:matchmaking:entries"
)

// KEYS[1]=queue list, KEYS[2]=entry hash.
var (
	enqueueScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('RPUSH', KEYS[1], ARGV[1])
return 1
`)

	// returns {id1, entry1, id2, entry2, ...} or an empty table
	formMatchScript = redis.NewScript(`
local n = tonumber(ARGV[1])
if redis.call('LLEN', KEYS[1]) < n then
  return {}
end
local out = {}
for i = 1, n do
  local id = redis.call('LPOP', KEYS[1])
  local raw = redis.call('HGET', KEYS[2], id)
  redis.call('HDEL', KEYS[2], id)
  out[#out + 1] = id
  out[#out + 1] = raw or ''
end
return out
`)

	removeScript = redis.NewScript(`
if redis.call('HDEL', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('LREM', KEYS[1], 0, ARGV[1])
return 1
`)
)

// RedisQueue keeps user ids in a list and their entries in a hash.
type RedisQueue struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, now: time.Now}
}

func (q *RedisQueue) keys() []string { return []string{keyQueue, keyEntries} }

func (q *RedisQueue) Enqueue(ctx context.Context, e QueueEntry) (bool, error) {
	e, err := normalize(e, q.now())
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	added, err := enqueueScript.Run(ctx, q.rdb, q.keys(), e.UserID, raw).Int64()
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", e.UserID, err)
	}
	if added == 0 {
		obslog.L().Info("matchmaking_enqueue_duplicate", zap.String("user_id", e.UserID))
		return false, nil
	}
	obslog.L().Info("matchmaking_enqueue", zap.String("user_id", e.UserID))
	return true, nil
}

func (q *RedisQueue) TryFormMatch(ctx context.Context, n int) ([]QueueEntry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("match size must be positive: %w", duel.ErrInvalidInput)
	}
	vals, err := formMatchScript.Run(ctx, q.rdb, q.keys(), n).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("form match: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	out := make([]QueueEntry, 0, n)
	for i := 0; i+1 < len(vals); i += 2 {
		entry := QueueEntry{UserID: vals[i]}
		if vals[i+1] != "" {
			if err := json.Unmarshal([]byte(vals[i+1]), &entry); err != nil {
				obslog.L().Warn("matchmaking_entry_decode_error", zap.String("user_id", vals[i]), zap.Error(err))
				entry = QueueEntry{UserID: vals[i]}
			}
		}
		out = append(out, entry)
	}
	obslog.L().Info("matchmaking_match_formed", zap.Strings("user_ids", entryIDs(out)))
	return out, nil
}

func (q *RedisQueue) Remove(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}
	removed, err := removeScript.Run(ctx, q.rdb, q.keys(), userID).Int64()
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", userID, err)
	}
	if removed == 1 {
		obslog.L().Info("matchmaking_remove", zap.String("user_id", userID))
	}
	return removed == 1, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, keyQueue).Result()
}

func (q *RedisQueue) Position(ctx context.Context, userID string) (int, error) {
	pos, err := q.rdb.LPos(ctx, keyQueue, strings.TrimSpace(userID), redis.LPosArgs{}).Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return int(pos), nil
}

func entryIDs(entries []QueueEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	return ids
}
