package progression

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const trackerRetries = 16

// Tracker keeps per-user stats in the hash progression:user:<id>.
type Tracker struct {
	rdb   *redis.Client
	rules Rules
}

func NewTracker(rdb *redis.Client, rules Rules) *Tracker {
	return &Tracker{rdb: rdb, rules: rules}
}

func statsKey(userID string) string { return "progression:user:" + strings.TrimSpace(userID) }

func (t *Tracker) Stats(ctx context.Context, userID string) (Stats, error) {
	return readStats(ctx, t.rdb, statsKey(userID))
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readStats(ctx context.Context, r hashReader, key string) (Stats, error) {
	cmd := r.HGetAll(ctx, key)
	m, err := cmd.Result()
	if err != nil {
		return Stats{}, err
	}
	if len(m) == 0 {
		return DefaultStats(), nil
	}
	var s Stats
	if err := cmd.Scan(&s); err != nil {
		return Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	return s, nil
}

// AwardAnswerOutcome applies the rules under WATCH so concurrent awards for
// the same user are never lost.
func (t *Tracker) AwardAnswerOutcome(ctx context.Context, userID string, correct bool, latency float64) (*duel.Award, error) {
	key := statsKey(userID)
	for attempt := 0; attempt < trackerRetries; attempt++ {
		var reward Reward
		err := t.rdb.Watch(ctx, func(tx *redis.Tx) error {
			s, err := readStats(ctx, tx, key)
			if err != nil {
				return err
			}
			reward = t.rules.Apply(&s, correct, latency)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key,
					"level", s.Level,
					"xp", s.XP,
					"gold", s.Gold,
					"diamonds", s.Diamonds,
					"rubies", s.Rubies,
				)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if reward.LeveledUp {
			obslog.L().Info("progression_level_up", zap.String("user_id", userID), zap.Int("level", reward.Level))
		}
		return &duel.Award{
			XPGained:       reward.XPGained,
			CurrencyGained: reward.GoldEarned,
			LeveledUp:      reward.LeveledUp,
			Level:          reward.Level,
		}, nil
	}
	return nil, fmt.Errorf("award %s: %w", userID, redis.TxFailedErr)
}
