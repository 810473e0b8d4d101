package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/park285/flagduel/internal/obslog"
	"github.com/park285/flagduel/pkg/dueldto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannelPrefix = "duel:events:"

// RedisSink publishes each envelope as JSON on <prefix><routeToken>; the
// gateway holding that connection relays it.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisSink(rdb *redis.Client, prefix string) *RedisSink {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisSink{rdb: rdb, prefix: prefix}
}

func (r *RedisSink) Channel(routeToken string) string { return r.prefix + routeToken }

func (r *RedisSink) Publish(ctx context.Context, routeToken string, env dueldto.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", env.Type, err)
	}
	if err := r.rdb.Publish(ctx, r.Channel(routeToken), raw).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", env.Type, err)
	}
	return nil
}

// LogSink only logs; used for dry runs.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Publish(_ context.Context, routeToken string, env dueldto.Envelope) error {
	logger := l.logger
	if logger == nil {
		logger = obslog.L()
	}
	logger.Info("notify_dryrun", zap.String("type", env.Type), zap.String("route_token", routeToken))
	return nil
}
