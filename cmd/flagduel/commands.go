package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/park285/flagduel/internal/obslog"
	"github.com/park285/flagduel/pkg/dueldto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const commandTimeout = 10 * time.Second

type commandHandler func(ctx context.Context, cmd dueldto.Command) error

// runCommandLoop consumes gateway commands until ctx is done. Each command
// runs on its own goroutine; in-flight commands finish before it returns.
func runCommandLoop(ctx context.Context, rdb *redis.Client, channel string, handle commandHandler) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	msgs := sub.Channel()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var cmd dueldto.Command
			if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
				obslog.L().Warn("command_decode_error", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				// detached so shutdown does not abort a half-applied command
				cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commandTimeout)
				defer cancel()
				if err := handle(cctx, cmd); err != nil {
					obslog.L().Info("command_error",
						zap.String("type", cmd.Type),
						zap.String("user_id", cmd.UserID),
						zap.String("session_id", cmd.SessionID),
						zap.Error(err),
					)
				}
			}()
		}
	}
}
