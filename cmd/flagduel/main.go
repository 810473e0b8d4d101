package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/flagduel/internal/arena"
	appcfg "github.com/park285/flagduel/internal/config"
	"github.com/park285/flagduel/internal/duel"
	"github.com/park285/flagduel/internal/history"
	"github.com/park285/flagduel/internal/matchmaking"
	"github.com/park285/flagduel/internal/msgcat"
	"github.com/park285/flagduel/internal/notify"
	"github.com/park285/flagduel/internal/obslog"
	"github.com/park285/flagduel/internal/progression"
	"github.com/park285/flagduel/internal/refpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type durableStore interface {
	duel.Durable
	Close() error
}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pctx).Err(); err != nil {
		cancel()
		log.Fatalf("redis ping error: %v", err)
	}
	cancel()

	durable, err := openDurable(cfg)
	if err != nil {
		log.Fatalf("history store init error: %v", err)
	}

	pool, err := refpool.New(cfg.PoolFile)
	if err != nil {
		log.Fatalf("reference pool error: %v", err)
	}
	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	engineOpts := []duel.Option{}
	switch cfg.ProgressionMode {
	case appcfg.ProgressionRedis:
		engineOpts = append(engineOpts, duel.WithProgression(progression.NewTracker(rdb, progression.NewRules())))
	case appcfg.ProgressionHTTP:
		engineOpts = append(engineOpts, duel.WithProgression(progression.NewClient(cfg.ProgressionURL,
			progression.WithTimeout(cfg.ProgressionTimeout),
			progression.WithBearerToken(cfg.ProgressionToken),
		)))
	}
	engine := duel.NewEngine(
		duel.NewStore(duel.NewRedisStore(rdb, cfg.SessionTTL), durable),
		pool,
		duel.Config{
			MaxRounds:          cfg.MaxRounds,
			RoundTimeLimit:     cfg.RoundTimeLimit,
			ProgressionTimeout: cfg.ProgressionTimeout,
		},
		engineOpts...,
	)

	var sink notify.Sink = notify.NewRedisSink(rdb, cfg.EventChannelPrefix)
	if cfg.NotifyDryRun {
		sink = notify.NewLogSink(obslog.L())
	}
	svc := arena.NewService(engine, matchmaking.NewRedisQueue(rdb), notify.New(sink), messages, cfg.MatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obslog.L().Info("flagduel_start",
		zap.String("command_channel", cfg.CommandChannel),
		zap.String("progression", cfg.ProgressionMode),
		zap.Int("max_rounds", cfg.MaxRounds),
		zap.Int("pool_size", pool.Len()),
	)
	if err := runCommandLoop(ctx, rdb, cfg.CommandChannel, svc.Handle); err != nil && !errors.Is(err, context.Canceled) {
		obslog.L().Error("command_loop_error", zap.Error(err))
	}

	obslog.L().Info("flagduel_stop")
	_ = durable.Close()
	_ = rdb.Close()
}

func openDurable(cfg *appcfg.AppConfig) (durableStore, error) {
	if cfg.SQLitePath != "" {
		return history.OpenSQLite(cfg.SQLitePath)
	}
	pg, err := history.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}
	return pg, nil
}
