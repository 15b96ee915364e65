package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/broadcast-link/config"
	"github.com/d60-Lab/broadcast-link/internal/api/handler"
	"github.com/d60-Lab/broadcast-link/internal/api/router"
	"github.com/d60-Lab/broadcast-link/internal/check"
	"github.com/d60-Lab/broadcast-link/internal/repository"
	"github.com/d60-Lab/broadcast-link/internal/service"
	"github.com/d60-Lab/broadcast-link/pkg/database"
	"github.com/d60-Lab/broadcast-link/pkg/logger"
	"github.com/d60-Lab/broadcast-link/pkg/tracing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}

// @title broadcast-link API
// @version 1.0
// @description 多站点文章广播链路服务
func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		mustDo(sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}))
		defer sentry.Flush(2 * time.Second)
	}
	if cfg.Trace.Enabled {
		shutdown := must(tracing.Init(ctx, cfg.Trace.Endpoint, "broadcast-link"))
		defer shutdown(context.Background())
	}

	db := must(database.InitDB(cfg))
	mustDo(database.AutoMigrate(db))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	mustDo(rdb.Ping(ctx).Err())

	posts := repository.NewPostRepository(db)
	broadcasts := repository.NewBroadcastRepository(db)
	svc := service.NewBroadcastService(db, posts, broadcasts)

	propagator := service.NewPropagator(db, posts, broadcasts,
		cfg.Propagator.Workers, cfg.Propagator.ClaimLimit, cfg.Propagator.PollInterval)
	stopPropagator := propagator.Start()
	defer stopPropagator(context.Background())

	states := check.NewRedisStateStore(rdb, cfg.Check.StateTTL)
	runner := check.NewRunner(db, states, cfg.Check.StepQuota)

	h := handler.New(cfg, svc, posts, runner)
	r := router.New(cfg, h, broadcasts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server exited", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
