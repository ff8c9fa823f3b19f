package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crowdfund/internal/config"
	"crowdfund/internal/handler"
	"crowdfund/internal/infrastructure/cache"
	"crowdfund/internal/infrastructure/database"
	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/infrastructure/mq"
	"crowdfund/internal/job"
	"crowdfund/internal/service"
	"crowdfund/pkg/idgen"
	"crowdfund/pkg/logger"
	"crowdfund/pkg/monitor"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/config.yaml", "path to the YAML config")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		logger.Fatal("init id generator", zap.Error(err))
	}
	monitor.Init()

	limits, err := cfg.Business.Limits()
	if err != nil {
		logger.Fatal("parse business limits", zap.Error(err))
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer database.Close(db)

	svc := service.New(db, limits, cfg.Kafka.Topic)
	if limits.FeeAccountID != "" {
		if _, err := svc.Ledger.Register(context.Background(), limits.FeeAccountID); err != nil {
			logger.Fatal("register fee account", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		svc.Coordinator.SetLocker(lock.NewRedisLocker(redisClient, cfg.Business.LockTTL))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		publisher, err := mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			logger.Fatal("connect kafka", zap.Error(err))
		}
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(db, publisher, cfg.Business.MaxRetryCount)
		go outboxSender.Start(ctx)
	} else {
		logger.Warn("kafka disabled, outbox messages stay pending")
	}

	// a nil *redis.Client must not become a non-nil interface
	var jobRedis redis.UniversalClient
	if redisClient != nil {
		jobRedis = redisClient
	}
	reconcileJob := job.NewReconcileJob(svc.Reconciler, jobRedis, cfg.Business.LockTTL)
	if err := reconcileJob.Start(cfg.Business.ReconcileSpec); err != nil {
		logger.Fatal("schedule reconcile job", zap.String("spec", cfg.Business.ReconcileSpec), zap.Error(err))
	}

	router := handler.SetupRouter(svc, &cfg.JWT)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	reconcileJob.Stop(shutdownCtx)

	logger.Info("server stopped")
}
