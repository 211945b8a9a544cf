package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mediastudio/worker/cache"
	"mediastudio/worker/config"
	"mediastudio/worker/kafka"
	"mediastudio/worker/pool"
	"mediastudio/worker/repository"
	"mediastudio/worker/runner"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("render worker starting",
		zap.Int("worker_count", cfg.WorkerCount),
		zap.String("topic", cfg.KafkaTopic),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	pingCancel()

	consumer, err := kafka.NewConsumer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaGroupID)
	if err != nil {
		logger.Fatal("kafka consumer failed", zap.Error(err))
	}
	defer consumer.Close()

	repo := repository.NewPostgresRepo(dbpool)
	mirror := cache.NewProgressCache(redisClient)
	jobRunner := runner.New(repo, mirror, cfg.StepInterval, cfg.OutputDir, logger)
	workers := pool.NewWorkerPool(cfg.WorkerCount)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	for ctx.Err() == nil {
		err := consumer.Consume(ctx, cfg.KafkaTopic, func(ctx context.Context, msg *kafka.JobMessage) error {
			workers.Submit(ctx, msg, func(ctx context.Context, msg *kafka.JobMessage) error {
				return jobRunner.Run(ctx, msg.JobID)
			})
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("consume loop error", zap.Error(err))
			time.Sleep(time.Second)
		}
	}

	workers.Wait()
	logger.Info("worker stopped")
}
