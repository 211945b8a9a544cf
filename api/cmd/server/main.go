package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mediastudio/api/cache"
	"mediastudio/api/config"
	"mediastudio/api/database"
	"mediastudio/api/handlers"
	"mediastudio/api/kafka"
	"mediastudio/api/middleware"
	"mediastudio/api/repository"
	"mediastudio/api/service"
	"mediastudio/api/simulator"
	"mediastudio/api/storage"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	if cfg.Env == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("api service starting", zap.String("port", cfg.Port))

	db, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	redisCache, err := database.ConnectCache(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisCache.Close()

	producer, err := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","))
	if err != nil {
		logger.Fatal("kafka producer failed", zap.Error(err))
	}
	defer producer.Close()

	blobs, err := storage.NewBlobStore(cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	repo := repository.NewPostgresRepo(db)
	progress := cache.NewProgressCache(redisCache)
	renderSvc := service.NewRenderService(repo, progress, producer)
	sim := simulator.New(cfg.SimStep, logger)

	uploadHandler := handlers.NewUploadHandler(blobs, logger)
	renderHandler := handlers.NewRenderHandler(renderSvc, blobs, logger)
	simHandler := handlers.NewSimJobHandler(sim, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /uploads", uploadHandler.Upload)
	mux.HandleFunc("GET /uploads/{name}", uploadHandler.Fetch)

	mux.HandleFunc("POST /render", renderHandler.Create)
	mux.HandleFunc("GET /render/{id}/status", renderHandler.Status)
	mux.HandleFunc("GET /render/{id}/download", renderHandler.Download)
	mux.HandleFunc("POST /render/{id}/cancel", renderHandler.Cancel)

	mux.HandleFunc("POST /export/jobs", simHandler.Create)
	mux.HandleFunc("GET /export/jobs/{id}", simHandler.Status)
	mux.HandleFunc("POST /export/jobs/{id}/cancel", simHandler.Cancel)

	var handler http.Handler = mux
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.TraceID(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		logger.Info("server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
