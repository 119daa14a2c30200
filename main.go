package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"tasks-api/api"
	"tasks-api/config"
	"tasks-api/domain"
	"tasks-api/storage"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, logCloser := config.NewLogger(cfg)
	defer logCloser.Close()

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("shutdown tracer provider")
		}
	}()

	var store domain.TaskStorage
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory task storage; data is lost on restart")
		store = storage.NewMemory()
	default:
		tables, err := storage.New(cfg.StorageConnectionString, cfg.TasksTable, cfg.TasksPartition)
		if err != nil {
			logger.Fatalf("storage: %v", err)
		}
		store = tables
	}

	var dedup api.Deduper
	if cfg.RedisConnectionString != "" {
		redisOpts, err := config.RedisOptions(cfg.RedisConnectionString)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(redisOpts)
		defer rc.Close()
		store = storage.NewCache(store, rc, cfg.TasksPartition, cfg.TasksCacheTTL)
		dedup = api.NewRedisDeduper(rc, cfg.IdempotencyTTL)
		logger.WithField("ttl", cfg.TasksCacheTTL.String()).Info("task list cache enabled")
	}

	svc := domain.NewTaskService(store, logger)

	e := echo.New()
	e.HideBanner = true
	e.Pre(api.DecompressRequests())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(api.RequestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
	}))
	e.Use(echoprometheus.NewMiddleware("tasks_api"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, svc, dedup, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithFields(log.Fields{"addr": cfg.ListenAddr, "backend": cfg.StorageBackend}).Info("tasks api listening")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown")
	}
}
