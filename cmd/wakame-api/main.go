package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VaTka/wakame/common/database"
	applogger "github.com/VaTka/wakame/common/logger"
	rediscommon "github.com/VaTka/wakame/common/redis"
	"github.com/VaTka/wakame/internal/cache"
	"github.com/VaTka/wakame/internal/config"
	"github.com/VaTka/wakame/internal/consumer"
	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/export"
	httpapi "github.com/VaTka/wakame/internal/http"
	"github.com/VaTka/wakame/internal/metrics"
	"github.com/VaTka/wakame/internal/repository"
	"github.com/VaTka/wakame/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const latestCacheTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wakame-api")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 读数日志：DB 不可用时回退到内存
	var readings repository.ReadingLog
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			pg := repository.NewPostgresReadingLog(d)
			if err := pg.EnsureSchema(ctx); err != nil {
				logger.Fatal("Failed to ensure schema", zap.Error(err))
			}
			db = d
			readings = pg
			logger.Info("DB enabled for wakame-api", zap.String("host", cfg.Database.Host))
		} else {
			logger.Warn("DB enabled but connection failed, falling back to memory log", zap.Error(err))
		}
	}
	if readings == nil {
		readings = repository.NewMemoryReadingLog()
	}
	defer database.Close(db)

	// Redis：最新值缓存 + 原始行 Stream
	var redisClient *redis.Client
	var latest service.LatestCache
	if cfg.RedisEnabled {
		c := rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, c); err == nil {
			redisClient = c
			latest = cache.NewLatestCache(cache.NewRedisKV(c), latestCacheTTL)
			logger.Info("Redis enabled for wakame-api", zap.String("addr", cfg.Redis.Addr))
		} else {
			logger.Warn("Redis enabled but ping failed, running without cache and stream", zap.Error(err))
			_ = rediscommon.Close(c)
		}
	}

	m := metrics.New()
	table := domain.DefaultGranularityTable()
	normalizer := domain.Normalizer{Bounds: cfg.ErrorBounds(), DefaultProcess: cfg.Ingest.DefaultProcess}

	ingest := service.NewIngestService(readings, latest, normalizer, m, logger)
	query := service.NewQueryService(readings, latest, table, cfg.Ingest.DefaultProcess, m, logger)
	exports := service.NewExportService(readings, table, cfg.Ingest.DefaultProcess, export.PDFOptions{FontPath: cfg.Export.PDFFont}, m, logger)

	router := httpapi.NewRouter(logger, m)
	router.RegisterReadingRoutes(httpapi.NewReadingHandler(ingest, query, logger))
	router.RegisterExportRoutes(httpapi.NewExportHandler(exports, logger))

	if redisClient != nil {
		sc := consumer.NewStreamConsumer(redisClient, ingest, consumer.StreamOptions{
			Stream:   cfg.Stream.Raw,
			Group:    cfg.Stream.Group,
			Consumer: cfg.Stream.Consumer,
			Block:    cfg.Stream.Block,
		}, m, logger)
		go func() {
			if err := sc.Start(ctx); err != nil {
				logger.Error("Stream consumer stopped", zap.Error(err))
			}
		}()
		defer rediscommon.Close(redisClient)
	}

	srv := service.NewServer(cfg.HTTP.Addr, router.Handler(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Service stopped")
}
