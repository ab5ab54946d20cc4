package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	applogger "github.com/VaTka/wakame/common/logger"
	"github.com/VaTka/wakame/internal/config"
	"github.com/VaTka/wakame/internal/domain"
	"github.com/VaTka/wakame/internal/monitor"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wakame-monitor")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	client := monitor.NewAPIClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	mon := monitor.New(client, domain.DefaultGranularityTable(), domain.ToleranceSpec{
		Target:           cfg.Monitor.Target,
		DeviationPercent: cfg.Monitor.Deviation,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mon.Switch(ctx, cfg.Monitor.Process, cfg.Monitor.Granularity); err != nil {
		logger.Fatal("Failed to start monitor", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	mon.Stop()
	logger.Info("Service stopped")
}
