package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	applogger "github.com/VaTka/wakame/common/logger"
	"github.com/VaTka/wakame/internal/config"
	"github.com/VaTka/wakame/internal/simulator"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wakame-simulator")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	mode, err := simulator.ParseMode(cfg.Simulator.Process)
	if err != nil {
		logger.Fatal("Invalid GEN_PROCESS", zap.Error(err))
	}

	runner := simulator.NewRunner(cfg.API.BaseURL, cfg.API.Timeout, simulator.GeneratorConfig{
		Amp:   cfg.Simulator.Amp,
		Noise: cfg.Simulator.Noise,
		Mode:  mode,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx, cfg.Simulator.Tick); err != nil {
		logger.Error("Simulator stopped", zap.Error(err))
	}
	logger.Info("Service stopped")
}
