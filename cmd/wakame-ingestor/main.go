package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	applogger "github.com/VaTka/wakame/common/logger"
	mqttcommon "github.com/VaTka/wakame/common/mqtt"
	rediscommon "github.com/VaTka/wakame/common/redis"
	"github.com/VaTka/wakame/internal/config"
	"github.com/VaTka/wakame/internal/ingestor"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wakame-ingestor")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting wakame-ingestor",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("topic", cfg.MQTT.Topic),
		zap.String("stream", cfg.Stream.Raw),
	)

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rediscommon.Close(redisClient)

	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MQTT", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	gw := ingestor.NewGateway(mqttClient, ingestor.NewRedisPublisher(redisClient), ingestor.Options{
		Topic:  cfg.MQTT.Topic,
		QoS:    cfg.MQTT.QoS,
		Stream: cfg.Stream.Raw,
		Source: cfg.Device.Name,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Gateway failed", zap.Error(err))
		}
	}

	cancel()
	gw.Stop()
	logger.Info("Service stopped")
}
