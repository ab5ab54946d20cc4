package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	commoncfg "github.com/VaTka/wakame/common/config"
	"github.com/VaTka/wakame/internal/domain"
	"github.com/joho/godotenv"
)

// Config wakame 各服务共用配置（环境变量，可由 .env 预加载）
type Config struct {
	HTTP struct {
		Addr string
	}

	DBEnabled bool
	Database  commoncfg.DatabaseConfig

	RedisEnabled bool
	Redis        commoncfg.RedisConfig

	MQTT struct {
		commoncfg.MQTTConfig
		Topic string // 订阅主题，如 scale/+/raw
	}

	Log struct {
		Level  string
		Format string
	}

	// Ingest 读数规整参数
	Ingest struct {
		ErrorMin       float64
		ErrorMax       float64
		DefaultProcess domain.Process
	}

	// Stream 原始行 Redis Stream
	Stream struct {
		Raw      string
		Group    string
		Consumer string
		Block    time.Duration
	}

	Export struct {
		PDFFont string // 日文字体路径，缺失时 ja 报告回退为英文
	}

	Device struct {
		Name string // 网关写入的 source
	}

	API struct {
		BaseURL string
		Timeout time.Duration
	}

	Simulator struct {
		Tick    time.Duration
		Amp     float64
		Noise   float64
		Process string // both / molding / packaging
	}

	Monitor struct {
		Process     domain.Process
		Granularity string
		Target      float64
		Deviation   float64
	}
}

// Load 读取配置；envFiles 为空时尝试当前目录的 .env（不存在则忽略）
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	cfg.HTTP.Addr = commoncfg.Env("HTTP_ADDR", ":8080")

	// DB 不可用时 API 回退到内存读数日志
	cfg.DBEnabled = commoncfg.EnvBool("DB_ENABLED", true)
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "wakame",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = commoncfg.EnvBool("REDIS_ENABLED", true)
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.MQTTConfig = commoncfg.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wakame-ingestor",
		QoS:      1,
	}
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	cfg.MQTT.Topic = commoncfg.Env("MQTT_TOPIC", "scale/+/raw")

	cfg.Log.Level = commoncfg.Env("LOG_LEVEL", "info")
	cfg.Log.Format = commoncfg.Env("LOG_FORMAT", "json")

	cfg.Ingest.ErrorMin = commoncfg.EnvFloat("ERROR_MIN", 0)
	cfg.Ingest.ErrorMax = commoncfg.EnvFloat("ERROR_MAX", 50000)
	if cfg.Ingest.ErrorMin > cfg.Ingest.ErrorMax {
		return nil, fmt.Errorf("ERROR_MIN (%v) must not exceed ERROR_MAX (%v)", cfg.Ingest.ErrorMin, cfg.Ingest.ErrorMax)
	}
	p, err := domain.ParseProcess(commoncfg.Env("DEFAULT_PROCESS", string(domain.ProcessMolding)))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_PROCESS: %w", err)
	}
	cfg.Ingest.DefaultProcess = p

	cfg.Stream.Raw = commoncfg.Env("STREAM_RAW", "scale:raw")
	cfg.Stream.Group = commoncfg.Env("STREAM_GROUP", "wakame-api")
	cfg.Stream.Consumer = commoncfg.Env("STREAM_CONSUMER", hostnameOr("wakame-api-1"))
	cfg.Stream.Block = time.Duration(commoncfg.EnvInt("STREAM_BLOCK_MS", 2000)) * time.Millisecond
	if cfg.Stream.Block <= 0 {
		cfg.Stream.Block = 2 * time.Second
	}

	cfg.Export.PDFFont = commoncfg.Env("PDF_FONT", "")
	cfg.Device.Name = commoncfg.Env("DEVICE_NAME", domain.DefaultSource)

	cfg.API.BaseURL = commoncfg.Env("API_BASE_URL", "http://localhost:8080")
	cfg.API.Timeout = time.Duration(commoncfg.EnvInt("API_TIMEOUT_MS", 5000)) * time.Millisecond

	cfg.Simulator.Tick = time.Duration(commoncfg.EnvInt("GEN_TICK_MS", 500)) * time.Millisecond
	if cfg.Simulator.Tick <= 0 {
		cfg.Simulator.Tick = 500 * time.Millisecond
	}
	cfg.Simulator.Amp = commoncfg.EnvFloat("GEN_AMP", 500)
	cfg.Simulator.Noise = commoncfg.EnvFloat("GEN_NOISE", 1)
	cfg.Simulator.Process = commoncfg.Env("GEN_PROCESS", "both")

	mp, err := domain.ParseProcess(commoncfg.Env("MONITOR_PROCESS", string(cfg.Ingest.DefaultProcess)))
	if err != nil {
		return nil, fmt.Errorf("MONITOR_PROCESS: %w", err)
	}
	cfg.Monitor.Process = mp
	cfg.Monitor.Granularity = commoncfg.Env("MONITOR_GRANULARITY", string(domain.GranularityDefault))
	cfg.Monitor.Target = commoncfg.EnvFloat("MONITOR_TARGET", 60)
	cfg.Monitor.Deviation = commoncfg.EnvFloat("MONITOR_DEVIATION", 3)

	return cfg, nil
}

// ErrorBounds 有效重量区间
func (c *Config) ErrorBounds() domain.ErrorBounds {
	return domain.ErrorBounds{Min: c.Ingest.ErrorMin, Max: c.Ingest.ErrorMax}
}

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}
