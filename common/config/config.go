package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig PostgreSQL 连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 连接配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// GetDSN 返回 lib/pq 使用的 key=value 连接串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从 <prefix>_HOST / _PORT / _USER / _PASSWORD / _NAME / _SSLMODE 覆盖配置
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	c.Host = Env(prefix+"_HOST", c.Host)
	c.Port = EnvInt(prefix+"_PORT", c.Port)
	c.User = Env(prefix+"_USER", c.User)
	c.Password = Env(prefix+"_PASSWORD", c.Password)
	c.Database = Env(prefix+"_NAME", c.Database)
	c.SSLMode = Env(prefix+"_SSLMODE", c.SSLMode)
	c.MaxConns = EnvInt(prefix+"_MAX_CONNS", c.MaxConns)
	c.MaxIdle = EnvInt(prefix+"_MAX_IDLE", c.MaxIdle)
}

// LoadFromEnv 从 <prefix>_ADDR / _PASSWORD / _DB 覆盖配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	c.Addr = Env(prefix+"_ADDR", c.Addr)
	c.Password = Env(prefix+"_PASSWORD", c.Password)
	c.DB = EnvInt(prefix+"_DB", c.DB)
}

// LoadFromEnv 从 <prefix>_BROKER / _CLIENT_ID / _USERNAME / _PASSWORD / _QOS 覆盖配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	c.Broker = Env(prefix+"_BROKER", c.Broker)
	c.ClientID = Env(prefix+"_CLIENT_ID", c.ClientID)
	c.Username = Env(prefix+"_USERNAME", c.Username)
	c.Password = Env(prefix+"_PASSWORD", c.Password)
	if qos := EnvInt(prefix+"_QOS", int(c.QoS)); qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// Env 读取环境变量，为空时返回默认值
func Env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt 读取整数环境变量，解析失败时返回默认值
func EnvInt(key string, def int) int {
	v := Env(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// EnvFloat 读取浮点环境变量，解析失败时返回默认值
func EnvFloat(key string, def float64) float64 {
	v := Env(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// EnvBool 读取布尔环境变量（true/false/1/0），解析失败时返回默认值
func EnvBool(key string, def bool) bool {
	v := Env(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
