package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("WAKAME_TEST_STR", " value ")
	t.Setenv("WAKAME_TEST_INT", "42")
	t.Setenv("WAKAME_TEST_BAD_INT", "forty-two")
	t.Setenv("WAKAME_TEST_FLOAT", "-0.5")
	t.Setenv("WAKAME_TEST_BOOL", "false")

	assert.Equal(t, "value", Env("WAKAME_TEST_STR", "def"))
	assert.Equal(t, "def", Env("WAKAME_TEST_MISSING", "def"))
	assert.Equal(t, 42, EnvInt("WAKAME_TEST_INT", 1))
	assert.Equal(t, 1, EnvInt("WAKAME_TEST_BAD_INT", 1))
	assert.Equal(t, -0.5, EnvFloat("WAKAME_TEST_FLOAT", 0))
	assert.False(t, EnvBool("WAKAME_TEST_BOOL", true))
	assert.True(t, EnvBool("WAKAME_TEST_MISSING", true))
}

func TestDatabaseConfig_LoadFromEnvAndDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Database: "wakame", SSLMode: "disable"}
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")

	cfg.LoadFromEnv("DB")

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "host=db.internal port=6543 user=postgres password= dbname=wakame sslmode=disable", cfg.GetDSN())
}

func TestMQTTConfig_LoadFromEnvRejectsInvalidQoS(t *testing.T) {
	cfg := MQTTConfig{Broker: "tcp://localhost:1883", QoS: 1}
	t.Setenv("MQTT_QOS", "7")
	cfg.LoadFromEnv("MQTT")
	assert.Equal(t, byte(1), cfg.QoS)

	t.Setenv("MQTT_QOS", "2")
	cfg.LoadFromEnv("MQTT")
	assert.Equal(t, byte(2), cfg.QoS)
}
