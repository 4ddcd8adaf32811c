package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: DriverPostgres, Host: "db", Port: 5432, User: "u", Password: "p", Database: "records", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=records sslmode=disable", pg.GetDSN())
	assert.False(t, pg.IsSQLite())

	mem := DatabaseConfig{}
	assert.True(t, mem.IsSQLite())
	assert.True(t, mem.IsMemory())
	assert.Equal(t, "file::memory:?_pragma=foreign_keys(1)", mem.GetDSN())

	file := DatabaseConfig{Driver: DriverSQLite, Path: "/var/lib/records.db"}
	assert.False(t, file.IsMemory())
	assert.Contains(t, file.GetDSN(), "file:/var/lib/records.db?")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("STORE_PORT", "6543")
	t.Setenv("STORE_USER", "clinic")
	t.Setenv("CACHE_ADDR", "redis:6380")
	t.Setenv("CACHE_DB", "2")
	t.Setenv("CACHE_POOL_SIZE", "20")
	t.Setenv("CACHE_READ_TIMEOUT", "1500ms")
	t.Setenv("CACHE_WRITE_TIMEOUT", "soon")
	t.Setenv("BUS_BROKER", "tcp://broker:1883")
	t.Setenv("BUS_QOS", "1")
	t.Setenv("BUS_TOPIC_PREFIX", "clinic/")

	var db DatabaseConfig
	db.LoadFromEnv("STORE")
	assert.Equal(t, DriverPostgres, db.Driver)
	assert.Equal(t, 6543, db.Port)
	assert.Equal(t, "clinic", db.User)

	var rc RedisConfig
	rc.LoadFromEnv("CACHE")
	assert.Equal(t, "redis:6380", rc.Addr)
	assert.Equal(t, 2, rc.DB)
	assert.Equal(t, 20, rc.PoolSize)
	assert.Equal(t, 1500*time.Millisecond, rc.ReadTimeout)
	assert.Zero(t, rc.WriteTimeout)

	var mc MQTTConfig
	mc.LoadFromEnv("BUS")
	assert.Equal(t, "tcp://broker:1883", mc.Broker)
	assert.Equal(t, byte(1), mc.QoS)
	assert.Equal(t, "clinic/", mc.TopicPrefix)
}
