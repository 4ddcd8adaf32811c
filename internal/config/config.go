package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "wisefido-records/internal/common/config"
)

// Config wisefido-records service configuration.
type Config struct {
	HTTP struct {
		Addr string
	}
	Database commoncfg.DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Feed     FeedConfig
	Chart    ChartConfig
	Log      struct {
		Level  string
		Format string
	}
}

// RedisConfig enables change streams on Redis.
type RedisConfig struct {
	Enabled bool
	commoncfg.RedisConfig
	Stream    string
	MaxLen    int64
	QueueSize int
}

// MQTTConfig enables change notifications over MQTT.
type MQTTConfig struct {
	Enabled bool
	commoncfg.MQTTConfig
	QueueSize int
}

// FeedConfig points at an upstream records server.
type FeedConfig struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	Interval time.Duration
}

// Enabled reports whether a feed is configured.
func (c FeedConfig) Enabled() bool { return c.BaseURL != "" }

// ChartConfig controls chart rendering.
type ChartConfig struct {
	UUID          string
	DefaultLocale string
	TimeZone      string
	Fallback      []string
}

// Location resolves TimeZone, falling back to the local zone.
func (c ChartConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database = commoncfg.DatabaseConfig{
		Driver:   commoncfg.DriverSQLite,
		Path:     "records.db",
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "records",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")
	cfg.Database.Driver = getEnv("STORE_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = getEnv("STORE_PATH", cfg.Database.Path)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", ""), cfg.Database.MaxIdle)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.RedisConfig = commoncfg.RedisConfig{
		Addr:        "localhost:6379",
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
	cfg.Redis.RedisConfig.LoadFromEnv("REDIS")
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "records:changes")
	cfg.Redis.MaxLen = int64(parseInt(getEnv("REDIS_STREAM_MAXLEN", "10000"), 10000))
	cfg.Redis.QueueSize = parseInt(getEnv("REDIS_QUEUE_SIZE", "256"), 256)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.MQTTConfig = commoncfg.MQTTConfig{
		Broker:      "tcp://localhost:1883",
		ClientID:    "wisefido-records",
		QoS:         1,
		TopicPrefix: "records",
	}
	cfg.MQTT.MQTTConfig.LoadFromEnv("MQTT")
	cfg.MQTT.QueueSize = parseInt(getEnv("MQTT_QUEUE_SIZE", "256"), 256)

	cfg.Feed.BaseURL = getEnv("FEED_BASE_URL", "")
	cfg.Feed.Token = getEnv("FEED_TOKEN", "")
	cfg.Feed.Timeout = time.Duration(parseInt(getEnv("FEED_TIMEOUT_SECONDS", "30"), 30)) * time.Second
	cfg.Feed.Interval = time.Duration(parseInt(getEnv("FEED_INTERVAL_SECONDS", "0"), 0)) * time.Second

	cfg.Chart.UUID = getEnv("CHART_UUID", "ea43f213-66fb-4af6-8a49-70fd6b9ce5d4")
	cfg.Chart.DefaultLocale = getEnv("DEFAULT_LOCALE", "en")
	cfg.Chart.TimeZone = getEnv("TZ_NAME", "")
	cfg.Chart.Fallback = splitList(getEnv("CHART_FALLBACK_CONCEPTS", ""))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
