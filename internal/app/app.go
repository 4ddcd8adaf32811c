// Package app assembles the records service from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-records/internal/chart"
	"wisefido-records/internal/common/database"
	mqttcommon "wisefido-records/internal/common/mqtt"
	rediscommon "wisefido-records/internal/common/redis"
	"wisefido-records/internal/config"
	"wisefido-records/internal/feed"
	"wisefido-records/internal/location"
	"wisefido-records/internal/metrics"
	"wisefido-records/internal/notify"
	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// App holds the wired components. Optional parts are nil when disabled.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Redis     *rediscommon.Client
	MQTT      *mqttcommon.Client
	Hub       *notify.Hub
	Registry  *prometheus.Registry
	Resources *provider.Router
	Trees     *location.Holder
	Charts    *chart.Service
	Importer  *feed.Importer

	logger  *zap.Logger
	closers []func()
}

// New opens the store, runs migrations and wires notification fan-out.
// Redis and MQTT failures are fatal only when they are enabled.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	dialect, err := store.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() { _ = database.Close(db) })

	if err := store.Migrate(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	a.Hub = notify.NewHub(logger)
	notifiers := []notify.Notifier{a.Hub}

	if cfg.Redis.Enabled {
		client := rediscommon.NewRedisClient(&cfg.Redis.RedisConfig)
		if err := rediscommon.Ping(ctx, client); err != nil {
			_ = client.Close()
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = client
		async := notify.NewAsync(notify.NewStreamPublisher(client, cfg.Redis.Stream, cfg.Redis.MaxLen),
			logger.Named("redis"), cfg.Redis.QueueSize, publishTimeout)
		notifiers = append(notifiers, async)
		a.closers = append(a.closers, async.Close, func() { _ = rediscommon.Close(client) })
		logger.Info("Publishing changes to redis stream", zap.String("stream", cfg.Redis.Stream))
	}

	if cfg.MQTT.Enabled {
		client, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.MQTT = client
		async := notify.NewAsync(notify.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS),
			logger.Named("mqtt"), cfg.MQTT.QueueSize, publishTimeout)
		notifiers = append(notifiers, async)
		a.closers = append(a.closers, async.Close, client.Disconnect)
		logger.Info("Publishing changes to MQTT", zap.String("broker", cfg.MQTT.Broker))
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewRouter(a.Registry)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := metrics.RegisterHub(a.Registry, a.Hub); err != nil {
		a.Close()
		return nil, err
	}

	a.Resources = provider.NewRouter(db, dialect, logger.Named("router"),
		provider.WithNotifier(notify.Fanout(notifiers...)),
		provider.WithMetrics(m))
	if err := provider.RegisterDefaults(a.Resources); err != nil {
		a.Close()
		return nil, err
	}

	a.Trees = location.NewHolder(location.NewLoader(a.Resources, logger.Named("location")), logger.Named("location"))
	a.Charts = chart.NewService(chart.NewSource(a.Resources, logger.Named("chart")), a.Trees, chart.ServiceConfig{
		ChartUUID:        cfg.Chart.UUID,
		Zone:             cfg.Chart.Location(),
		FallbackConcepts: cfg.Chart.Fallback,
	}, logger.Named("chart"))

	if cfg.Feed.Enabled() {
		client := feed.NewClient(feed.Config{
			BaseURL: cfg.Feed.BaseURL,
			Token:   cfg.Feed.Token,
			Timeout: cfg.Feed.Timeout,
		}, logger.Named("feed"))
		a.Importer = feed.NewImporter(client, a.Resources, logger.Named("feed"))
	}
	return a, nil
}

// WatchLocations keeps the location trees current until ctx ends.
func (a *App) WatchLocations(ctx context.Context) {
	changes, cancel := a.Hub.Subscribe(16, location.WatchPrefixes...)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	go a.Trees.Watch(ctx, changes)
}

// RunFeed syncs from the upstream server every interval, starting with a
// full sync. It returns when ctx ends.
func (a *App) RunFeed(ctx context.Context, interval time.Duration) {
	if a.Importer == nil || interval <= 0 {
		return
	}
	full := true
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.Importer.Sync(ctx, full); err != nil {
			a.logger.Error("Feed sync failed", zap.Bool("full", full), zap.Error(err))
		} else {
			full = false
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
