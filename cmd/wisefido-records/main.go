package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"wisefido-records/internal/app"
	"wisefido-records/internal/common/logger"
	"wisefido-records/internal/config"
	httpapi "wisefido-records/internal/http"
	"wisefido-records/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-records")
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start records service", zap.Error(err))
	}
	defer a.Close()

	a.WatchLocations(ctx)
	go a.RunFeed(ctx, cfg.Feed.Interval)

	router := httpapi.NewRouter(log)
	router.RegisterResourceRoutes(httpapi.NewResourceHandler(a.Resources, log))
	router.RegisterLocationRoutes(httpapi.NewLocationHandler(a.Trees, cfg.Chart.DefaultLocale))
	router.RegisterChartRoutes(httpapi.NewChartHandler(a.Charts, cfg.Chart.DefaultLocale, cfg.Chart.Location(), log))
	health := httpapi.NewHealthHandler(a.DB, a.Redis, log)
	if a.MQTT != nil {
		health.WithMQTT(a.MQTT)
	}
	router.RegisterHealthRoutes(health, promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("HTTP server stopped", zap.Error(err))
	}
}
