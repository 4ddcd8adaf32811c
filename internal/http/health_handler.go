package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var errMQTTDisconnected = errors.New("not connected")

// Connection is a client that tracks its own connection state.
type Connection interface {
	IsConnected() bool
}

// HealthHandler reports the state of the store and of the configured brokers.
type HealthHandler struct {
	db          *sql.DB
	redisClient *redis.Client
	mqtt        Connection
	logger      *zap.Logger
	now         func() time.Time
}

func NewHealthHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, redisClient: redisClient, logger: logger, now: time.Now}
}

// WithMQTT adds the MQTT connection to the report.
func (h *HealthHandler) WithMQTT(c Connection) *HealthHandler {
	h.mqtt = c
	return h
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Healthz answers 200 when every configured dependency responds, 503 otherwise.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	services := make(map[string]string)

	check := func(name string, ping func(ctx context.Context) error) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			status = "unhealthy"
			services[name] = "unhealthy: " + err.Error()
			h.logger.Warn("Health check failed", zap.String("service", name), zap.Error(err))
			return
		}
		services[name] = "healthy"
	}

	if h.db != nil {
		check("database", h.db.PingContext)
	} else {
		services["database"] = "not configured"
	}
	if h.redisClient != nil {
		check("redis", func(ctx context.Context) error { return h.redisClient.Ping(ctx).Err() })
	} else {
		services["redis"] = "not configured"
	}
	if h.mqtt != nil {
		check("mqtt", func(context.Context) error {
			if !h.mqtt.IsConnected() {
				return errMQTTDisconnected
			}
			return nil
		})
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: status, Timestamp: h.now(), Services: services})
}
