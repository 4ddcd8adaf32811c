package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// API path prefix.
const apiPrefix = "/records/api/v1"

// Router uses the standard library http.ServeMux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers an http.Handler such as the metrics endpoint.
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterResourceRoutes exposes every router path under /resources.
func (r *Router) RegisterResourceRoutes(h *ResourceHandler) {
	r.Handle(apiPrefix+"/resources/", h.ServeResource)
}

// RegisterLocationRoutes exposes the location tree.
func (r *Router) RegisterLocationRoutes(h *LocationHandler) {
	r.Handle(apiPrefix+"/locations", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetTree(w, req)
	})
	r.Handle(apiPrefix+"/locations/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetLocation(w, req)
	})
}

// RegisterChartRoutes exposes patient charts:
// /patients/{uuid}/chart, /patients/{uuid}/chart.xlsx, /patients/{uuid}/latest
func (r *Router) RegisterChartRoutes(h *ChartHandler) {
	r.Handle(apiPrefix+"/patients/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ServePatient(w, req)
	})
}

// RegisterHealthRoutes exposes liveness and metrics.
func (r *Router) RegisterHealthRoutes(h *HealthHandler, metrics http.Handler) {
	r.Handle("/healthz", h.Healthz)
	if metrics != nil {
		r.HandleHandler("/metrics", metrics)
	}
}
