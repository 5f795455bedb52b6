package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RMahshie/skywatch/internal/api/handlers"
	"github.com/RMahshie/skywatch/pkg/models"
)

// Version is reported by the health endpoint and the OpenAPI document
const Version = "1.0.0"

// RouterConfig holds what the HTTP surface needs from the running scanner
type RouterConfig struct {
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
}

// NewRouter builds the chi router with the huma API mounted on it
func NewRouter(cfg RouterConfig, h *handlers.StatusHandler) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	config := huma.DefaultConfig("Skywatch API", Version)
	config.DocsPath = "/api/docs"
	api := humachi.New(router, config)

	RegisterRoutes(api, h)

	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return router
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, h *handlers.StatusHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Get scanner status",
		Description: "Returns session counters and the summary of the last completed cycle",
		Tags:        []string{"Scanner"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "listSignatures",
		Method:      http.MethodGet,
		Path:        "/api/signatures",
		Summary:     "List signatures",
		Description: "Returns the loaded signature catalog in match order",
		Tags:        []string{"Signatures"},
	}, h.ListSignatures)

	huma.Register(api, huma.Operation{
		OperationID: "listRecentAlerts",
		Method:      http.MethodGet,
		Path:        "/api/alerts/recent",
		Summary:     "List recent alerts",
		Description: "Returns the most recent drone alerts, newest first",
		Tags:        []string{"Alerts"},
	}, h.ListRecentAlerts)
}
