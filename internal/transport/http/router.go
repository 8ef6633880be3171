package http

import (
	"context"
	"net/http"
	"time"

	"form-builder-service/internal/app"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// MetricsExporter instruments requests and serves the scrape endpoint.
type MetricsExporter interface {
	Middleware() gin.HandlerFunc
	Handler() gin.HandlerFunc
}

// Dependencies are the collaborators the router dispatches to. Images,
// Metrics and HealthChecks are optional.
type Dependencies struct {
	Forms        *app.FormService
	Responses    *app.ResponseService
	Images       ImageStore
	Metrics      MetricsExporter
	HealthChecks map[string]HealthCheck
	Logger       *zap.Logger
}

type RouterConfig struct {
	Production     bool
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
	MaxUploadBytes int64
	// UploadDir is served under /uploads when set.
	UploadDir string
	// Done stops background middleware work.
	Done <-chan struct{}
}

func NewRouter(deps Dependencies, cfg RouterConfig) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resp := responder{logger: logger, production: cfg.Production}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(RequestID(), Recovery(logger), RequestLogger(logger), Secure(), CORS(cfg.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", deps.Metrics.Handler())
	}
	r.GET("/healthz", healthHandler(deps.HealthChecks))
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	api := r.Group("/api", RateLimit(cfg.RateLimit, cfg.RateWindow, cfg.Done))
	newFormHandler(deps.Forms, resp).register(api.Group("/forms"))
	newResponseHandler(deps.Responses, resp).register(api.Group("/responses"))
	if deps.Images != nil {
		newUploadHandler(deps.Images, cfg.MaxUploadBytes, resp).register(api.Group("/uploads"))
	}

	r.GET("/ws/forms/:id/submissions", newWSHandler(deps.Responses, resp).ServeSubmissions)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Message: "Route not found"})
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
