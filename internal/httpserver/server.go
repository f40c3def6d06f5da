package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PratikDhanave/next-action-service/internal/auth"
	"github.com/PratikDhanave/next-action-service/internal/config"
	"github.com/PratikDhanave/next-action-service/internal/handlers"
	"github.com/PratikDhanave/next-action-service/internal/logging"
	"github.com/PratikDhanave/next-action-service/internal/metrics"
	"github.com/PratikDhanave/next-action-service/internal/prediction"
	"github.com/PratikDhanave/next-action-service/internal/publish"
	"github.com/PratikDhanave/next-action-service/internal/store"
	"github.com/PratikDhanave/next-action-service/internal/tracking"
)

// HeaderRequestID is echoed back on every response.
const HeaderRequestID = "X-Request-ID"

// NewRouter wires public endpoints and the action APIs.
// Public: /health, /ready, /metrics
// API-key protected when keys are configured: /track_action, /predict_next_action
func NewRouter(cfg *config.Config, st store.Store, pub publish.Publisher) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tracker := tracking.NewService(st, pub)
	predictor := prediction.NewService(st)

	apiGroup := r.Group("/")
	apiGroup.Use(auth.APIKeyMiddleware(cfg.Auth.Keys()))

	handlers.RegisterTrackRoutes(apiGroup, tracker, predictor)
	handlers.RegisterPredictRoutes(apiGroup, predictor)

	return r
}

// requestID takes X-Request-ID from the caller or generates one, and puts it
// on the request context for logging.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = logging.NewRequestID()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		d := time.Since(start)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveRequest(c.Request.Method, endpoint, status, d)

		ev := logging.Ctx(c.Request.Context()).Info()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(c.Request.Context()).Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", d).
			Msg("request")
	}
}
