package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusFunc reports live component state for /health.
type StatusFunc func() map[string]any

// NewRouter serves /health and /metrics for a long-running CLI process.
func NewRouter(app string, logger zerolog.Logger, status StatusFunc) *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(RequestMetricsMiddleware())
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"service": app,
		}
		if status != nil {
			for k, v := range status() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
