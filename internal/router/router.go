package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	appointmentHandler "github.com/medivisit/telehealth-api/internal/handler/appointment"
	authHandler "github.com/medivisit/telehealth-api/internal/handler/auth"
	chatHandler "github.com/medivisit/telehealth-api/internal/handler/chat"
	healthHandler "github.com/medivisit/telehealth-api/internal/handler/health"
	"github.com/medivisit/telehealth-api/internal/middleware"
	"github.com/medivisit/telehealth-api/internal/ws"
)

type Config struct {
	RateLimit rate.Limit
	RateBurst int
	CORS      middleware.CORSConfig
}

type Router struct {
	engine  *gin.Engine
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func newRouterMetrics(reg prometheus.Registerer) *routerMetrics {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestDuration, m.requestTotal)
	}
	return m
}

func (m *routerMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

func NewRouter(
	cfg Config,
	zl *zerolog.Logger,
	auth *middleware.AuthMiddleware,
	authH *authHandler.Handler,
	appointmentH *appointmentHandler.Handler,
	chatH *chatHandler.Handler,
	healthH *healthHandler.Handler,
	wsRouter *ws.Router,
	reg prometheus.Registerer,
) *Router {
	engine := gin.New()
	metrics := newRouterMetrics(reg)

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(zl),
		middleware.Logger(zl),
		middleware.CORS(cfg.CORS),
		middleware.ErrorHandler(zl),
		metrics.middleware(),
		middleware.RateLimit(cfg.RateLimit, cfg.RateBurst),
	)

	v1 := engine.Group("/api/v1")
	{
		authH.RegisterRoutes(v1)
		appointmentH.RegisterRoutes(v1, auth)
		chatH.RegisterRoutes(v1, auth)
	}

	root := engine.Group("")
	healthH.RegisterRoutes(root)

	engine.GET("/ws", wsRouter.ServeWS)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{engine: engine, metrics: metrics}
}

// Engine exposes the underlying gin engine for the HTTP server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
