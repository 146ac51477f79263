package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/appointment-api/internal/handler"
	"github.com/jwalitptl/appointment-api/internal/middleware"
	"github.com/jwalitptl/appointment-api/pkg/metrics"
)

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	public  []handler.Handler
	secured []handler.Handler
	health  handler.Handler
	metrics *metrics.Metrics
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	RateLimitOff   bool
	CORSConfig     cors.Config
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// Handlers groups the route handlers by the protection they need.
type Handlers struct {
	Health  handler.Handler
	Public  []handler.Handler
	Secured []handler.Handler
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		public:  handlers.Public,
		secured: handlers.Secured,
		health:  handlers.Health,
		metrics: m,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(config.Logger),
		m.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORSConfig),
	)

	if !config.RateLimitOff {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() *gin.Engine {
	if r.metrics != nil {
		r.engine.GET("/metrics", r.metrics.Handler())
	}

	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	if r.health != nil {
		r.health.RegisterRoutes(api)
	}

	for _, h := range r.public {
		h.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.secured {
		h.RegisterRoutes(protected)
	}

	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
