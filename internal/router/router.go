package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/securequery/agent-api/internal/middleware"
	"github.com/securequery/agent-api/internal/model"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine *gin.Engine
}

type Config struct {
	Environment      string
	QueriesPerMinute int
}

// New assembles the HTTP surface. The query routes sit behind
// authentication and the per-user rate limit; audit review is admin only;
// health and metrics stay open for the platform.
func New(
	cfg Config,
	auth *middleware.AuthMiddleware,
	queryH Handler,
	auditH Handler,
	healthH Handler,
	logger zerolog.Logger,
) *Router {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.SecurityHeaders())
	engine.Use(middleware.ErrorHandler())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	healthH.RegisterRoutes(engine.Group(""))

	rateLimiter := middleware.NewRateLimiter(cfg.QueriesPerMinute)

	api := engine.Group("/api/v1")
	api.Use(auth.Authenticate())
	{
		queries := api.Group("")
		queries.Use(rateLimiter.RateLimit())
		queryH.RegisterRoutes(queries)

		admin := api.Group("")
		admin.Use(auth.RequireRole(model.RoleAdmin))
		auditH.RegisterRoutes(admin)
	}

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
