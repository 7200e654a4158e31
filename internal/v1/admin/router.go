package admin

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// serviceName tags every span this process emits, traced or not — emitting
// spans under a no-op tracer when tracing.InitTracer was never called is
// the OpenTelemetry default, so otelgin.Middleware is safe to mount
// unconditionally.
const serviceName = "skyoffice-presence"

// Router builds the Admin API's gin engine: CORS, panic recovery, a
// Prometheus scrape endpoint, and the nine Admin API routes, each gated by
// the rate limiter bucket appropriate to its route group.
func Router(deps Deps, limiter *RateLimiter, allowedOrigins []string) *gin.Engine {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}
	a := &api{deps: deps}

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(limiter.GlobalMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", a.healthz)

	apiGroup := router.Group("/api")
	{
		roomsGroup := apiGroup.Group("")
		roomsGroup.Use(limiter.RoomsMiddleware())
		roomsGroup.GET("/rooms/by-namespace/:slug", a.roomByNamespace)
		roomsGroup.DELETE("/rooms/:slug", a.deleteRoom)
		roomsGroup.POST("/pathfind", a.pathfind)

		npcsGroup := apiGroup.Group("")
		npcsGroup.Use(limiter.NpcsMiddleware())
		npcsGroup.POST("/deploy-character", a.deployCharacter)
		npcsGroup.GET("/npcs", a.listNpcs)
		npcsGroup.DELETE("/npcs/:agentId", a.deleteNpc)
		npcsGroup.POST("/npcs/:agentId/persist", a.persistNpcState)
		npcsGroup.GET("/offices/:officeId/agents", a.officeAgents)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, fail("route not found"))
	})

	return router
}
