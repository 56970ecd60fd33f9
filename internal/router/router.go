package router

import (
	"net/http"
	"strconv"
	"strings"

	"airdrop-backend/internal/config"
	"airdrop-backend/internal/handlers"
	"airdrop-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Handlers bundles every HTTP handler the router wires up.
type Handlers struct {
	Health            *handlers.HealthHandler
	Airdrop           *handlers.AirdropHandler
	AdminAuth         *handlers.AdminAuthHandler
	AdminDistribution *handlers.AdminDistributionHandler
	Retry             *handlers.RetryHandler
	WebSocket         *handlers.WebSocketHandler
}

// corsMiddleware applies the configured origin whitelist. An empty whitelist
// allows every origin.
func corsMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if len(cfg.AllowedOrigins) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, allowedOrigin := range cfg.AllowedOrigins {
				if strings.TrimSpace(allowedOrigin) == origin {
					allowed = true
					break
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin": origin,
					"path":           c.Request.URL.Path,
					"method":         c.Request.Method,
					"remote_addr":    c.ClientIP(),
				}).Warn("🚫 CORS: Request blocked, origin not in whitelist")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(cfg *config.Config, logger *logrus.Logger, h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(&cfg.CORS))

	// Operational endpoints.
	r.GET("/health", h.Health.HealthCheckHandler)
	r.GET("/api/health", h.Health.HealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public claim inspection.
	api := r.Group("/api")
	{
		api.GET("/airdrops/status/:address", h.Airdrop.AirdropStatusHandler)
		api.POST("/airdrops/verify", h.Airdrop.VerifyClaimHandler)
	}

	// Event stream for the distribution console.
	r.GET("/ws/events", h.WebSocket.HandleEvents)

	// Admin surface: IP whitelist on everything, JWT on everything but login.
	ipWhitelist := middleware.NewIPWhitelist(logger, cfg.Admin.AllowedIPs)
	adminAuth := middleware.NewAdminAuth(logger, cfg.Admin.JWTSecret)

	admin := r.Group("/api/admin")
	admin.Use(ipWhitelist.Restrict())
	{
		admin.POST("/login", h.AdminAuth.LoginHandler)
		admin.POST("/totp/generate", h.AdminAuth.GenerateTOTPSecretHandler)

		protected := admin.Group("")
		protected.Use(adminAuth.Authenticate())
		{
			protected.POST("/airdrops", h.Airdrop.QueueAirdropHandler)
			protected.GET("/distributions", h.AdminDistribution.ListDistributionsHandler)
			protected.GET("/distributions/status", h.AdminDistribution.SchedulerStatusHandler)
			protected.POST("/distributions/trigger", h.AdminDistribution.TriggerDistributionHandler)
			protected.GET("/retry-queue", h.Retry.ListFailedBatchesHandler)
			protected.POST("/retry-queue/:id/abandon", h.Retry.AbandonFailedBatchHandler)
		}
	}

	logrus.WithFields(logrus.Fields{
		"admin_ip_whitelist": len(cfg.Admin.AllowedIPs),
	}).Info("🌐 Router initialized")

	return r
}
