// Package httpapi wires the Gin transport to the warnings service, the shared
// middleware, and the route handlers.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: correlation id for logs and error bodies
//  3. Access log (request-scoped, or header-scrubbing with LogHeaders)
//  4. Recovery: after the logger so panics carry the request id
//  5. Body size limit
//  6. Metrics
//  7. Idempotency validator, before the limiter so replays are not charged
//  8. Rate limiter per client IP
//  9. CORS and security headers
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/config"
	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/http/handlers"
	"github.com/tbourn/go-meteo-warnings/internal/http/middleware"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
)

var (
	corsMethods = []string{"GET", "POST", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "ETag", "Idempotency-Replayed", "Content-Length"}
)

// RegisterRoutes installs the middleware chain, the operational endpoints
// (/health, /metrics, optional /swagger), and the advisory API under
// cfg.APIBasePath. db backs idempotency and ETags; svc answers the API.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc handlers.WarningsService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	if cfg.LogHeaders {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key"}}))
	} else {
		r.Use(middleware.Logger())
	}
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	useCORS(r, cfg.CORS.AllowedOrigins)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc, handlers.Options{
		DB:             db,
		Location:       domain.FeedLocation(cfg.Upstream.FeedTimezone),
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/warnings", h.CurrentForPoint)
		api.GET("/warnings/live", h.LiveForPoint)
		api.GET("/warnings/future", h.FutureForPoint)
		api.GET("/warnings/teryt/:code", h.CurrentForRegion)
		api.GET("/warnings/teryt/:code/future", h.FutureForRegion)

		api.GET("/history", h.HistoryForPoint)
		api.GET("/history/teryt/:code", h.HistoryForRegion)

		api.GET("/status", h.Status)

		api.POST("/snapshots", h.CreateSnapshot)
		api.GET("/snapshots/:id", h.GetSnapshot)
	}
}

// useCORS allows every origin when origins is empty, otherwise only the
// listed ones (echoed back with Vary: Origin).
func useCORS(r *gin.Engine, origins []string) {
	if len(origins) == 0 {
		// Also for requests without Origin, so plain probes see the header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    corsMethods,
			AllowHeaders:    corsHeaders,
			ExposeHeaders:   corsExpose,
			MaxAge:          12 * time.Hour,
		}))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  corsMethods,
		AllowHeaders:  corsHeaders,
		ExposeHeaders: corsExpose,
		MaxAge:        12 * time.Hour,
	}))
}

// limitBody caps request bodies at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
