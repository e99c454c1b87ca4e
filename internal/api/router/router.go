// Package router wires the HTTP route table to the handlers.
package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/patchlens/patchlens/consts"
	"github.com/patchlens/patchlens/internal/api/handler"
	"github.com/patchlens/patchlens/internal/api/middleware"
	"github.com/patchlens/patchlens/internal/config"
	"github.com/patchlens/patchlens/internal/engine"
	"github.com/patchlens/patchlens/internal/export"
	"github.com/patchlens/patchlens/internal/llm"
	"github.com/patchlens/patchlens/internal/store"
)

// Setup configures all API routes
func Setup(r *gin.Engine, e *engine.Engine, cfg *config.Config, s store.Store, exp *export.Exporter, llmClient llm.Client) {
	// Apply global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))

	// Apply OpenTelemetry tracing middleware
	r.Use(otelgin.Middleware(consts.ServiceName))

	webhookHandler := handler.NewWebhookHandler(e, s, &cfg.Webhook)
	reviewHandler := handler.NewReviewHandler(e, s, exp)
	failureHandler := handler.NewFailureHandler(e, s)
	authHandler := handler.NewAuthHandler(cfg)
	healthHandler := handler.NewHealthHandler(s, e, llmClient)

	// Operator endpoints require a JWT only when a token hash is
	// configured; otherwise the instance runs open.
	operatorOnly := func(c *gin.Context) { c.Next() }
	if cfg.Operator.AuthEnabled() {
		operatorOnly = middleware.JWTAuth(authHandler)
	}

	r.GET("/health", healthHandler.Health)

	// Ingress (webhook is guarded by its signature, not by JWT)
	r.POST("/webhook/code-review", webhookHandler.Handle)
	r.POST("/manual-review", reviewHandler.ManualReview)
	r.POST("/review-diff", reviewHandler.ReviewDiff)

	r.POST("/auth/login", authHandler.Login)

	// Query surface (read-only)
	reviews := r.Group("/reviews")
	{
		reviews.GET("", reviewHandler.List)
		reviews.GET("/latest", reviewHandler.Latest)
		reviews.GET("/:id", reviewHandler.Get)
		reviews.GET("/:id/export", reviewHandler.Export)
		reviews.GET("/project/:project_key", reviewHandler.ListByProject)
		reviews.GET("/author/:email", reviewHandler.ListByAuthor)
		reviews.GET("/commit/:commit_id", reviewHandler.ListByCommit)
		reviews.GET("/pr/:mr_id", reviewHandler.ListByMergeRequest)
	}

	failures := r.Group("/failures")
	{
		failures.GET("", failureHandler.List)
		failures.GET("/:id", failureHandler.Get)
		failures.PATCH("/:id/resolve", operatorOnly, failureHandler.Resolve)
		failures.POST("/:id/retry", operatorOnly, failureHandler.Retry)
	}
}
