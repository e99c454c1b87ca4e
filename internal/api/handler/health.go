package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/consts"
	"github.com/patchlens/patchlens/internal/engine"
	"github.com/patchlens/patchlens/internal/llm"
	"github.com/patchlens/patchlens/internal/store"
	"github.com/patchlens/patchlens/pkg/logger"
)

// probeTimeout bounds the LLM reachability check so a hung provider
// cannot stall the health endpoint.
const probeTimeout = 5 * time.Second

// HealthHandler reports service health. Only the store gates the status
// code; the LLM probe is informational.
type HealthHandler struct {
	store  store.Store
	engine *engine.Engine
	llm    llm.Client
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(s store.Store, e *engine.Engine, l llm.Client) *HealthHandler {
	return &HealthHandler{store: s, engine: e, llm: l}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := "ok"
	httpStatus := http.StatusOK

	storeSection := gin.H{"status": "ok"}
	if err := h.pingStore(c.Request.Context()); err != nil {
		logger.Error("Store health check failed", zap.Error(err))
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		storeSection = gin.H{"status": "error", "error": err.Error()}
	}

	probeCtx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()
	probe := h.llm.Probe(probeCtx)
	llmSection := gin.H{
		"ok":       probe.OK,
		"provider": probe.Provider,
		"model":    probe.Model,
	}
	if probe.Detail != "" {
		llmSection["detail"] = probe.Detail
	}

	c.JSON(httpStatus, gin.H{
		"status":         status,
		"version":        consts.Version,
		"uptime_seconds": int64(consts.GetUptime().Seconds()),
		"started_at":     consts.GetStartedAt().Format(time.RFC3339),
		"store":          storeSection,
		"llm":            llmSection,
		"queue":          h.engine.Stats(),
	})
}

func (h *HealthHandler) pingStore(ctx context.Context) error {
	sqlDB, err := h.store.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
