package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// DatabaseHealth is the part of the database the health check needs
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Stats() (persistence.ConnectionStats, error)
}

// HealthHandler reports service liveness
type HealthHandler struct {
	BaseHandler
	db DatabaseHealth
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DatabaseHealth) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status   string                       `json:"status"`
	Time     string                       `json:"time"`
	Database string                       `json:"database"`
	Pool     *persistence.ConnectionStats `json:"pool,omitempty"`
}

// Health pings the database and answers 503 when it is unreachable
func (h *HealthHandler) Health(c *gin.Context) {
	now := time.Now().Format(time.RFC3339)
	if err := h.db.Ping(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context()).Warn("Health check failed", zap.Error(err))
		h.ServiceUnavailable(c, "database unreachable")
		return
	}

	resp := HealthResponse{Status: "healthy", Time: now, Database: "ok"}
	if stats, err := h.db.Stats(); err == nil {
		resp.Pool = &stats
	}
	h.Success(c, resp)
}
