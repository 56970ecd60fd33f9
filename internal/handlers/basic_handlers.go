package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	errMismatchedArrays = errors.New("recipients and amounts must have the same length")
	errNoRecipients     = errors.New("at least one recipient is required")
)

type recipientError struct {
	index  int
	reason string
}

func (e *recipientError) Error() string {
	return fmt.Sprintf("recipient %d: %s", e.index, e.reason)
}

// HealthHandler reports liveness of the service and its dependencies.
type HealthHandler struct {
	db   *gorm.DB
	nats *clients.NATSClient
}

func NewHealthHandler(db *gorm.DB, nats *clients.NATSClient) *HealthHandler {
	return &HealthHandler{db: db, nats: nats}
}

// HealthCheckHandler handles GET /api/health.
func (h *HealthHandler) HealthCheckHandler(c *gin.Context) {
	dbStatus := "healthy"
	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		dbStatus = "unhealthy"
		metrics.DBConnectionStatus.Set(0)
	} else {
		metrics.DBConnectionStatus.Set(1)
	}

	natsStatus := "healthy"
	if h.nats == nil || !h.nats.IsConnected() {
		natsStatus = "disconnected"
	}

	status := http.StatusOK
	overall := "ok"
	if dbStatus != "healthy" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":   overall,
		"service":  "airdrop-backend",
		"database": dbStatus,
		"nats":     natsStatus,
	})
}
