package handlers

import (
	"net/http"
	"strconv"

	"airdrop-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RetryHandler exposes the failed-batch retry queue to the admin console.
type RetryHandler struct {
	retryService *services.FailedBatchRetryService
	logger       *logrus.Logger
}

func NewRetryHandler(retryService *services.FailedBatchRetryService, logger *logrus.Logger) *RetryHandler {
	return &RetryHandler{retryService: retryService, logger: logger}
}

// ListFailedBatchesHandler handles GET /api/admin/retry-queue.
func (h *RetryHandler) ListFailedBatchesHandler(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "limit must be between 1 and 1000",
				"code":    "INVALID_LIMIT",
			})
			return
		}
		limit = parsed
	}

	entries, err := h.retryService.ListEntries(c.Query("status"), limit)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list retry queue")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to query retry queue",
			"code":    "DB_QUERY_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": entries,
		"count":   len(entries),
	})
}

type abandonBatchRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// AbandonFailedBatchHandler handles POST /api/admin/retry-queue/:id/abandon.
func (h *RetryHandler) AbandonFailedBatchHandler(c *gin.Context) {
	id := c.Param("id")

	var req abandonBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "reason is required",
			"code":    "INVALID_REQUEST",
		})
		return
	}

	if err := h.retryService.AbandonEntry(id, req.Reason); err != nil {
		h.logger.WithFields(logrus.Fields{
			"batch_id": id,
			"error":    err.Error(),
		}).Warn("Failed to abandon retry entry")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "ABANDON_FAILED",
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"batch_id": id,
		"username": c.GetString("admin_username"),
		"reason":   req.Reason,
	}).Info("Retry entry abandoned by admin")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Batch abandoned",
	})
}
