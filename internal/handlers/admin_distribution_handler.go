package handlers

import (
	"net/http"
	"strconv"

	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
	"airdrop-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminDistributionHandler controls the autonomous distribution scheduler and
// exposes distribution history for the admin console.
type AdminDistributionHandler struct {
	scheduler *services.AutonomousDistributionService
	db        *gorm.DB
	cfg       *config.AdminConfig
	logger    *logrus.Logger
}

func NewAdminDistributionHandler(
	scheduler *services.AutonomousDistributionService,
	db *gorm.DB,
	cfg *config.AdminConfig,
	logger *logrus.Logger,
) *AdminDistributionHandler {
	return &AdminDistributionHandler{
		scheduler: scheduler,
		db:        db,
		cfg:       cfg,
		logger:    logger,
	}
}

type triggerDistributionRequest struct {
	TOTPCode string `json:"totp_code" binding:"required"`
}

// TriggerDistributionHandler handles POST /api/admin/distributions/trigger.
// Triggering moves tokens, so a fresh TOTP code is required on top of the
// session token.
func (h *AdminDistributionHandler) TriggerDistributionHandler(c *gin.Context) {
	var req triggerDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "totp_code is required",
			"code":    "INVALID_REQUEST",
		})
		return
	}

	if h.cfg.TOTPSecret == "" || !totp.Validate(req.TOTPCode, h.cfg.TOTPSecret) {
		h.logger.WithFields(logrus.Fields{
			"username":  c.GetString("admin_username"),
			"client_ip": c.ClientIP(),
		}).Warn("Distribution trigger rejected: invalid TOTP code")
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid TOTP code",
			"code":    "INVALID_TOTP",
		})
		return
	}

	started := h.scheduler.TriggerCycle(c.Request.Context())
	if !started {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "A distribution cycle is already running",
			"code":    "CYCLE_IN_PROGRESS",
		})
		return
	}

	h.logger.WithField("username", c.GetString("admin_username")).Info("Distribution cycle triggered manually")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Distribution cycle completed",
	})
}

// SchedulerStatusHandler handles GET /api/admin/distributions/status.
func (h *AdminDistributionHandler) SchedulerStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"running": h.scheduler.IsRunning(),
	})
}

// ListDistributionsHandler handles GET /api/admin/distributions.
func (h *AdminDistributionHandler) ListDistributionsHandler(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "limit must be between 1 and 500",
				"code":    "INVALID_LIMIT",
			})
			return
		}
		limit = parsed
	}

	query := h.db.Order("created_at DESC").Limit(limit)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if cycleID := c.Query("cycle_id"); cycleID != "" {
		query = query.Where("cycle_id = ?", cycleID)
	}

	var records []models.DistributionRecord
	if err := query.Find(&records).Error; err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list distribution records")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to query distribution history",
			"code":    "DB_QUERY_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"distributions": records,
		"count":         len(records),
	})
}
