package handlers

import (
	"fmt"
	"net/http"
	"time"

	"airdrop-backend/internal/config"
	"airdrop-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthHandler issues admin session tokens for the distribution console.
type AdminAuthHandler struct {
	cfg    *config.AdminConfig
	logger *logrus.Logger
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

type AdminLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

func NewAdminAuthHandler(cfg *config.AdminConfig, logger *logrus.Logger) *AdminAuthHandler {
	if cfg.TOTPSecret == "" || cfg.PasswordHash == "" {
		logrus.Warn("⚠️ ADMIN_TOTP_SECRET or ADMIN_PASSWORD_HASH not configured, admin login will be rejected")
	}
	return &AdminAuthHandler{cfg: cfg, logger: logger}
}

// LoginHandler handles POST /api/admin/login.
func (h *AdminAuthHandler) LoginHandler(c *gin.Context) {
	if h.cfg.TOTPSecret == "" || h.cfg.PasswordHash == "" {
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{
			Success: false,
			Message: "Server misconfiguration: admin credentials not set",
		})
		return
	}

	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AdminLoginResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	expectedUsername := h.cfg.Username
	if expectedUsername == "" {
		expectedUsername = "admin"
	}

	// Generic message for every credential failure.
	if req.Username != expectedUsername {
		h.rejectLogin(c, req.Username, "unknown username")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)); err != nil {
		h.rejectLogin(c, req.Username, "password mismatch")
		return
	}
	if !totp.Validate(req.TOTPCode, h.cfg.TOTPSecret) {
		h.rejectLogin(c, req.Username, "invalid TOTP code")
		return
	}

	token, err := h.generateToken(req.Username)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to sign admin token")
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	h.logger.WithField("username", req.Username).Info("Admin login successful")
	c.JSON(http.StatusOK, AdminLoginResponse{
		Success: true,
		Token:   token,
		Message: "Login successful",
	})
}

// GenerateTOTPSecretHandler bootstraps a TOTP secret when none is configured yet.
// Once ADMIN_TOTP_SECRET is set this endpoint refuses to mint new secrets.
func (h *AdminAuthHandler) GenerateTOTPSecretHandler(c *gin.Context) {
	if h.cfg.TOTPSecret != "" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "TOTP secret already configured",
			"code":    "TOTP_ALREADY_CONFIGURED",
		})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "GRLKRASH Airdrop Admin",
		AccountName: "admin@airdrop",
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to generate TOTP secret",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"secret":  key.Secret(),
		"url":     key.URL(),
		"message": "Save this secret to ADMIN_TOTP_SECRET before restarting the service",
	})
}

func (h *AdminAuthHandler) rejectLogin(c *gin.Context, username, reason string) {
	h.logger.WithFields(logrus.Fields{
		"username":  username,
		"reason":    reason,
		"client_ip": c.ClientIP(),
	}).Warn("Admin login rejected")
	c.JSON(http.StatusUnauthorized, AdminLoginResponse{
		Success: false,
		Message: "Invalid credentials",
	})
}

func (h *AdminAuthHandler) generateToken(username string) (string, error) {
	claims := middleware.AdminClaims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "airdrop-backend-admin",
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
