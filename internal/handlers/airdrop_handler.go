package handlers

import (
	"math/big"
	"net/http"

	"airdrop-backend/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AirdropHandler exposes manual distribution and claim inspection endpoints.
type AirdropHandler struct {
	manager *services.AirdropManager
	logger  *logrus.Logger
}

func NewAirdropHandler(manager *services.AirdropManager, logger *logrus.Logger) *AirdropHandler {
	return &AirdropHandler{manager: manager, logger: logger}
}

// QueueAirdropRequest is a manual distribution request. Amounts are decimal
// wei strings so callers never lose precision in JSON numbers.
type QueueAirdropRequest struct {
	Recipients []string `json:"recipients" binding:"required"`
	Amounts    []string `json:"amounts" binding:"required"`
	Criteria   string   `json:"criteria"`
}

// QueueAirdropHandler handles POST /api/admin/airdrops.
func (h *AirdropHandler) QueueAirdropHandler(c *gin.Context) {
	var req QueueAirdropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	recipients, amounts, err := parseRecipients(req.Recipients, req.Amounts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_RECIPIENTS",
		})
		return
	}

	summary, err := h.manager.QueueAirdrop(c.Request.Context(), recipients, amounts, req.Criteria)
	if err != nil && summary == nil {
		h.logger.WithField("error", err.Error()).Error("Manual airdrop rejected")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "AIRDROP_REJECTED",
		})
		return
	}

	status := http.StatusOK
	if err != nil {
		// Partial failure: completed batches are on chain, failed ones wait
		// in the retry queue.
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"success": err == nil,
		"summary": summary,
	})
}

// AirdropStatusHandler handles GET /api/airdrops/status/:address.
func (h *AirdropHandler) AirdropStatusHandler(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid wallet address",
			"code":    "INVALID_ADDRESS",
		})
		return
	}

	status, err := h.manager.GetAirdropStatus(c.Request.Context(), common.HexToAddress(address))
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err.Error(),
		}).Error("Failed to read airdrop status")
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Unable to read claim status from chain",
			"code":    "CHAIN_READ_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": common.HexToAddress(address).Hex(),
		"status":  status,
	})
}

// VerifyClaimRequest carries a Merkle inclusion check.
type VerifyClaimRequest struct {
	Recipient  string   `json:"recipient" binding:"required"`
	Amount     string   `json:"amount" binding:"required"`
	MerkleRoot string   `json:"merkle_root" binding:"required"`
	Proof      []string `json:"proof"`
}

// VerifyClaimHandler handles POST /api/airdrops/verify.
func (h *AirdropHandler) VerifyClaimHandler(c *gin.Context) {
	var req VerifyClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"code":    "INVALID_REQUEST",
		})
		return
	}

	if !common.IsHexAddress(req.Recipient) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid recipient address",
			"code":    "INVALID_ADDRESS",
		})
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Amount must be a non-negative decimal wei string",
			"code":    "INVALID_AMOUNT",
		})
		return
	}

	proof := make([]common.Hash, 0, len(req.Proof))
	for _, p := range req.Proof {
		proof = append(proof, common.HexToHash(p))
	}

	valid := h.manager.VerifyAirdropClaim(
		common.HexToAddress(req.Recipient),
		amount,
		proof,
		common.HexToHash(req.MerkleRoot),
	)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"valid":   valid,
	})
}

func parseRecipients(rawRecipients, rawAmounts []string) ([]common.Address, []*big.Int, error) {
	if len(rawRecipients) != len(rawAmounts) {
		return nil, nil, errMismatchedArrays
	}
	if len(rawRecipients) == 0 {
		return nil, nil, errNoRecipients
	}

	recipients := make([]common.Address, 0, len(rawRecipients))
	amounts := make([]*big.Int, 0, len(rawAmounts))
	for i, raw := range rawRecipients {
		if !common.IsHexAddress(raw) {
			return nil, nil, &recipientError{index: i, reason: "invalid address"}
		}
		amount, ok := new(big.Int).SetString(rawAmounts[i], 10)
		if !ok || amount.Sign() <= 0 {
			return nil, nil, &recipientError{index: i, reason: "amount must be a positive decimal wei string"}
		}
		recipients = append(recipients, common.HexToAddress(raw))
		amounts = append(amounts, amount)
	}
	return recipients, amounts, nil
}
