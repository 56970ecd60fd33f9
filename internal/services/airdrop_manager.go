package services

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/events"
	"airdrop-backend/internal/merkle"
	"airdrop-backend/internal/metrics"
	"airdrop-backend/internal/models"
	domain "airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// AirdropManager is the facade over planning, commitment, and execution.
// Constructed once at process start and passed to callers explicitly.
type AirdropManager struct {
	planner  *BatchPlanner
	executor *DistributionExecutor
	token    clients.TokenContract
	emitter  *events.Emitter
	network  *config.NetworkConfig
	db       *gorm.DB
}

// DistributionSummary totals one distribution request.
type DistributionSummary struct {
	CycleID        string   `json:"cycle_id,omitempty"`
	BatchCount     int      `json:"batch_count"`
	CompletedCount int      `json:"completed_count"`
	FailedCount    int      `json:"failed_count"`
	RecipientCount int      `json:"recipient_count"`
	TotalAmount    *big.Int `json:"-"`
	TotalAmountWei string   `json:"total_amount_wei"`
	FailedBatchIDs []string `json:"failed_batch_ids,omitempty"`
}

// NewAirdropManager wires the manager from its collaborators.
func NewAirdropManager(
	planner *BatchPlanner,
	executor *DistributionExecutor,
	token clients.TokenContract,
	emitter *events.Emitter,
	network *config.NetworkConfig,
	db *gorm.DB,
) *AirdropManager {
	return &AirdropManager{
		planner:  planner,
		executor: executor,
		token:    token,
		emitter:  emitter,
		network:  network,
		db:       db,
	}
}

// QueueAirdrop validates and distributes an explicit recipient list, e.g.
// from an admin command. Criteria is a free-form label carried on the event.
func (am *AirdropManager) QueueAirdrop(ctx context.Context, recipients []common.Address, amounts []*big.Int, criteria string) (*DistributionSummary, error) {
	if len(recipients) != len(amounts) {
		return nil, fmt.Errorf("%d recipients vs %d amounts: %w", len(recipients), len(amounts), domain.ErrInvalidInput)
	}

	am.emitter.Emit(events.EventAirdropQueued, map[string]interface{}{
		"recipient_count": len(recipients),
		"criteria":        criteria,
	})
	log.Printf("📬 [AirdropManager] Queued airdrop: %d recipients (criteria=%q)", len(recipients), criteria)

	return am.Distribute(ctx, recipients, amounts, "")
}

// Distribute plans batches for the pairs and executes them sequentially, so
// submissions never race on the signer nonce. A batch that exhausts its
// retries is routed to the dead-letter queue exactly once; the rest of the
// batches still run.
func (am *AirdropManager) Distribute(ctx context.Context, recipients []common.Address, amounts []*big.Int, cycleID string) (*DistributionSummary, error) {
	batches, err := am.planner.CreateOptimalBatches(recipients, amounts)
	if err != nil {
		return nil, err
	}

	summary := &DistributionSummary{
		CycleID:     cycleID,
		BatchCount:  len(batches),
		TotalAmount: new(big.Int),
	}

	for _, batch := range batches {
		batch.CycleID = cycleID
		if err := am.executor.ExecuteAirdropWithRetry(ctx, batch); err != nil {
			log.Printf("❌ [AirdropManager] Batch %s failed permanently: %v", batch.ID, err)
			am.enqueueFailedBatch(batch, err)
			summary.FailedCount++
			summary.FailedBatchIDs = append(summary.FailedBatchIDs, batch.ID)
			continue
		}

		summary.CompletedCount++
		summary.RecipientCount += len(batch.Recipients)
		summary.TotalAmount.Add(summary.TotalAmount, batch.TotalAmount())
	}

	summary.TotalAmountWei = summary.TotalAmount.String()
	if summary.FailedCount > 0 {
		return summary, fmt.Errorf("%d of %d batches failed", summary.FailedCount, summary.BatchCount)
	}
	return summary, nil
}

// enqueueFailedBatch writes the dead-letter entry and announces it. Called
// exactly once per failed batch.
func (am *AirdropManager) enqueueFailedBatch(batch *domain.AirdropBatch, cause error) {
	entry := &models.FailedAirdropBatch{
		ID:            batch.ID,
		Status:        models.FailedAirdropBatchStatusPending,
		MerkleRoot:    batch.MerkleRoot.Hex(),
		ExpiryTime:    batch.ExpiryTime,
		ChainID:       am.network.ChainID,
		MaxRetries:    10,
		NextRetryAt:   time.Now(),
		OriginalError: cause.Error(),
		LastError:     cause.Error(),
	}
	if err := entry.SetPayload(batch.Recipients, batch.Amounts); err != nil {
		log.Printf("❌ [AirdropManager] Failed to serialize dead-letter payload for batch %s: %v", batch.ID, err)
		return
	}

	if am.db != nil {
		if err := am.db.Create(entry).Error; err != nil {
			log.Printf("❌ [AirdropManager] Failed to enqueue batch %s into dead-letter queue: %v", batch.ID, err)
			return
		}
	}
	metrics.RetryQueueDepth.WithLabelValues(string(models.FailedAirdropBatchStatusPending)).Inc()

	am.emitter.Emit(events.EventBatchQueued, map[string]interface{}{
		"batch_id":        batch.ID,
		"recipient_count": len(batch.Recipients),
		"total_amount":    batch.TotalAmount().String(),
		"error":           cause.Error(),
	})
	log.Printf("📮 [AirdropManager] Batch %s enqueued for later retry", batch.ID)
}

// GetAirdropStatus reads a recipient's on-chain claim status.
func (am *AirdropManager) GetAirdropStatus(ctx context.Context, address common.Address) (*domain.ClaimStatus, error) {
	return am.token.AirdropStatus(ctx, address)
}

// VerifyAirdropClaim checks a Merkle proof against a batch root.
func (am *AirdropManager) VerifyAirdropClaim(recipient common.Address, amount *big.Int, proof []common.Hash, root common.Hash) bool {
	return merkle.VerifyProof(recipient, amount, proof, root)
}

// Emitter exposes the lifecycle registry for observers (websocket fanout).
func (am *AirdropManager) Emitter() *events.Emitter {
	return am.emitter
}
