package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/events"
	"airdrop-backend/internal/metrics"
	"airdrop-backend/internal/models"
	domain "airdrop-backend/internal/types"

	"gorm.io/gorm"
)

// DistributionExecutor submits batches to the token contract with a gas-price
// gate and bounded in-process retries. A batch that exhausts its attempts is
// returned as an error; routing to the dead-letter queue is the caller's job
// so it happens exactly once.
type DistributionExecutor struct {
	token   clients.TokenContract
	gas     clients.GasOracle
	emitter *events.Emitter
	network *config.NetworkConfig
	db      *gorm.DB // optional, records submission history when set

	retryAttempts int
	retryDelay    time.Duration

	// sleep is swapped out in tests so retries do not wait in real time.
	sleep func(time.Duration)
}

// NewDistributionExecutor wires the executor. db may be nil.
func NewDistributionExecutor(
	token clients.TokenContract,
	gas clients.GasOracle,
	emitter *events.Emitter,
	network *config.NetworkConfig,
	rules config.DistributionConfig,
	db *gorm.DB,
) *DistributionExecutor {
	return &DistributionExecutor{
		token:         token,
		gas:           gas,
		emitter:       emitter,
		network:       network,
		db:            db,
		retryAttempts: rules.RetryAttempts,
		retryDelay:    time.Duration(rules.RetryDelaySeconds) * time.Second,
		sleep:         time.Sleep,
	}
}

// maxGasPriceWei is the submission gate in wei.
func (de *DistributionExecutor) maxGasPriceWei() *big.Int {
	return new(big.Int).Mul(big.NewInt(de.network.MaxGasPriceGwei), big.NewInt(1e9))
}

// ExecuteAirdropWithRetry submits the batch, retrying up to the configured
// attempt count with a fixed delay between attempts. Gas price above the
// threshold counts as a transient failure and consumes an attempt.
func (de *DistributionExecutor) ExecuteAirdropWithRetry(ctx context.Context, batch *domain.AirdropBatch) error {
	if len(batch.Recipients) == 0 || len(batch.Recipients) != len(batch.Amounts) {
		return fmt.Errorf("batch %s has malformed payload: %w", batch.ID, domain.ErrInvalidInput)
	}

	record := de.newRecord(batch)

	var lastErr error
	for attempt := 1; attempt <= de.retryAttempts; attempt++ {
		if attempt > 1 {
			log.Printf("⏳ [Executor] Batch %s attempt %d/%d in %v", batch.ID, attempt, de.retryAttempts, de.retryDelay)
			de.sleep(de.retryDelay)
		}

		receipt, err := de.submitOnce(ctx, batch)
		if err == nil {
			de.recordSuccess(record, batch, receipt)
			return nil
		}

		lastErr = err
		log.Printf("⚠️ [Executor] Batch %s attempt %d/%d failed: %v", batch.ID, attempt, de.retryAttempts, err)

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	de.recordFailure(record, lastErr)
	metrics.BatchesFailed.WithLabelValues(failureReason(lastErr)).Inc()
	return fmt.Errorf("batch %s failed after %d attempts: %w", batch.ID, de.retryAttempts, lastErr)
}

// submitOnce performs a single gated submission attempt.
func (de *DistributionExecutor) submitOnce(ctx context.Context, batch *domain.AirdropBatch) (*clients.BatchReceipt, error) {
	gasPrice, err := de.gas.GasPrice(ctx)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("gas price lookup failed: %w", err))
	}

	gwei := new(big.Int).Div(gasPrice, big.NewInt(1e9))
	metrics.GasPriceGwei.WithLabelValues(de.network.Name).Set(float64(gwei.Int64()))

	if gasPrice.Cmp(de.maxGasPriceWei()) > 0 {
		return nil, domain.Transient(fmt.Errorf("current gas price %s gwei exceeds threshold %d gwei: %w",
			gwei.String(), de.network.MaxGasPriceGwei, domain.ErrGasPriceTooHigh))
	}

	return de.token.AirdropBatch(ctx, batch, gasPrice)
}

func (de *DistributionExecutor) newRecord(batch *domain.AirdropBatch) *models.DistributionRecord {
	record := &models.DistributionRecord{
		ID:             batch.ID,
		CycleID:        batch.CycleID,
		Status:         models.DistributionRecordStatusSubmitted,
		ChainID:        de.network.ChainID,
		MerkleRoot:     batch.MerkleRoot.Hex(),
		RecipientCount: len(batch.Recipients),
		TotalAmount:    batch.TotalAmount().String(),
		ExpiryTime:     batch.ExpiryTime,
	}
	if de.db != nil {
		if err := de.db.Create(record).Error; err != nil {
			log.Printf("⚠️ [Executor] Failed to persist distribution record %s: %v", batch.ID, err)
		}
	}
	return record
}

func (de *DistributionExecutor) recordSuccess(record *models.DistributionRecord, batch *domain.AirdropBatch, receipt *clients.BatchReceipt) {
	total := batch.TotalAmount()

	metrics.BatchesSubmitted.Inc()
	metrics.RecipientsPaid.Add(float64(len(batch.Recipients)))
	wei, _ := new(big.Float).SetInt(total).Float64()
	metrics.TokensDistributed.Add(wei)

	record.MarkConfirmed(receipt.TxHash)
	record.GasPriceGwei = new(big.Int).Div(receipt.GasPriceWei, big.NewInt(1e9)).String()
	if de.db != nil {
		if err := de.db.Save(record).Error; err != nil {
			log.Printf("⚠️ [Executor] Failed to update distribution record %s: %v", record.ID, err)
		}
	}

	de.emitter.Emit(events.EventBatchCompleted, map[string]interface{}{
		"batch_id":        batch.ID,
		"tx_hash":         receipt.TxHash,
		"block_number":    receipt.BlockNumber,
		"recipient_count": len(batch.Recipients),
		"total_amount":    total.String(),
		"merkle_root":     batch.MerkleRoot.Hex(),
	})
	log.Printf("✅ [Executor] Batch %s completed: tx=%s recipients=%d total=%s wei",
		batch.ID, receipt.TxHash, len(batch.Recipients), total.String())
}

func (de *DistributionExecutor) recordFailure(record *models.DistributionRecord, cause error) {
	record.MarkFailed(cause.Error())
	if de.db != nil {
		if err := de.db.Save(record).Error; err != nil {
			log.Printf("⚠️ [Executor] Failed to update distribution record %s: %v", record.ID, err)
		}
	}
}

// failureReason buckets the terminal error for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrGasPriceTooHigh):
		return "gas_price"
	case domain.IsTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}
