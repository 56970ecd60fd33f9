package services

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/events"
	"airdrop-backend/internal/metrics"
	"airdrop-backend/internal/models"
	domain "airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// FailedBatchRetryService drains the dead-letter queue: batches whose
// in-process retries were exhausted get resubmitted on an exponential
// backoff schedule until they recover or run out of retries.
type FailedBatchRetryService struct {
	db      *gorm.DB
	token   clients.TokenContract
	gas     clients.GasOracle
	emitter *events.Emitter

	maxGasPriceGwei int64
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewFailedBatchRetryService wires the retry service.
func NewFailedBatchRetryService(db *gorm.DB, token clients.TokenContract, gas clients.GasOracle, emitter *events.Emitter, maxGasPriceGwei int64) *FailedBatchRetryService {
	return &FailedBatchRetryService{
		db:              db,
		token:           token,
		gas:             gas,
		emitter:         emitter,
		maxGasPriceGwei: maxGasPriceGwei,
		stopChan:        make(chan struct{}),
	}
}

// Start scans the queue on the given interval.
func (s *FailedBatchRetryService) Start(interval time.Duration) {
	log.Printf("🚀 [RetryService] Starting dead-letter retry service, scan interval: %v", interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.ProcessDueBatches(context.Background()); err != nil {
					log.Printf("❌ [RetryService] Scan failed: %v", err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop shuts the scan loop down.
func (s *FailedBatchRetryService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Println("✅ [RetryService] Stopped")
}

// ProcessDueBatches retries every pending entry whose backoff deadline has
// passed. One entry's failure does not stop the rest.
func (s *FailedBatchRetryService) ProcessDueBatches(ctx context.Context) error {
	var due []models.FailedAirdropBatch
	if err := s.db.Where("status = ? AND next_retry_at <= ?",
		models.FailedAirdropBatchStatusPending,
		time.Now()).Find(&due).Error; err != nil {
		return fmt.Errorf("failed to query dead-letter queue: %w", err)
	}

	s.updateQueueDepthMetrics()

	if len(due) == 0 {
		return nil
	}
	log.Printf("🔄 [RetryService] %d batches due for retry", len(due))

	for i := range due {
		if err := s.retryOne(ctx, &due[i]); err != nil {
			log.Printf("❌ [RetryService] Retry of batch %s failed: %v", due[i].ID, err)
		}
	}
	return nil
}

// retryOne resubmits a single dead-letter entry.
func (s *FailedBatchRetryService) retryOne(ctx context.Context, entry *models.FailedAirdropBatch) error {
	// The query already filters on status and due time, but the entry can be
	// touched between query and processing. Re-check before mutating.
	if !entry.ShouldRetry() {
		log.Printf("⏭️ [RetryService] Batch %s no longer due (status=%s), skipping", entry.ID, entry.Status)
		return nil
	}
	log.Printf("🔍 [RetryService] Retrying batch %s (attempt %d/%d)", entry.ID, entry.RetryCount+1, entry.MaxRetries)

	entry.Status = models.FailedAirdropBatchStatusRetrying
	if err := s.db.Save(entry).Error; err != nil {
		return fmt.Errorf("failed to mark batch as retrying: %w", err)
	}

	recipients, amounts, err := entry.Payload()
	if err != nil {
		// Corrupted payload can never succeed.
		entry.MarkAsAbandoned(fmt.Sprintf("unrecoverable payload: %v", err))
		metrics.RetryAttempts.WithLabelValues("abandoned").Inc()
		return s.db.Save(entry).Error
	}

	batch := &domain.AirdropBatch{
		ID:         entry.ID,
		Recipients: recipients,
		Amounts:    amounts,
		MerkleRoot: common.HexToHash(entry.MerkleRoot),
		ExpiryTime: entry.ExpiryTime,
	}

	receipt, err := s.submitGated(ctx, batch)
	if err != nil {
		entry.Status = models.FailedAirdropBatchStatusPending
		entry.IncrementRetry(err.Error())
		metrics.RetryAttempts.WithLabelValues(retryResult(entry)).Inc()
		if saveErr := s.db.Save(entry).Error; saveErr != nil {
			return fmt.Errorf("failed to persist retry state: %w", saveErr)
		}
		return err
	}

	entry.MarkAsRecovered(receipt.TxHash)
	metrics.RetryAttempts.WithLabelValues("recovered").Inc()
	if err := s.db.Save(entry).Error; err != nil {
		return fmt.Errorf("failed to persist recovery: %w", err)
	}
	s.markRecordRecovered(entry.ID, receipt.TxHash)

	s.emitter.Emit(events.EventBatchCompleted, map[string]interface{}{
		"batch_id":        batch.ID,
		"tx_hash":         receipt.TxHash,
		"recipient_count": len(batch.Recipients),
		"total_amount":    batch.TotalAmount().String(),
		"recovered":       true,
	})
	log.Printf("✅ [RetryService] Batch %s recovered: tx=%s", batch.ID, receipt.TxHash)
	return nil
}

// markRecordRecovered flips the batch's distribution record from failed to
// confirmed so the admin history agrees with the retry queue.
func (s *FailedBatchRetryService) markRecordRecovered(batchID, txHash string) {
	var record models.DistributionRecord
	if err := s.db.First(&record, "id = ?", batchID).Error; err != nil {
		log.Printf("⚠️ [RetryService] No distribution record for recovered batch %s: %v", batchID, err)
		return
	}
	record.MarkConfirmed(txHash)
	record.Error = ""
	if err := s.db.Save(&record).Error; err != nil {
		log.Printf("⚠️ [RetryService] Failed to update distribution record for batch %s: %v", batchID, err)
	}
}

// submitGated applies the same gas gate the executor uses before submitting.
func (s *FailedBatchRetryService) submitGated(ctx context.Context, batch *domain.AirdropBatch) (*clients.BatchReceipt, error) {
	gasPrice, err := s.gas.GasPrice(ctx)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("gas price lookup failed: %w", err))
	}

	threshold := new(big.Int).Mul(big.NewInt(s.maxGasPriceGwei), big.NewInt(1e9))
	if gasPrice.Cmp(threshold) > 0 {
		return nil, domain.Transient(fmt.Errorf("gas price still above %d gwei: %w", s.maxGasPriceGwei, domain.ErrGasPriceTooHigh))
	}

	return s.token.AirdropBatch(ctx, batch, gasPrice)
}

func retryResult(entry *models.FailedAirdropBatch) string {
	if entry.Status == models.FailedAirdropBatchStatusAbandoned {
		return "abandoned"
	}
	return "failed"
}

// updateQueueDepthMetrics refreshes the per-status gauge.
func (s *FailedBatchRetryService) updateQueueDepthMetrics() {
	statuses := []models.FailedAirdropBatchStatus{
		models.FailedAirdropBatchStatusPending,
		models.FailedAirdropBatchStatusRetrying,
		models.FailedAirdropBatchStatusRecovered,
		models.FailedAirdropBatchStatusAbandoned,
	}
	for _, status := range statuses {
		var count int64
		if err := s.db.Model(&models.FailedAirdropBatch{}).Where("status = ?", status).Count(&count).Error; err == nil {
			metrics.RetryQueueDepth.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}

// ListEntries returns dead-letter entries for the admin API, newest first.
func (s *FailedBatchRetryService) ListEntries(status string, limit int) ([]models.FailedAirdropBatch, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var entries []models.FailedAirdropBatch
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list dead-letter entries: %w", err)
	}
	return entries, nil
}

// AbandonEntry closes a pending entry on operator request.
func (s *FailedBatchRetryService) AbandonEntry(id, reason string) error {
	var entry models.FailedAirdropBatch
	if err := s.db.First(&entry, "id = ?", id).Error; err != nil {
		return fmt.Errorf("dead-letter entry %s not found: %w", id, err)
	}
	if entry.Status == models.FailedAirdropBatchStatusRecovered {
		return fmt.Errorf("entry %s already recovered", id)
	}

	entry.MarkAsAbandoned(reason)
	if err := s.db.Save(&entry).Error; err != nil {
		return fmt.Errorf("failed to abandon entry %s: %w", id, err)
	}
	metrics.RetryAttempts.WithLabelValues("abandoned").Inc()
	log.Printf("🗑️ [RetryService] Batch %s abandoned by operator: %s", id, reason)
	return nil
}
