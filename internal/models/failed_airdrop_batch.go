package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// FailedAirdropBatchStatus dead-letter entry status
type FailedAirdropBatchStatus string

const (
	FailedAirdropBatchStatusPending   FailedAirdropBatchStatus = "pending"   // waiting for retry
	FailedAirdropBatchStatusRetrying  FailedAirdropBatchStatus = "retrying"  // retry in flight
	FailedAirdropBatchStatusRecovered FailedAirdropBatchStatus = "recovered" // resubmission confirmed
	FailedAirdropBatchStatusAbandoned FailedAirdropBatchStatus = "abandoned" // reached maximum retry attempts or abandoned by operator
)

// FailedAirdropBatch is a distribution batch whose on-chain submission
// exhausted its in-process attempts. The retry service picks entries up by
// NextRetryAt; operators can abandon them through the admin API.
type FailedAirdropBatch struct {
	ID     string                   `json:"id" gorm:"primaryKey"` // batch UUID
	Status FailedAirdropBatchStatus `json:"status" gorm:"not null;default:pending;index"`

	// Batch payload, frozen at failure time. Recipients and amounts are
	// parallel JSON arrays; amounts are decimal wei strings.
	RecipientsJSON string    `json:"recipients_json" gorm:"type:text;not null"`
	AmountsJSON    string    `json:"amounts_json" gorm:"type:text;not null"`
	MerkleRoot     string    `json:"merkle_root" gorm:"not null"`
	ExpiryTime     time.Time `json:"expiry_time"`

	ChainID int    `json:"chain_id"`
	TxHash  string `json:"tx_hash"` // set once a resubmission confirms

	RetryCount  int       `json:"retry_count" gorm:"default:0"`
	MaxRetries  int       `json:"max_retries" gorm:"default:10"`
	NextRetryAt time.Time `json:"next_retry_at" gorm:"index"`

	LastError     string `json:"last_error" gorm:"type:text"`
	OriginalError string `json:"original_error" gorm:"type:text"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// CalculateNextRetryTime returns the exponential backoff deadline for the
// next retry: 10s, 20s, 40s... capped at 10 minutes.
func (fb *FailedAirdropBatch) CalculateNextRetryTime() time.Time {
	baseDelay := 10 * time.Second

	delay := baseDelay * time.Duration(1<<uint(fb.RetryCount))
	maxDelay := 10 * time.Minute

	if delay > maxDelay {
		delay = maxDelay
	}

	return time.Now().Add(delay)
}

// ShouldRetry reports whether the entry is due for another attempt.
func (fb *FailedAirdropBatch) ShouldRetry() bool {
	return fb.Status == FailedAirdropBatchStatusPending &&
		fb.RetryCount < fb.MaxRetries &&
		time.Now().After(fb.NextRetryAt)
}

// IncrementRetry records a failed attempt and schedules the next one, or
// abandons the entry when the retry budget is spent.
func (fb *FailedAirdropBatch) IncrementRetry(errorMsg string) {
	fb.RetryCount++
	fb.LastError = errorMsg
	fb.NextRetryAt = fb.CalculateNextRetryTime()

	if fb.RetryCount >= fb.MaxRetries {
		fb.Status = FailedAirdropBatchStatusAbandoned
		now := time.Now()
		fb.ResolvedAt = &now
	}
}

// MarkAsRecovered records a confirmed resubmission.
func (fb *FailedAirdropBatch) MarkAsRecovered(actualTxHash string) {
	fb.Status = FailedAirdropBatchStatusRecovered
	fb.TxHash = actualTxHash
	now := time.Now()
	fb.ResolvedAt = &now
}

// MarkAsAbandoned closes the entry without further retries.
func (fb *FailedAirdropBatch) MarkAsAbandoned(reason string) {
	fb.Status = FailedAirdropBatchStatusAbandoned
	fb.LastError = reason
	now := time.Now()
	fb.ResolvedAt = &now
}

// SetPayload serializes the batch recipients and amounts into the record.
func (fb *FailedAirdropBatch) SetPayload(recipients []common.Address, amounts []*big.Int) error {
	if len(recipients) != len(amounts) {
		return fmt.Errorf("payload length mismatch: %d recipients vs %d amounts", len(recipients), len(amounts))
	}

	hexAddrs := make([]string, len(recipients))
	for i, r := range recipients {
		hexAddrs[i] = r.Hex()
	}
	weiAmounts := make([]string, len(amounts))
	for i, a := range amounts {
		weiAmounts[i] = a.String()
	}

	recipientsJSON, err := json.Marshal(hexAddrs)
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}
	amountsJSON, err := json.Marshal(weiAmounts)
	if err != nil {
		return fmt.Errorf("failed to marshal amounts: %w", err)
	}

	fb.RecipientsJSON = string(recipientsJSON)
	fb.AmountsJSON = string(amountsJSON)
	return nil
}

// Payload deserializes the stored recipients and amounts.
func (fb *FailedAirdropBatch) Payload() ([]common.Address, []*big.Int, error) {
	var hexAddrs []string
	if err := json.Unmarshal([]byte(fb.RecipientsJSON), &hexAddrs); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
	}
	var weiAmounts []string
	if err := json.Unmarshal([]byte(fb.AmountsJSON), &weiAmounts); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal amounts: %w", err)
	}
	if len(hexAddrs) != len(weiAmounts) {
		return nil, nil, fmt.Errorf("stored payload length mismatch: %d recipients vs %d amounts", len(hexAddrs), len(weiAmounts))
	}

	recipients := make([]common.Address, len(hexAddrs))
	amounts := make([]*big.Int, len(weiAmounts))
	for i := range hexAddrs {
		if !common.IsHexAddress(hexAddrs[i]) {
			return nil, nil, fmt.Errorf("stored recipient %q is not a valid address", hexAddrs[i])
		}
		recipients[i] = common.HexToAddress(hexAddrs[i])

		amount, ok := new(big.Int).SetString(weiAmounts[i], 10)
		if !ok {
			return nil, nil, fmt.Errorf("stored amount %q is not a valid integer", weiAmounts[i])
		}
		amounts[i] = amount
	}
	return recipients, amounts, nil
}
