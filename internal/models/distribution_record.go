package models

import (
	"time"
)

// DistributionRecordStatus lifecycle of a submitted batch
type DistributionRecordStatus string

const (
	DistributionRecordStatusSubmitted DistributionRecordStatus = "submitted" // tx sent, awaiting confirmation
	DistributionRecordStatusConfirmed DistributionRecordStatus = "confirmed" // receipt observed with success status
	DistributionRecordStatusFailed    DistributionRecordStatus = "failed"    // submission exhausted in-process attempts
)

// DistributionRecord is the persisted history of one batch submission. One
// row per batch per cycle; failed batches additionally land in the
// dead-letter table.
type DistributionRecord struct {
	ID      string                   `json:"id" gorm:"primaryKey"` // batch UUID
	CycleID string                   `json:"cycle_id" gorm:"index"`
	Status  DistributionRecordStatus `json:"status" gorm:"not null;index"`

	ChainID        int    `json:"chain_id"`
	TxHash         string `json:"tx_hash" gorm:"index"`
	MerkleRoot     string `json:"merkle_root" gorm:"not null"`
	RecipientCount int    `json:"recipient_count"`
	TotalAmount    string `json:"total_amount"` // decimal wei string
	GasPriceGwei   string `json:"gas_price_gwei"`

	ExpiryTime time.Time `json:"expiry_time"`

	Error string `json:"error,omitempty" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

// MarkConfirmed records the confirmation of the batch transaction.
func (dr *DistributionRecord) MarkConfirmed(txHash string) {
	dr.Status = DistributionRecordStatusConfirmed
	dr.TxHash = txHash
	now := time.Now()
	dr.ConfirmedAt = &now
}

// MarkFailed records the terminal submission error.
func (dr *DistributionRecord) MarkFailed(errMsg string) {
	dr.Status = DistributionRecordStatusFailed
	dr.Error = errMsg
}
