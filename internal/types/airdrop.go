package types

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidInput marks malformed caller input (mismatched array lengths,
// unparseable addresses or amounts). Rejected before any side effect.
var ErrInvalidInput = errors.New("invalid input")

// ErrGasPriceTooHigh marks an attempt aborted because the network gas price
// exceeded the configured ceiling. Always transient.
var ErrGasPriceTooHigh = errors.New("gas price above configured threshold")

// TransientChainError wraps failures worth retrying: gas gate hits, RPC
// submission errors, confirmation timeouts, nonce conflicts.
type TransientChainError struct {
	Err error
}

func (e *TransientChainError) Error() string { return fmt.Sprintf("transient chain error: %v", e.Err) }
func (e *TransientChainError) Unwrap() error { return e.Err }

// PermanentChainError wraps failures that will not succeed on resubmission of
// the same transaction, such as a contract revert.
type PermanentChainError struct {
	Err error
}

func (e *PermanentChainError) Error() string { return fmt.Sprintf("permanent chain error: %v", e.Err) }
func (e *PermanentChainError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientChainError. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientChainError{Err: err}
}

// Permanent wraps err as a PermanentChainError. Returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentChainError{Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientChainError.
func IsTransient(err error) bool {
	var t *TransientChainError
	return errors.As(err, &t)
}

// AirdropBatch is one bounded group of recipients submitted in a single
// on-chain transaction. Immutable after creation: a failed batch is re-queued
// as a retry record, never mutated in place.
type AirdropBatch struct {
	ID         string
	CycleID    string // set when the batch belongs to an autonomous cycle
	Recipients []common.Address
	Amounts    []*big.Int
	MerkleRoot common.Hash
	ExpiryTime time.Time
}

// TotalAmount sums the batch amounts.
func (b *AirdropBatch) TotalAmount() *big.Int {
	total := new(big.Int)
	for _, a := range b.Amounts {
		total.Add(total, a)
	}
	return total
}

// EngagementScore is the per-user activity snapshot for one distribution run.
// Derived from the external progress tracker; never persisted here.
type EngagementScore struct {
	UserID         string
	WalletAddress  common.Address
	ActivityCounts map[string]int
	TotalPoints    float64
}

// AirdropEligibility is the result of scoring one user for one cycle.
type AirdropEligibility struct {
	IsEligibleEngagement   bool
	IsEligibleChallenges   bool
	EngagementScore        float64
	ChallengeScore         float64
	DualParticipationBonus float64
}

// ClaimStatus mirrors the token contract's airdropStatus view.
type ClaimStatus struct {
	Claimed    bool      `json:"claimed"`
	Amount     *big.Int  `json:"amount"`
	ExpiryTime time.Time `json:"expiry_time"`
}

// ChallengeStats is the external challenge source's per-user summary.
type ChallengeStats struct {
	Completed  int     `json:"completed"`
	Streak     int     `json:"streak"`
	Difficulty float64 `json:"difficulty"`
}

// CommunityUser is one known member of the community as reported by the
// progress tracker. WalletAddress may be empty for users who never linked one.
type CommunityUser struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
}
