package services

import (
	"fmt"
	"log"
	"math/big"
	"time"

	"airdrop-backend/internal/config"
	"airdrop-backend/internal/merkle"
	domain "airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// BatchPlanner partitions a recipient list into committed on-chain batches.
// Order is preserved left to right so recipient[i] and amount[i] stay paired,
// and each recipient lands in exactly one batch.
type BatchPlanner struct {
	maxBatchSize int
	expiryWindow time.Duration
	periodCap    *big.Int // wei, nil means uncapped
}

// NewBatchPlanner builds a planner from the distribution rules. The period
// cap is configured in whole tokens and applied in wei.
func NewBatchPlanner(rules config.DistributionConfig) (*BatchPlanner, error) {
	var capWei *big.Int
	if rules.PeriodMaxTokens != "" {
		tokens, ok := new(big.Int).SetString(rules.PeriodMaxTokens, 10)
		if !ok || tokens.Sign() < 0 {
			return nil, fmt.Errorf("invalid periodMaxTokens %q: %w", rules.PeriodMaxTokens, domain.ErrInvalidInput)
		}
		if tokens.Sign() > 0 {
			capWei = new(big.Int).Mul(tokens, weiPerToken)
		}
	}

	return &BatchPlanner{
		maxBatchSize: rules.MaxBatchSize,
		expiryWindow: time.Duration(rules.ExpiryHours) * time.Hour,
		periodCap:    capWei,
	}, nil
}

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// CreateOptimalBatches validates and chunks the recipient list, scaling
// amounts down proportionally when their sum exceeds the period cap. Each
// batch carries its own Merkle commitment and expiry.
func (bp *BatchPlanner) CreateOptimalBatches(recipients []common.Address, amounts []*big.Int) ([]*domain.AirdropBatch, error) {
	if len(recipients) != len(amounts) {
		return nil, fmt.Errorf("%d recipients vs %d amounts: %w", len(recipients), len(amounts), domain.ErrInvalidInput)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("empty recipient list: %w", domain.ErrInvalidInput)
	}
	for i, amount := range amounts {
		if amount == nil || amount.Sign() <= 0 {
			return nil, fmt.Errorf("amount for recipient %s must be positive: %w", recipients[i].Hex(), domain.ErrInvalidInput)
		}
	}

	scaled := bp.applyPeriodCap(amounts)

	// Flooring against the cap can zero out a tiny share. A zero transfer
	// carries no claimable value, so the recipient sits this period out.
	kept := make([]common.Address, 0, len(recipients))
	keptAmounts := make([]*big.Int, 0, len(scaled))
	for i, amount := range scaled {
		if amount.Sign() == 0 {
			log.Printf("⚖️ [BatchPlanner] Recipient %s scaled to zero by period cap, excluded this period", recipients[i].Hex())
			continue
		}
		kept = append(kept, recipients[i])
		keptAmounts = append(keptAmounts, amount)
	}
	recipients, scaled = kept, keptAmounts

	expiry := time.Now().UTC().Add(bp.expiryWindow)

	var batches []*domain.AirdropBatch
	for start := 0; start < len(recipients); start += bp.maxBatchSize {
		end := start + bp.maxBatchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		batchRecipients := append([]common.Address(nil), recipients[start:end]...)
		batchAmounts := make([]*big.Int, end-start)
		for i := range batchAmounts {
			batchAmounts[i] = new(big.Int).Set(scaled[start+i])
		}

		root, err := merkle.GenerateRoot(batchRecipients, batchAmounts)
		if err != nil {
			return nil, fmt.Errorf("failed to build commitment for batch starting at %d: %w", start, err)
		}

		batches = append(batches, &domain.AirdropBatch{
			ID:         uuid.New().String(),
			Recipients: batchRecipients,
			Amounts:    batchAmounts,
			MerkleRoot: root,
			ExpiryTime: expiry,
		})
	}

	log.Printf("📦 [BatchPlanner] Planned %d batches for %d recipients (maxBatchSize=%d)",
		len(batches), len(recipients), bp.maxBatchSize)
	return batches, nil
}

// applyPeriodCap scales every amount by cap/total when the total exceeds the
// cap. Integer mul-div floors each share, so the scaled sum never exceeds the
// cap and relative proportions are preserved.
func (bp *BatchPlanner) applyPeriodCap(amounts []*big.Int) []*big.Int {
	if bp.periodCap == nil {
		return amounts
	}

	total := new(big.Int)
	for _, amount := range amounts {
		total.Add(total, amount)
	}
	if total.Cmp(bp.periodCap) <= 0 {
		return amounts
	}

	log.Printf("⚖️ [BatchPlanner] Total %s wei exceeds period cap %s wei, scaling down",
		total.String(), bp.periodCap.String())

	scaled := make([]*big.Int, len(amounts))
	for i, amount := range amounts {
		share := new(big.Int).Mul(amount, bp.periodCap)
		scaled[i] = share.Div(share, total)
	}
	return scaled
}

// TokensToWei converts a whole-token reward into wei.
func TokensToWei(tokens int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tokens), weiPerToken)
}
