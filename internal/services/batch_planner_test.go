package services

import (
	"math/big"
	"testing"

	"airdrop-backend/internal/config"
	"airdrop-backend/internal/merkle"
	domain "airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plannerRules(maxBatchSize int, periodMaxTokens string) config.DistributionConfig {
	return config.DistributionConfig{
		MaxBatchSize:    maxBatchSize,
		ExpiryHours:     720,
		PeriodMaxTokens: periodMaxTokens,
	}
}

func addrs(n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i] = common.BigToAddress(big.NewInt(int64(i + 1)))
	}
	return out
}

func TestChunkingPreservesOrderAndPairing(t *testing.T) {
	planner, err := NewBatchPlanner(plannerRules(2, ""))
	require.NoError(t, err)

	recipients := addrs(3)
	amounts := []*big.Int{big.NewInt(10), big.NewInt(20), big.NewInt(30)}

	batches, err := planner.CreateOptimalBatches(recipients, amounts)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, []common.Address{recipients[0], recipients[1]}, batches[0].Recipients)
	assert.Equal(t, []*big.Int{big.NewInt(10), big.NewInt(20)}, batches[0].Amounts)
	assert.Equal(t, []common.Address{recipients[2]}, batches[1].Recipients)
	assert.Equal(t, []*big.Int{big.NewInt(30)}, batches[1].Amounts)

	for _, batch := range batches {
		assert.NotEmpty(t, batch.ID)
		assert.False(t, batch.ExpiryTime.IsZero())

		expected, err := merkle.GenerateRoot(batch.Recipients, batch.Amounts)
		require.NoError(t, err)
		assert.Equal(t, expected, batch.MerkleRoot)
	}
}

func TestConcatenationEqualsInput(t *testing.T) {
	planner, err := NewBatchPlanner(plannerRules(7, ""))
	require.NoError(t, err)

	recipients := addrs(23)
	amounts := make([]*big.Int, 23)
	for i := range amounts {
		amounts[i] = big.NewInt(int64(i + 1))
	}

	batches, err := planner.CreateOptimalBatches(recipients, amounts)
	require.NoError(t, err)

	var gotRecipients []common.Address
	var gotAmounts []*big.Int
	for _, batch := range batches {
		assert.LessOrEqual(t, len(batch.Recipients), 7)
		gotRecipients = append(gotRecipients, batch.Recipients...)
		gotAmounts = append(gotAmounts, batch.Amounts...)
	}
	assert.Equal(t, recipients, gotRecipients)
	assert.Equal(t, amounts, gotAmounts)
}

func TestMismatchedInputRejected(t *testing.T) {
	planner, err := NewBatchPlanner(plannerRules(10, ""))
	require.NoError(t, err)

	_, err = planner.CreateOptimalBatches(addrs(3), []*big.Int{big.NewInt(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = planner.CreateOptimalBatches(nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = planner.CreateOptimalBatches(addrs(1), []*big.Int{big.NewInt(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPeriodCapScaling(t *testing.T) {
	// Cap of 6 tokens, requested total 12 tokens: every amount halves.
	planner, err := NewBatchPlanner(plannerRules(10, "6"))
	require.NoError(t, err)

	amounts := []*big.Int{
		TokensToWei(2),
		TokensToWei(4),
		TokensToWei(6),
	}
	batches, err := planner.CreateOptimalBatches(addrs(3), amounts)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	got := batches[0].Amounts
	assert.Equal(t, TokensToWei(1), got[0])
	assert.Equal(t, TokensToWei(2), got[1])
	assert.Equal(t, TokensToWei(3), got[2])
}

func TestPeriodCapNeverExceeded(t *testing.T) {
	planner, err := NewBatchPlanner(plannerRules(100, "10"))
	require.NoError(t, err)

	// Awkward proportions that do not divide evenly.
	amounts := []*big.Int{
		TokensToWei(7),
		big.NewInt(1234567890123456789),
		TokensToWei(13),
	}
	batches, err := planner.CreateOptimalBatches(addrs(3), amounts)
	require.NoError(t, err)

	total := new(big.Int)
	for _, batch := range batches {
		for _, amount := range batch.Amounts {
			total.Add(total, amount)
		}
	}
	assert.LessOrEqual(t, total.Cmp(TokensToWei(10)), 0)
}

func TestPeriodCapDropsZeroScaledRecipients(t *testing.T) {
	planner, err := NewBatchPlanner(plannerRules(10, "1"))
	require.NoError(t, err)

	// 1 wei against a 2-token neighbor floors to zero under a 1-token cap.
	recipients := addrs(2)
	amounts := []*big.Int{big.NewInt(1), TokensToWei(2)}

	batches, err := planner.CreateOptimalBatches(recipients, amounts)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	assert.Equal(t, []common.Address{recipients[1]}, batches[0].Recipients)
	require.Len(t, batches[0].Amounts, 1)
	assert.Positive(t, batches[0].Amounts[0].Sign())
}

func TestUnderCapAmountsUntouched(t *testing.T) {
	planner, err := NewBatchPlanner(plannerRules(10, "100"))
	require.NoError(t, err)

	amounts := []*big.Int{TokensToWei(1), TokensToWei(2)}
	batches, err := planner.CreateOptimalBatches(addrs(2), amounts)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, amounts, batches[0].Amounts)
}
