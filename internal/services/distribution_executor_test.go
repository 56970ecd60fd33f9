package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/events"
	domain "airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken scripts AirdropBatch results per call.
type fakeToken struct {
	calls    int
	results  []error
	receipts []*clients.BatchReceipt
}

func (f *fakeToken) AirdropBatch(ctx context.Context, batch *domain.AirdropBatch, gasPrice *big.Int) (*clients.BatchReceipt, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.results) && f.results[idx] != nil {
		return nil, f.results[idx]
	}
	if idx < len(f.receipts) && f.receipts[idx] != nil {
		return f.receipts[idx], nil
	}
	return &clients.BatchReceipt{
		TxHash:      "0xabc",
		BlockNumber: 100,
		GasUsed:     21000,
		GasPriceWei: gasPrice,
	}, nil
}

func (f *fakeToken) AirdropStatus(ctx context.Context, user common.Address) (*domain.ClaimStatus, error) {
	return &domain.ClaimStatus{}, nil
}

func (f *fakeToken) SignerAddress() common.Address { return common.Address{} }

func (f *fakeToken) SignerBalance(ctx context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}

// fakeGas serves a fixed sequence of gas prices in gwei.
type fakeGas struct {
	calls  int
	prices []int64
}

func (f *fakeGas) GasPrice(ctx context.Context) (*big.Int, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.prices) {
		idx = len(f.prices) - 1
	}
	return new(big.Int).Mul(big.NewInt(f.prices[idx]), big.NewInt(1e9)), nil
}

func testNetwork() *config.NetworkConfig {
	return &config.NetworkConfig{
		ChainID:         8453,
		Name:            "base",
		MaxGasPriceGwei: 50,
		GasLimitBase:    100000,
		GasPerRecipient: 35000,
	}
}

func testBatch(n int) *domain.AirdropBatch {
	recipients := addrs(n)
	amounts := make([]*big.Int, n)
	for i := range amounts {
		amounts[i] = TokensToWei(int64(i + 1))
	}
	return &domain.AirdropBatch{
		ID:         uuid.New().String(),
		Recipients: recipients,
		Amounts:    amounts,
		MerkleRoot: common.HexToHash("0x01"),
		ExpiryTime: time.Now().Add(time.Hour),
	}
}

func newExecutor(token clients.TokenContract, gas clients.GasOracle, emitter *events.Emitter, slept *[]time.Duration) *DistributionExecutor {
	rules := config.DistributionConfig{RetryAttempts: 3, RetryDelaySeconds: 60}
	executor := NewDistributionExecutor(token, gas, emitter, testNetwork(), rules, nil)
	executor.sleep = func(d time.Duration) {
		if slept != nil {
			*slept = append(*slept, d)
		}
	}
	return executor
}

func TestSuccessEmitsBatchCompleted(t *testing.T) {
	emitter := events.NewEmitter()
	var got []events.Event
	emitter.Subscribe(func(e events.Event) { got = append(got, e) })

	token := &fakeToken{}
	executor := newExecutor(token, &fakeGas{prices: []int64{20}}, emitter, nil)

	batch := testBatch(2)
	err := executor.ExecuteAirdropWithRetry(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, token.calls)

	require.Len(t, got, 1)
	assert.Equal(t, events.EventBatchCompleted, got[0].Type)
	assert.Equal(t, batch.ID, got[0].Payload["batch_id"])
	assert.Equal(t, "0xabc", got[0].Payload["tx_hash"])
	assert.Equal(t, 2, got[0].Payload["recipient_count"])
	assert.Equal(t, batch.TotalAmount().String(), got[0].Payload["total_amount"])
}

func TestGasTooHighRetriesExactlyAttemptTimes(t *testing.T) {
	var slept []time.Duration
	token := &fakeToken{}
	executor := newExecutor(token, &fakeGas{prices: []int64{80}}, events.NewEmitter(), &slept)

	err := executor.ExecuteAirdropWithRetry(context.Background(), testBatch(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGasPriceTooHigh)

	// The gate fails before the contract is ever touched.
	assert.Equal(t, 0, token.calls)
	// Three attempts, spaced by two waits of the configured delay.
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, slept)
}

func TestRecoversWhenGasDrops(t *testing.T) {
	var slept []time.Duration
	token := &fakeToken{}
	executor := newExecutor(token, &fakeGas{prices: []int64{80, 80, 30}}, events.NewEmitter(), &slept)

	err := executor.ExecuteAirdropWithRetry(context.Background(), testBatch(1))
	require.NoError(t, err)
	assert.Equal(t, 1, token.calls)
	assert.Len(t, slept, 2)
}

func TestTransientSubmissionErrorRetried(t *testing.T) {
	token := &fakeToken{
		results: []error{
			domain.Transient(errors.New("nonce conflict")),
			nil,
		},
	}
	executor := newExecutor(token, &fakeGas{prices: []int64{10}}, events.NewEmitter(), nil)

	err := executor.ExecuteAirdropWithRetry(context.Background(), testBatch(1))
	require.NoError(t, err)
	assert.Equal(t, 2, token.calls)
}

func TestPermanentFailureSurfacesAfterRetries(t *testing.T) {
	revert := domain.Permanent(errors.New("execution reverted"))
	token := &fakeToken{results: []error{revert, revert, revert}}
	executor := newExecutor(token, &fakeGas{prices: []int64{10}}, events.NewEmitter(), nil)

	err := executor.ExecuteAirdropWithRetry(context.Background(), testBatch(1))
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
	assert.Equal(t, 3, token.calls)
}

func TestMalformedBatchRejected(t *testing.T) {
	executor := newExecutor(&fakeToken{}, &fakeGas{prices: []int64{10}}, events.NewEmitter(), nil)

	batch := testBatch(2)
	batch.Amounts = batch.Amounts[:1]
	err := executor.ExecuteAirdropWithRetry(context.Background(), batch)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
