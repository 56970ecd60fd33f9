package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/events"
	domain "airdrop-backend/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, maxBatchSize int, token clients.TokenContract, gas clients.GasOracle, emitter *events.Emitter) *AirdropManager {
	t.Helper()
	planner, err := NewBatchPlanner(plannerRules(maxBatchSize, ""))
	require.NoError(t, err)
	executor := newExecutor(token, gas, emitter, nil)
	return NewAirdropManager(planner, executor, token, emitter, testNetwork(), nil)
}

func eventsOfType(got []events.Event, eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range got {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestExhaustedBatchDeadLetteredExactlyOnce(t *testing.T) {
	emitter := events.NewEmitter()
	var got []events.Event
	emitter.Subscribe(func(e events.Event) { got = append(got, e) })

	// Gas stays above the 50 gwei ceiling, so every attempt hits the gate.
	token := &fakeToken{}
	manager := newManager(t, 10, token, &fakeGas{prices: []int64{80}}, emitter)

	recipients := addrs(2)
	amounts := []*big.Int{TokensToWei(1), TokensToWei(2)}

	summary, err := manager.Distribute(context.Background(), recipients, amounts, "cycle-1")
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.BatchCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 0, summary.CompletedCount)

	// The gate rejects before the contract is ever touched.
	assert.Equal(t, 0, token.calls)

	queued := eventsOfType(got, events.EventBatchQueued)
	require.Len(t, queued, 1)
	require.Len(t, summary.FailedBatchIDs, 1)
	assert.Equal(t, summary.FailedBatchIDs[0], queued[0].Payload["batch_id"])
	assert.Equal(t, 2, queued[0].Payload["recipient_count"])
	assert.Empty(t, eventsOfType(got, events.EventBatchCompleted))
}

func TestFailedBatchDoesNotStopRemainingBatches(t *testing.T) {
	emitter := events.NewEmitter()
	var got []events.Event
	emitter.Subscribe(func(e events.Event) { got = append(got, e) })

	// Batch size 1 gives two batches. The first reverts on all three
	// attempts, the second succeeds on its first.
	revert := domain.Permanent(errors.New("execution reverted"))
	token := &fakeToken{results: []error{revert, revert, revert, nil}}
	manager := newManager(t, 1, token, &fakeGas{prices: []int64{10}}, emitter)

	recipients := addrs(2)
	amounts := []*big.Int{TokensToWei(1), TokensToWei(2)}

	summary, err := manager.Distribute(context.Background(), recipients, amounts, "")
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.BatchCount)
	assert.Equal(t, 1, summary.CompletedCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 4, token.calls)

	require.Len(t, eventsOfType(got, events.EventBatchQueued), 1)
	require.Len(t, eventsOfType(got, events.EventBatchCompleted), 1)
	assert.Equal(t, TokensToWei(2).String(), summary.TotalAmountWei)
}

func TestQueueAirdropRejectsMismatchedInput(t *testing.T) {
	manager := newManager(t, 10, &fakeToken{}, &fakeGas{prices: []int64{10}}, events.NewEmitter())

	_, err := manager.QueueAirdrop(context.Background(), addrs(2), []*big.Int{TokensToWei(1)}, "manual")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
