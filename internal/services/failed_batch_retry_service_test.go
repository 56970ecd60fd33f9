package services

import (
	"context"
	"testing"
	"time"

	"airdrop-backend/internal/events"
	"airdrop-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOneSkipsEntriesNoLongerDue(t *testing.T) {
	// An entry can be resolved between the queue scan and processing.
	// retryOne must not resubmit it.
	cases := []struct {
		name  string
		entry models.FailedAirdropBatch
	}{
		{
			name: "already recovered",
			entry: models.FailedAirdropBatch{
				ID:          uuid.New().String(),
				Status:      models.FailedAirdropBatchStatusRecovered,
				MaxRetries:  10,
				NextRetryAt: time.Now().Add(-time.Minute),
			},
		},
		{
			name: "abandoned by operator",
			entry: models.FailedAirdropBatch{
				ID:          uuid.New().String(),
				Status:      models.FailedAirdropBatchStatusAbandoned,
				MaxRetries:  10,
				NextRetryAt: time.Now().Add(-time.Minute),
			},
		},
		{
			name: "retries exhausted",
			entry: models.FailedAirdropBatch{
				ID:          uuid.New().String(),
				Status:      models.FailedAirdropBatchStatusPending,
				RetryCount:  10,
				MaxRetries:  10,
				NextRetryAt: time.Now().Add(-time.Minute),
			},
		},
		{
			name: "backoff deadline in the future",
			entry: models.FailedAirdropBatch{
				ID:          uuid.New().String(),
				Status:      models.FailedAirdropBatchStatusPending,
				MaxRetries:  10,
				NextRetryAt: time.Now().Add(time.Hour),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := &fakeToken{}
			service := NewFailedBatchRetryService(nil, token, &fakeGas{prices: []int64{10}}, events.NewEmitter(), 50)

			err := service.retryOne(context.Background(), &tc.entry)
			require.NoError(t, err)
			assert.Equal(t, 0, token.calls)
		})
	}
}
