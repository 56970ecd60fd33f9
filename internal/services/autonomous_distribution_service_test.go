package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"airdrop-backend/internal/events"
	domain "airdrop-backend/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct{ ch chan time.Time }

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

type fakeClock struct{ ticker *fakeTicker }

func (f *fakeClock) NewTicker(d time.Duration) Ticker { return f.ticker }

// blockingCommunity parks GetAllUsers until released, to hold a cycle open.
type blockingCommunity struct {
	fakeCommunity
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingCommunity) GetAllUsers(ctx context.Context) ([]domain.CommunityUser, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.fakeCommunity.GetAllUsers(ctx)
}

func newSchedulerFixture(t *testing.T, community interface {
	GetAllUsers(ctx context.Context) ([]domain.CommunityUser, error)
	GetUserActivities(ctx context.Context, userID string) (map[string]int, error)
	GetUserPoints(ctx context.Context, userID string) (float64, error)
	GetChallengeStats(ctx context.Context, userID string) (*domain.ChallengeStats, error)
}, clock Clock) (*AutonomousDistributionService, *events.Emitter, *fakeToken) {
	t.Helper()

	rules := testRules()
	rules.MaxBatchSize = 100
	rules.ExpiryHours = 720
	rules.RetryAttempts = 3
	rules.RetryDelaySeconds = 60
	rules.FrequencyHours = 24

	emitter := events.NewEmitter()
	eligibility, err := NewEligibilityService(community, rules)
	require.NoError(t, err)
	planner, err := NewBatchPlanner(rules)
	require.NoError(t, err)

	token := &fakeToken{}
	executor := NewDistributionExecutor(token, &fakeGas{prices: []int64{10}}, emitter, testNetwork(), rules, nil)
	executor.sleep = func(time.Duration) {}

	manager := NewAirdropManager(planner, executor, token, emitter, testNetwork(), nil)
	scheduler := NewAutonomousDistributionService(eligibility, manager, community, emitter, rules, clock)
	return scheduler, emitter, token
}

func cycleEvents(emitter *events.Emitter) chan events.Event {
	ch := make(chan events.Event, 16)
	emitter.Subscribe(func(e events.Event) {
		if e.Type == events.EventAutonomousDistributionProcessed || e.Type == events.EventAutonomousDistributionFailed {
			ch <- e
		}
	})
	return ch
}

func TestTickTriggersExactlyOneCycleEvent(t *testing.T) {
	community := &fakeCommunity{
		users:  []domain.CommunityUser{{UserID: "u1", WalletAddress: "0x00000000000000000000000000000000000000A1"}},
		points: map[string]float64{"u1": 150},
	}
	clock := &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}}
	scheduler, emitter, token := newSchedulerFixture(t, community, clock)

	terminal := cycleEvents(emitter)
	scheduler.Start()
	defer scheduler.Stop()

	clock.ticker.ch <- time.Now()

	select {
	case event := <-terminal:
		assert.Equal(t, events.EventAutonomousDistributionProcessed, event.Type)
		assert.Equal(t, 1, event.Payload["recipient_count"])
	case <-time.After(5 * time.Second):
		t.Fatal("cycle event never arrived")
	}

	assert.Equal(t, 1, token.calls)

	// No second event without a second tick.
	select {
	case event := <-terminal:
		t.Fatalf("unexpected extra cycle event: %v", event.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmptyCycleStillEmitsProcessed(t *testing.T) {
	community := &fakeCommunity{} // no users at all
	scheduler, emitter, token := newSchedulerFixture(t, community, &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}})

	terminal := cycleEvents(emitter)
	ran := scheduler.TriggerCycle(context.Background())
	assert.True(t, ran)

	select {
	case event := <-terminal:
		assert.Equal(t, events.EventAutonomousDistributionProcessed, event.Type)
		assert.Equal(t, "0", event.Payload["total_amount"])
	default:
		t.Fatal("expected a processed event for the empty cycle")
	}
	assert.Equal(t, 0, token.calls)
}

func TestReentrantTickIsSkipped(t *testing.T) {
	community := &blockingCommunity{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	scheduler, _, _ := newSchedulerFixture(t, community, &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}})

	done := make(chan bool)
	go func() { done <- scheduler.TriggerCycle(context.Background()) }()

	<-community.entered
	assert.True(t, scheduler.IsRunning())
	assert.False(t, scheduler.TriggerCycle(context.Background()), "overlapping cycle must be skipped")

	close(community.release)
	assert.True(t, <-done)
	assert.False(t, scheduler.IsRunning())
}

func TestIneligibleAndBrokenUsersAreSkippedNotFatal(t *testing.T) {
	community := &fakeCommunity{
		users: []domain.CommunityUser{
			{UserID: "eligible", WalletAddress: "0x00000000000000000000000000000000000000B1"},
			{UserID: "broken", WalletAddress: "0x00000000000000000000000000000000000000B2"},
			{UserID: "below-threshold", WalletAddress: "0x00000000000000000000000000000000000000B3"},
			{UserID: "no-wallet", WalletAddress: "not-an-address"},
		},
		points:  map[string]float64{"eligible": 150, "below-threshold": 10},
		failFor: map[string]error{"broken": context.DeadlineExceeded},
	}
	scheduler, emitter, token := newSchedulerFixture(t, community, &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}})

	terminal := cycleEvents(emitter)
	scheduler.TriggerCycle(context.Background())

	select {
	case event := <-terminal:
		assert.Equal(t, events.EventAutonomousDistributionProcessed, event.Type)
		assert.Equal(t, 1, event.Payload["recipient_count"])
	default:
		t.Fatal("expected a processed event")
	}
	assert.Equal(t, 1, token.calls)
}

func TestDuplicateWalletsCollapseToOneSubmission(t *testing.T) {
	wallet := "0x00000000000000000000000000000000000000C1"
	community := &fakeCommunity{
		users: []domain.CommunityUser{
			{UserID: "u1", WalletAddress: wallet},
			{UserID: "u2", WalletAddress: wallet},
		},
		points: map[string]float64{"u1": 150, "u2": 200},
	}
	scheduler, emitter, _ := newSchedulerFixture(t, community, &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}})

	terminal := cycleEvents(emitter)
	scheduler.TriggerCycle(context.Background())

	event := <-terminal
	assert.Equal(t, 1, event.Payload["recipient_count"])
}
