// Autonomous distribution scheduler
// Re-evaluates community eligibility on a fixed interval and triggers token
// distribution for everyone who qualifies.
package services

import (
	"context"
	"log"
	"math/big"
	"sync"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/events"
	"airdrop-backend/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock produces tickers. The real implementation wraps time.NewTicker.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

// AutonomousDistributionService runs the periodic distribution cycle. At most
// one cycle is in flight; a tick landing mid-cycle is skipped, not queued.
type AutonomousDistributionService struct {
	eligibility *EligibilityService
	manager     *AirdropManager
	community   clients.CommunitySource
	emitter     *events.Emitter
	clock       Clock
	frequency   time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewAutonomousDistributionService wires the scheduler. clock may be nil, in
// which case real time is used.
func NewAutonomousDistributionService(
	eligibility *EligibilityService,
	manager *AirdropManager,
	community clients.CommunitySource,
	emitter *events.Emitter,
	rules config.DistributionConfig,
	clock Clock,
) *AutonomousDistributionService {
	if clock == nil {
		clock = RealClock{}
	}
	return &AutonomousDistributionService{
		eligibility: eligibility,
		manager:     manager,
		community:   community,
		emitter:     emitter,
		clock:       clock,
		frequency:   time.Duration(rules.FrequencyHours) * time.Hour,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the tick loop.
func (s *AutonomousDistributionService) Start() {
	log.Printf("🚀 [AutonomousDistribution] Starting, cycle interval: %v", s.frequency)
	s.wg.Add(1)
	go s.run()
}

// Stop shuts the loop down and waits for an in-flight cycle to finish.
func (s *AutonomousDistributionService) Stop() {
	log.Println("🛑 [AutonomousDistribution] Stopping...")
	close(s.stopChan)
	s.wg.Wait()
	log.Println("✅ [AutonomousDistribution] Stopped")
}

func (s *AutonomousDistributionService) run() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			s.TriggerCycle(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// TriggerCycle runs one distribution cycle unless one is already in flight.
// Exposed so the admin API can force a cycle outside the schedule. Returns
// false when the cycle was skipped.
func (s *AutonomousDistributionService) TriggerCycle(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("⏭️ [AutonomousDistribution] Cycle already running, skipping tick")
		metrics.DistributionCycles.WithLabelValues("skipped").Inc()
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.runCycle(ctx)
	return true
}

// runCycle scores every known user and distributes to the eligible ones.
// Exactly one terminal event is emitted per cycle.
func (s *AutonomousDistributionService) runCycle(ctx context.Context) {
	cycleID := uuid.New().String()
	started := time.Now()
	log.Printf("🔄 [AutonomousDistribution] Cycle %s started", cycleID)

	defer func() {
		metrics.DistributionCycleDuration.Observe(time.Since(started).Seconds())
	}()

	users, err := s.community.GetAllUsers(ctx)
	if err != nil {
		log.Printf("❌ [AutonomousDistribution] Cycle %s failed to enumerate users: %v", cycleID, err)
		s.emitFailed(cycleID, err)
		return
	}

	var recipients []common.Address
	var amounts []*big.Int
	seen := make(map[common.Address]bool)

	for _, user := range users {
		if !common.IsHexAddress(user.WalletAddress) {
			log.Printf("⚠️ [AutonomousDistribution] User %s has invalid wallet %q, skipping", user.UserID, user.WalletAddress)
			continue
		}
		wallet := common.HexToAddress(user.WalletAddress)
		if seen[wallet] {
			continue // one submission per address per cycle
		}

		eligibility, err := s.eligibility.CalculateUserEligibility(ctx, user.UserID)
		if err != nil {
			// Fail closed for this user only; the cycle goes on.
			log.Printf("⚠️ [AutonomousDistribution] User %s treated as ineligible: %v", user.UserID, err)
			continue
		}

		tokens := s.eligibility.CalculateAirdropAmount(eligibility)
		if tokens <= 0 {
			continue
		}

		seen[wallet] = true
		recipients = append(recipients, wallet)
		amounts = append(amounts, TokensToWei(tokens))
	}

	metrics.EligibleUsers.Set(float64(len(recipients)))

	if len(recipients) == 0 {
		log.Printf("✅ [AutonomousDistribution] Cycle %s: no eligible users, nothing to distribute", cycleID)
		s.emitProcessed(cycleID, &DistributionSummary{CycleID: cycleID, TotalAmount: new(big.Int), TotalAmountWei: "0"})
		metrics.DistributionCycles.WithLabelValues("processed").Inc()
		return
	}

	log.Printf("📊 [AutonomousDistribution] Cycle %s: %d eligible recipients", cycleID, len(recipients))

	summary, err := s.manager.Distribute(ctx, recipients, amounts, cycleID)
	if err != nil && summary == nil {
		s.emitFailed(cycleID, err)
		metrics.DistributionCycles.WithLabelValues("failed").Inc()
		return
	}
	if err != nil {
		// Partial failure: the failed batches are already in the dead-letter
		// queue, so the cycle still counts as processed.
		log.Printf("⚠️ [AutonomousDistribution] Cycle %s completed with failures: %v", cycleID, err)
	}

	s.emitProcessed(cycleID, summary)
	metrics.DistributionCycles.WithLabelValues("processed").Inc()
	log.Printf("✅ [AutonomousDistribution] Cycle %s finished: %d/%d batches, %d recipients, %s wei",
		cycleID, summary.CompletedCount, summary.BatchCount, summary.RecipientCount, summary.TotalAmountWei)
}

func (s *AutonomousDistributionService) emitProcessed(cycleID string, summary *DistributionSummary) {
	s.emitter.Emit(events.EventAutonomousDistributionProcessed, map[string]interface{}{
		"cycle_id":        cycleID,
		"batch_count":     summary.BatchCount,
		"completed_count": summary.CompletedCount,
		"failed_count":    summary.FailedCount,
		"recipient_count": summary.RecipientCount,
		"total_amount":    summary.TotalAmountWei,
	})
}

func (s *AutonomousDistributionService) emitFailed(cycleID string, cause error) {
	s.emitter.Emit(events.EventAutonomousDistributionFailed, map[string]interface{}{
		"cycle_id": cycleID,
		"error":    cause.Error(),
	})
}

// IsRunning reports whether a cycle is currently in flight.
func (s *AutonomousDistributionService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
