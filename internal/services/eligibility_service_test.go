package services

import (
	"context"
	"errors"
	"testing"

	"airdrop-backend/internal/config"
	domain "airdrop-backend/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCommunity serves canned per-user data for scorer tests.
type fakeCommunity struct {
	users      []domain.CommunityUser
	activities map[string]map[string]int
	points     map[string]float64
	challenges map[string]*domain.ChallengeStats
	failFor    map[string]error
}

func (f *fakeCommunity) GetAllUsers(ctx context.Context) ([]domain.CommunityUser, error) {
	return f.users, nil
}

func (f *fakeCommunity) GetUserActivities(ctx context.Context, userID string) (map[string]int, error) {
	if err := f.failFor[userID]; err != nil {
		return nil, err
	}
	return f.activities[userID], nil
}

func (f *fakeCommunity) GetUserPoints(ctx context.Context, userID string) (float64, error) {
	if err := f.failFor[userID]; err != nil {
		return 0, err
	}
	return f.points[userID], nil
}

func (f *fakeCommunity) GetChallengeStats(ctx context.Context, userID string) (*domain.ChallengeStats, error) {
	if err := f.failFor[userID]; err != nil {
		return nil, err
	}
	stats := f.challenges[userID]
	if stats == nil {
		stats = &domain.ChallengeStats{}
	}
	return stats, nil
}

func testRules() config.DistributionConfig {
	return config.DistributionConfig{
		DualParticipationBonus: 0.5,
		Engagement: config.EngagementConfig{
			MinPoints:       100,
			BaseAmount:      "10",
			PointMultiplier: 1,
		},
		Challenges: config.ChallengeConfig{
			MinCompletions:       5,
			BaseAmount:           "1",
			CompletionMultiplier: 2,
			StreakBonus:          1,
			DifficultyMultiplier: 1,
		},
	}
}

func TestEngagementOnlyEligibility(t *testing.T) {
	community := &fakeCommunity{
		points: map[string]float64{"u1": 150},
	}
	svc, err := NewEligibilityService(community, testRules())
	require.NoError(t, err)

	eligibility, err := svc.CalculateUserEligibility(context.Background(), "u1")
	require.NoError(t, err)

	assert.True(t, eligibility.IsEligibleEngagement)
	assert.False(t, eligibility.IsEligibleChallenges)
	assert.InDelta(t, 150, eligibility.EngagementScore, 1e-9)
	assert.Zero(t, eligibility.DualParticipationBonus)

	// baseAmount 10 + score 150
	assert.Equal(t, int64(160), svc.CalculateAirdropAmount(eligibility))
}

func TestDualParticipationBonus(t *testing.T) {
	svc, err := NewEligibilityService(&fakeCommunity{}, testRules())
	require.NoError(t, err)

	// Engagement component 10+40=50, challenge score 30, bonus 0.5:
	// (50+30)*1.5 = 120.
	eligibility := &domain.AirdropEligibility{
		IsEligibleEngagement:   true,
		IsEligibleChallenges:   true,
		EngagementScore:        40,
		ChallengeScore:         30,
		DualParticipationBonus: 0.5,
	}
	assert.Equal(t, int64(120), svc.CalculateAirdropAmount(eligibility))
}

func TestActivityBonusWeights(t *testing.T) {
	rules := testRules()
	rules.Engagement.ActivityBonuses = map[string]float64{"share": 3}

	community := &fakeCommunity{
		activities: map[string]map[string]int{
			"u1": {"share": 10, "comment": 5}, // 10*3 + 5*1 = 35
		},
		points: map[string]float64{"u1": 70},
	}
	svc, err := NewEligibilityService(community, rules)
	require.NoError(t, err)

	eligibility, err := svc.CalculateUserEligibility(context.Background(), "u1")
	require.NoError(t, err)
	assert.InDelta(t, 105, eligibility.EngagementScore, 1e-9)
	assert.True(t, eligibility.IsEligibleEngagement)
}

func TestChallengeScoreFormula(t *testing.T) {
	community := &fakeCommunity{
		challenges: map[string]*domain.ChallengeStats{
			"u1": {Completed: 6, Streak: 3, Difficulty: 2},
		},
	}
	svc, err := NewEligibilityService(community, testRules())
	require.NoError(t, err)

	eligibility, err := svc.CalculateUserEligibility(context.Background(), "u1")
	require.NoError(t, err)

	// (6*2 + 3*1 + 2*1) * baseAmount 1 = 17
	assert.InDelta(t, 17, eligibility.ChallengeScore, 1e-9)
	assert.True(t, eligibility.IsEligibleChallenges)
	assert.False(t, eligibility.IsEligibleEngagement)
	assert.Equal(t, int64(17), svc.CalculateAirdropAmount(eligibility))
}

func TestDataSourceFailureFailsClosed(t *testing.T) {
	community := &fakeCommunity{
		failFor: map[string]error{"u1": errors.New("progress tracker down")},
	}
	svc, err := NewEligibilityService(community, testRules())
	require.NoError(t, err)

	_, err = svc.CalculateUserEligibility(context.Background(), "u1")
	assert.Error(t, err)
}

func TestAmountMonotonicInScores(t *testing.T) {
	svc, err := NewEligibilityService(&fakeCommunity{}, testRules())
	require.NoError(t, err)

	base := &domain.AirdropEligibility{
		IsEligibleEngagement: true,
		IsEligibleChallenges: true,
		EngagementScore:      10,
		ChallengeScore:       10,
	}
	prev := svc.CalculateAirdropAmount(base)
	for score := 20.0; score <= 200; score += 10 {
		bumped := *base
		bumped.EngagementScore = score
		amount := svc.CalculateAirdropAmount(&bumped)
		assert.GreaterOrEqual(t, amount, prev)
		prev = amount
	}
}

func TestIneligibleUserGetsZero(t *testing.T) {
	svc, err := NewEligibilityService(&fakeCommunity{}, testRules())
	require.NoError(t, err)

	amount := svc.CalculateAirdropAmount(&domain.AirdropEligibility{
		EngagementScore: 99,
		ChallengeScore:  50,
	})
	assert.Equal(t, int64(0), amount)
}
