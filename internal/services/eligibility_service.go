package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/config"
	domain "airdrop-backend/internal/types"
)

// EligibilityService scores users against the distribution rules. Scores stay
// in floating point end to end; only CalculateAirdropAmount floors, so the
// dual bonus multiplication never compounds rounding error.
type EligibilityService struct {
	community clients.CommunitySource
	rules     config.DistributionConfig

	engagementBase float64
	challengeBase  float64
}

// NewEligibilityService parses the configured base amounts once at
// construction.
func NewEligibilityService(community clients.CommunitySource, rules config.DistributionConfig) (*EligibilityService, error) {
	engagementBase, err := parseBaseAmount(rules.Engagement.BaseAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid engagement baseAmount: %w", err)
	}
	challengeBase, err := parseBaseAmount(rules.Challenges.BaseAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid challenges baseAmount: %w", err)
	}

	return &EligibilityService{
		community:      community,
		rules:          rules,
		engagementBase: engagementBase,
		challengeBase:  challengeBase,
	}, nil
}

func parseBaseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("%q is not a non-negative number", raw)
	}
	return value, nil
}

// CalculateUserEligibility scores one user. A data source error fails closed:
// the caller logs it and treats the user as ineligible for this cycle.
func (es *EligibilityService) CalculateUserEligibility(ctx context.Context, userID string) (*domain.AirdropEligibility, error) {
	activities, err := es.community.GetUserActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities for user %s: %w", userID, err)
	}
	points, err := es.community.GetUserPoints(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load points for user %s: %w", userID, err)
	}
	challenges, err := es.community.GetChallengeStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge stats for user %s: %w", userID, err)
	}

	engagementScore := es.engagementScore(activities, points)
	challengeScore := es.challengeScore(challenges)

	eligibility := &domain.AirdropEligibility{
		IsEligibleEngagement: engagementScore >= es.rules.Engagement.MinPoints,
		IsEligibleChallenges: challenges.Completed >= es.rules.Challenges.MinCompletions,
		EngagementScore:      engagementScore,
		ChallengeScore:       challengeScore,
	}
	if eligibility.IsEligibleEngagement && eligibility.IsEligibleChallenges {
		eligibility.DualParticipationBonus = es.rules.DualParticipationBonus
	}

	return eligibility, nil
}

// engagementScore sums each activity count weighted by its configured bonus
// (default weight 1), plus accumulated points times the point multiplier.
func (es *EligibilityService) engagementScore(activities map[string]int, points float64) float64 {
	score := 0.0
	for activityType, count := range activities {
		bonus, ok := es.rules.Engagement.ActivityBonuses[activityType]
		if !ok {
			bonus = 1
		}
		score += float64(count) * bonus
	}
	score += points * es.rules.Engagement.PointMultiplier
	return score
}

// challengeScore weights completions, streak, and difficulty, scaled by the
// challenge base amount.
func (es *EligibilityService) challengeScore(stats *domain.ChallengeStats) float64 {
	weighted := float64(stats.Completed)*es.rules.Challenges.CompletionMultiplier +
		float64(stats.Streak)*es.rules.Challenges.StreakBonus +
		stats.Difficulty*es.rules.Challenges.DifficultyMultiplier
	return weighted * es.challengeBase
}

// CalculateAirdropAmount turns an eligibility result into a whole-token
// reward. Zero is a valid result; ineligible users simply get 0.
func (es *EligibilityService) CalculateAirdropAmount(eligibility *domain.AirdropEligibility) int64 {
	total := 0.0
	if eligibility.IsEligibleEngagement {
		total += es.engagementBase + eligibility.EngagementScore
	}
	if eligibility.IsEligibleChallenges {
		total += eligibility.ChallengeScore
	}
	if eligibility.DualParticipationBonus > 0 {
		total *= 1 + eligibility.DualParticipationBonus
	}

	if total <= 0 || math.IsNaN(total) {
		return 0
	}
	amount := int64(math.Floor(total))
	if amount < 0 {
		log.Printf("⚠️ [Eligibility] Reward overflowed for score %+v, clamping to 0", eligibility)
		return 0
	}
	return amount
}
