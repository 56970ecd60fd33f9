package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"airdrop-backend/internal/config"
	domain "airdrop-backend/internal/types"
)

// CommunitySource is the community data surface the eligibility scorer reads.
type CommunitySource interface {
	GetAllUsers(ctx context.Context) ([]domain.CommunityUser, error)
	GetUserActivities(ctx context.Context, userID string) (map[string]int, error)
	GetUserPoints(ctx context.Context, userID string) (float64, error)
	GetChallengeStats(ctx context.Context, userID string) (*domain.ChallengeStats, error)
}

// CommunityClient talks to the community platform's REST API.
type CommunityClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewCommunityClient creates a community API client from config.
func NewCommunityClient(cfg *config.CommunityConfig) *CommunityClient {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &CommunityClient{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// communityUserResponse one entry of GET /api/users
type communityUserResponse struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
}

// activitiesResponse GET /api/users/:id/activities
type activitiesResponse struct {
	UserID     string         `json:"user_id"`
	Activities map[string]int `json:"activities"` // activity type -> count
}

// pointsResponse GET /api/users/:id/points
type pointsResponse struct {
	UserID string  `json:"user_id"`
	Points float64 `json:"points"`
}

// challengeStatsResponse GET /api/users/:id/challenges
type challengeStatsResponse struct {
	UserID     string  `json:"user_id"`
	Completed  int     `json:"completed"`
	Streak     int     `json:"streak"`
	Difficulty float64 `json:"avg_difficulty"`
}

func (c *CommunityClient) get(ctx context.Context, path string, out interface{}) error {
	url := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("community API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read community API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("community API returned %d for %s: %s", resp.StatusCode, path, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode community API response for %s: %w", path, err)
	}
	return nil
}

// GetAllUsers returns every community member with a linked wallet.
func (c *CommunityClient) GetAllUsers(ctx context.Context) ([]domain.CommunityUser, error) {
	var raw []communityUserResponse
	if err := c.get(ctx, "/api/users", &raw); err != nil {
		return nil, err
	}

	users := make([]domain.CommunityUser, 0, len(raw))
	for _, u := range raw {
		if u.WalletAddress == "" {
			continue // members without wallets cannot receive rewards
		}
		users = append(users, domain.CommunityUser{
			UserID:        u.UserID,
			WalletAddress: u.WalletAddress,
		})
	}
	return users, nil
}

// GetUserActivities returns the per-type activity counts of a user.
func (c *CommunityClient) GetUserActivities(ctx context.Context, userID string) (map[string]int, error) {
	var resp activitiesResponse
	if err := c.get(ctx, "/api/users/"+userID+"/activities", &resp); err != nil {
		return nil, err
	}
	if resp.Activities == nil {
		return map[string]int{}, nil
	}
	return resp.Activities, nil
}

// GetUserPoints returns the user's accumulated engagement points.
func (c *CommunityClient) GetUserPoints(ctx context.Context, userID string) (float64, error) {
	var resp pointsResponse
	if err := c.get(ctx, "/api/users/"+userID+"/points", &resp); err != nil {
		return 0, err
	}
	return resp.Points, nil
}

// GetChallengeStats returns the user's challenge completion record.
func (c *CommunityClient) GetChallengeStats(ctx context.Context, userID string) (*domain.ChallengeStats, error) {
	var resp challengeStatsResponse
	if err := c.get(ctx, "/api/users/"+userID+"/challenges", &resp); err != nil {
		return nil, err
	}
	return &domain.ChallengeStats{
		Completed:  resp.Completed,
		Streak:     resp.Streak,
		Difficulty: resp.Difficulty,
	}, nil
}
