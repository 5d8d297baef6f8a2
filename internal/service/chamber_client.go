package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

// ChamberBonusProvider supplies the guild-artifact boost at finalize time.
// The session engine treats the bonus as opaque.
type ChamberBonusProvider interface {
	BonusFor(ctx context.Context, userID string) model.ChamberBonus
}

// ChamberClient wraps the guild-artifact chamber API
type ChamberClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewChamberClient creates a new chamber API client
func NewChamberClient() *ChamberClient {
	baseURL := os.Getenv("CHAMBER_API_URL")
	token := os.Getenv("CHAMBER_API_TOKEN")
	if baseURL == "" {
		log.Println("Warning: CHAMBER_API_URL not set, chamber bonuses disabled")
	}

	return &ChamberClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// BonusFor fetches the user's chamber bonus. Completion must not fail
// because a cosmetic boost lookup failed, so every error path degrades to
// the neutral bonus.
func (c *ChamberClient) BonusFor(ctx context.Context, userID string) model.ChamberBonus {
	if c.baseURL == "" {
		return model.NoBonus()
	}

	bonus, err := c.fetchBonus(ctx, userID)
	if err != nil {
		log.Printf("[Chamber Client] bonus lookup failed for %s: %v", userID, err)
		return model.NoBonus()
	}
	return bonus
}

func (c *ChamberClient) fetchBonus(ctx context.Context, userID string) (model.ChamberBonus, error) {
	url := fmt.Sprintf("%s/v1/chambers/%s/bonus", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.NoBonus(), fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NoBonus(), fmt.Errorf("chamber request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return model.NoBonus(), fmt.Errorf("chamber API returned %d: %s", resp.StatusCode, string(body))
	}

	var bonus model.ChamberBonus
	if err := json.NewDecoder(resp.Body).Decode(&bonus); err != nil {
		return model.NoBonus(), fmt.Errorf("failed to decode chamber response: %w", err)
	}

	if bonus.HasBoost && bonus.BoostMultiplier <= 0 {
		return model.NoBonus(), fmt.Errorf("chamber API returned non-positive multiplier %v", bonus.BoostMultiplier)
	}

	return bonus, nil
}
