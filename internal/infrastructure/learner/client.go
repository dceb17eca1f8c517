// Package learner provides the HTTP client toward the progress store
// and user directory.
package learner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/learner"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
)

// Client resolves mastery statuses and display identities from the
// learner service. Failures are surfaced so callers can degrade.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.ChanneledLogger
}

// NewClient creates a learner client for the given endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *logging.ChanneledLogger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type factStatusRequest struct {
	UserID  string   `json:"userId"`
	TrackID string   `json:"trackId"`
	FactIDs []string `json:"factIds"`
}

type factStatusResponse struct {
	Statuses map[string]string `json:"statuses"`
}

// FactStatuses returns the live mastery status for each requested fact.
func (c *Client) FactStatuses(userID, trackID string, factIDs []string) (map[string]string, error) {
	if len(factIDs) == 0 {
		return map[string]string{}, nil
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("progress URL not configured")
	}

	start := time.Now()

	body, err := json.Marshal(factStatusRequest{UserID: userID, TrackID: trackID, FactIDs: factIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fact status request: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+"/fact-statuses", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fact status lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fact status lookup returned status %d", resp.StatusCode)
	}

	var parsed factStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid fact status response: %w", err)
	}

	c.logger.Analytics().Debug("Fact statuses resolved", "userId", userID, "facts", len(factIDs), "duration", time.Since(start))
	return parsed.Statuses, nil
}

// ProfileByID resolves a user's display identity.
func (c *Client) ProfileByID(userID string) (*learner.Profile, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("progress URL not configured")
	}

	resp, err := c.httpClient.Get(c.baseURL + "/profiles/" + url.PathEscape(userID))
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("profile lookup returned status %d", resp.StatusCode)
	}

	var profile learner.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("invalid profile response: %w", err)
	}
	return &profile, nil
}
