// Package collector provides the HTTP client for the downstream
// analytics collector.
package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hutchutchutch/fmath-sub002/internal/domain/metrics"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
)

// CredentialSource supplies a fresh bearer credential for each post.
type CredentialSource interface {
	SignerToken(actorID string) (string, error)
}

// Client posts metric records to the analytics collector. Delivery is
// at-least-once; the caller decides whether a failure is fatal.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialSource
	logger      *logging.ChanneledLogger
}

// NewClient creates a collector client for the given endpoint.
func NewClient(baseURL string, timeout time.Duration, credentials CredentialSource, logger *logging.ChanneledLogger) *Client {
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		credentials: credentials,
		logger:      logger,
	}
}

// Post delivers one record to the collector. A fresh signing credential
// is fetched for every call.
func (c *Client) Post(rec *metrics.Record) error {
	if c.baseURL == "" {
		return fmt.Errorf("collector URL not configured")
	}

	start := time.Now()

	token, err := c.credentials.SignerToken(rec.ActorID)
	if err != nil {
		return fmt.Errorf("failed to obtain collector credential: %w", err)
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal metric record: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Analytics().Warn("Collector post failed", "error", err.Error(), "actorId", rec.ActorID, "sessionId", rec.SessionID)
		return fmt.Errorf("collector post failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Analytics().Warn("Collector rejected record", "status", resp.StatusCode, "actorId", rec.ActorID, "sessionId", rec.SessionID)
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	c.logger.Analytics().Debug("Metric record delivered", "actorId", rec.ActorID, "sessionId", rec.SessionID, "items", len(rec.Items), "duration", time.Since(start))
	return nil
}
