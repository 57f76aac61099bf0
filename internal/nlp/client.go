package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client calls a remote understanding service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Client for the service at baseURL
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type understandRequest struct {
	CallerID  string `json:"callerId"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// Understand posts the utterance to POST {baseURL}/understand
func (c *Client) Understand(ctx context.Context, callerID, sessionID, text string) (Understanding, error) {
	payload, err := json.Marshal(understandRequest{
		CallerID:  callerID,
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		return Understanding{}, fmt.Errorf("failed to marshal understand request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/understand", bytes.NewReader(payload))
	if err != nil {
		return Understanding{}, fmt.Errorf("failed to create understand request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Understanding{}, fmt.Errorf("understand request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Understanding{}, fmt.Errorf("understand service returned status %d", resp.StatusCode)
	}

	var u Understanding
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Understanding{}, fmt.Errorf("failed to decode understand response: %w", err)
	}

	c.logger.Debug().
		Str("session_id", sessionID).
		Str("intent", u.Intent).
		Msg("understanding received")

	return u, nil
}
