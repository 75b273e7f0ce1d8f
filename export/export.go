// Package export pushes finalized analyses to an external webhook (a tracking
// spreadsheet, a chat channel, a downstream logger).
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nutrimind"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

// Payload is the exported record for one analyzed meal.
type Payload struct {
	UserKey     string                   `json:"user_key"`
	Description string                   `json:"description"`
	AnalyzedAt  time.Time                `json:"analyzed_at"`
	Result      nutrimind.AnalysisResult `json:"result"`
}

// PostAnalysis sends one finalized analysis to the webhook. Clarification
// results are not exportable.
func (c *Client) PostAnalysis(ctx context.Context, userKey, description string, result nutrimind.AnalysisResult) error {
	if result.ClarificationNeeded {
		return fmt.Errorf("refusing to export a clarification result")
	}

	payload, err := json.Marshal(Payload{
		UserKey:     userKey,
		Description: description,
		AnalyzedAt:  time.Now().UTC(),
		Result:      result,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to export analysis: %s", resp.Status)
	}
	return nil
}
