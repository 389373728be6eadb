// Package pipeline creates deals in the CRM deal pipeline when a match is converted.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DealRequest seeds a new deal from a converted match.
type DealRequest struct {
	MatchID    uuid.UUID `json:"match_id"`
	InvestorID uuid.UUID `json:"investor_id"`
	TargetID   uuid.UUID `json:"target_id"`
	TotalScore int       `json:"total_score"`
	Actor      string    `json:"created_by,omitempty"`
}

type Deal struct {
	ID    uuid.UUID `json:"id"`
	Stage string    `json:"stage,omitempty"`
}

type Client interface {
	CreateDeal(ctx context.Context, req DealRequest) (*Deal, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) doReq(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("pipeline %s %s: %d %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}

// CreateDeal posts a deal for the match. The pipeline keys deals by match_id, so a
// retried call returns the deal created first.
func (c *HTTPClient) CreateDeal(ctx context.Context, req DealRequest) (*Deal, error) {
	data, err := c.doReq(ctx, "POST", "/api/v1/deals", req)
	if err != nil {
		return nil, err
	}
	var deal Deal
	if err := json.Unmarshal(data, &deal); err != nil {
		return nil, err
	}
	if deal.ID == uuid.Nil {
		return nil, fmt.Errorf("pipeline: response carries no deal id")
	}
	return &deal, nil
}
