package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient reads the current rate table from the CRM's currency service.
type HTTPClient struct {
	baseURL    string
	reference  string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, reference string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		reference:  reference,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type ratesResponse struct {
	Base  string            `json:"base"`
	Rates map[string]string `json:"rates"`
}

func (c *HTTPClient) Rates(ctx context.Context) (*RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/rates?base="+url.QueryEscape(c.reference), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("currency service: %d %s", resp.StatusCode, string(body))
	}

	var raw ratesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	base := raw.Base
	if base == "" {
		base = c.reference
	}
	return ParseRates(base, raw.Rates)
}
