// Package subscribeform is the headless newsletter signup form: client-side checks, in-flight state,
// and the notification shown for each outcome of a call to the subscription endpoint.
package subscribeform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const subscribePath = "/api/newsletter/subscribe"

// Result is the decoded endpoint response
type Result struct {
	StatusCode int
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// OK reports a 2xx status
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Subscriber submits an address to the subscription endpoint.
// The error is non-nil only when no decodable response came back.
type Subscriber interface {
	Subscribe(ctx context.Context, email string) (*Result, error)
}

// Client is the HTTP client for the subscription endpoint
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the API at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Subscribe posts {"email": email} and decodes the JSON reply whatever its status
func (c *Client) Subscribe(ctx context.Context, email string) (*Result, error) {
	payload, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+subscribePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	result.StatusCode = resp.StatusCode
	return &result, nil
}
