// Package identity exchanges a one-time access token for a user identifier.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultEndpoint is the hosted identity exchange.
const DefaultEndpoint = "https://api.mantracare.com/user/user-info"

var ErrExchangeFailed = errors.New("identity exchange failed")

type exchangeRequest struct {
	Token string `json:"token"`
}

type exchangeResponse struct {
	UserID *int64 `json:"user_id"`
}

type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient builds a client for endpoint. A nil httpClient means
// http.DefaultClient.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Exchange sends token to the identity endpoint once. Any non-2xx status or
// a body without a numeric user_id is reported as ErrExchangeFailed.
func (c *Client) Exchange(ctx context.Context, token string) (int64, error) {
	body, err := json.Marshal(exchangeRequest{Token: token})
	if err != nil {
		return 0, fmt.Errorf("encode exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("%w: status %d", ErrExchangeFailed, resp.StatusCode)
	}

	var out exchangeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrExchangeFailed, err)
	}
	if out.UserID == nil {
		return 0, fmt.Errorf("%w: response has no user_id", ErrExchangeFailed)
	}

	return *out.UserID, nil
}
