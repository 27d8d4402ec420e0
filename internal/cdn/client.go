// Package cdn provides the HTTP client for the CDN/firewall provider API.
package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultBaseURL is the default base URL for the CDN API.
const DefaultBaseURL = "https://api.fenceline.dev"

// Client is an HTTP client for the CDN firewall API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing with a mock server).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new CDN API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateZone registers a new zone for a domain. The returned zone carries
// the nameservers the owner must delegate to.
func (c *Client) CreateZone(ctx context.Context, domain string) (*Zone, error) {
	body, err := json.Marshal(&CreateZoneRequest{Domain: domain})
	if err != nil {
		return nil, err
	}

	respBody, status, err := c.do(ctx, http.MethodPost, "/zones", body)
	if err != nil {
		return nil, err
	}

	if status != http.StatusCreated {
		return nil, parseError(status, respBody)
	}

	var zone Zone
	if err := json.Unmarshal(respBody, &zone); err != nil {
		return nil, fmt.Errorf("failed to decode zone: %w", err)
	}
	return &zone, nil
}

// GetZoneStatus looks up a zone's delegation status and decodes it into
// the closed ZoneStatus variant.
func (c *Client) GetZoneStatus(ctx context.Context, zoneID string) (ZoneStatus, error) {
	path := fmt.Sprintf("/zones/%s", url.PathEscape(zoneID))

	respBody, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return ZoneStatus{}, err
	}

	if status == http.StatusNotFound {
		return ZoneStatus{}, ErrNotFound
	}
	if status != http.StatusOK {
		return ZoneStatus{}, parseError(status, respBody)
	}

	var zone Zone
	if err := json.Unmarshal(respBody, &zone); err != nil {
		return ZoneStatus{}, fmt.Errorf("failed to decode zone: %w", err)
	}
	return parseZoneStatus(zone.Status), nil
}

// DeployChallengeRule deploys (or redeploys) the zone's bot-challenge rule.
// The provider treats a same-expression deploy as an upsert, so redeploying
// after a successful transition is a no-op rather than a duplicate.
// Returns the rule reference needed to retract it later.
func (c *Client) DeployChallengeRule(ctx context.Context, zoneID, expression string) (string, error) {
	path := fmt.Sprintf("/zones/%s/rules/challenge", url.PathEscape(zoneID))

	body, err := json.Marshal(&deployRuleRequest{Expression: expression})
	if err != nil {
		return "", err
	}

	respBody, status, err := c.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return "", err
	}

	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", parseError(status, respBody)
	}

	var rule Rule
	if err := json.Unmarshal(respBody, &rule); err != nil {
		return "", fmt.Errorf("failed to decode rule: %w", err)
	}
	return rule.ID, nil
}

// DeployAllowRule deploys a network-level allow rule for a single IP.
// Returns the rule reference needed to retract it later.
func (c *Client) DeployAllowRule(ctx context.Context, zoneID, ip string) (string, error) {
	path := fmt.Sprintf("/zones/%s/rules/allow", url.PathEscape(zoneID))

	body, err := json.Marshal(&allowRuleRequest{IP: ip})
	if err != nil {
		return "", err
	}

	respBody, status, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}

	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	if status != http.StatusCreated {
		return "", parseError(status, respBody)
	}

	var rule Rule
	if err := json.Unmarshal(respBody, &rule); err != nil {
		return "", fmt.Errorf("failed to decode rule: %w", err)
	}
	return rule.ID, nil
}

// RetractRule removes a deployed rule. Returns ErrNotFound if the rule is
// already gone; callers retracting expired grants treat that as success.
func (c *Client) RetractRule(ctx context.Context, zoneID, ruleRef string) error {
	path := fmt.Sprintf("/zones/%s/rules/%s", url.PathEscape(zoneID), url.PathEscape(ruleRef))

	respBody, status, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	if status == http.StatusNoContent {
		return nil
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return parseError(status, respBody)
}

// do executes one API request and returns the response body and status.
// Transport-level failures come back as errors; HTTP error statuses are
// returned to the caller for per-endpoint handling.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("AccessKey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return respBody, resp.StatusCode, nil
}

// parseError parses API error responses and returns an appropriate error.
func parseError(statusCode int, body []byte) error {
	if statusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		apiErr.StatusCode = statusCode
		return &apiErr
	}

	return fmt.Errorf("cdn: request failed (status %d)", statusCode)
}
