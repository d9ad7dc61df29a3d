// Package turnstile verifies Cloudflare Turnstile challenge tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultVerifyURL is the siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// ErrMissingSecret is returned by New when no secret key is configured.
var ErrMissingSecret = errors.New("turnstile: secret key is required")

// Config configures a Client.
type Config struct {
	Secret string

	// VerifyURL defaults to DefaultVerifyURL.
	VerifyURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Result is the decoded siteverify response.
type Result struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname,omitempty"`
	Action     string   `json:"action,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Client calls the siteverify endpoint.
type Client struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// New returns a client for cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	verifyURL := cfg.VerifyURL
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Client{secret: cfg.Secret, verifyURL: verifyURL, client: client}, nil
}

// Verify reports whether token is valid. remoteIP is optional.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	res, err := c.Check(ctx, token, remoteIP)
	if err != nil {
		return false, err
	}

	return res.Success, nil
}

// Check posts token to siteverify and returns the full result.
func (c *Client) Check(ctx context.Context, token, remoteIP string) (*Result, error) {
	form := url.Values{
		"secret":   {c.secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("turnstile: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("turnstile: siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("turnstile: siteverify returned status %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("turnstile: decode response: %w", err)
	}

	return &res, nil
}
