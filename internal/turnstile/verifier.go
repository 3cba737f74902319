// Package turnstile verifies Cloudflare Turnstile tokens. Verification is
// fail-closed: any transport error, timeout or malformed response counts as
// a failed check, never as an error the pipeline has to handle.
package turnstile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abev/portfolio-contact/internal/pkg/logger"
)

// DefaultEndpoint is Cloudflare's siteverify URL.
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks a captcha token for a client.
type Verifier interface {
	// Verify reports whether the token passes verification. An empty token
	// returns false without a network call.
	Verify(ctx context.Context, token, remoteIP string) bool
}

// Client verifies tokens against the Turnstile siteverify API.
type Client struct {
	http     *http.Client
	endpoint string
	secret   string
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewClient creates a Turnstile verifier. A zero timeout defaults to 5s.
func NewClient(secret, endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		secret:   secret,
	}
}

// Verify implements Verifier.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}

	form := url.Values{
		"secret":   {c.secret},
		"response": {token},
		"remoteip": {remoteIP},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("turnstile verification call failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("turnstile verification rejected", "status", resp.StatusCode)
		return false
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Warn("turnstile response unparsable", "error", err)
		return false
	}

	if !body.Success {
		logger.Debug("turnstile token failed", "codes", strings.Join(body.ErrorCodes, ","))
	}
	return body.Success
}
