package oauth2client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"forumoauth/internal/tokens"
)

// Config carries the provider settings for the token endpoint.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	TokenMethod  string // "POST" or "GET"
	Timeout      time.Duration
}

const defaultTimeout = 15 * time.Second

// Client performs the refresh_token grant against the provider's token
// endpoint. One round trip per call; errors surface to the caller.
type Client struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// New creates a Client bounded by the configured request timeout.
func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// SetHTTPClient replaces the underlying HTTP client. Intended for tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc == nil {
		hc = http.DefaultClient
	}
	c.client = hc
}

// tokenResponse is the token endpoint payload (RFC 6749 §5.1 plus the
// expires_at extension some providers emit).
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresAt        int64  `json:"expires_at"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh implements tokens.Exchanger. The current access token is part of
// the exchange contract but the refresh_token grant itself only transmits the
// refresh token and client credentials.
func (c *Client) Refresh(ctx context.Context, accessToken, refreshToken string) (tokens.RefreshResult, error) {
	if refreshToken == "" {
		return tokens.RefreshResult{}, errors.New("refresh token cannot be empty")
	}

	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}

	req, err := c.newTokenRequest(ctx, params)
	if err != nil {
		return tokens.RefreshResult{}, fmt.Errorf("building token request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return tokens.RefreshResult{}, fmt.Errorf("token endpoint request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tokens.RefreshResult{}, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return tokens.RefreshResult{}, fmt.Errorf("token endpoint returned %s: %s", resp.Status, truncate(body, 256))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokens.RefreshResult{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.Error != "" {
		return tokens.RefreshResult{}, fmt.Errorf("token endpoint error %q: %s", tr.Error, tr.ErrorDescription)
	}
	if tr.AccessToken == "" {
		return tokens.RefreshResult{}, errors.New("token response missing access_token")
	}

	return tokens.RefreshResult{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

// newTokenRequest builds the exchange request using the configured HTTP
// method: a form-encoded POST body, or query parameters for GET providers.
func (c *Client) newTokenRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	if strings.EqualFold(c.cfg.TokenMethod, http.MethodGet) {
		sep := "?"
		if strings.Contains(c.cfg.TokenURL, "?") {
			sep = "&"
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.TokenURL+sep+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
