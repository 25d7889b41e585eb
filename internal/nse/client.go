package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/marketlens/oi-tracker/internal/config"
	"github.com/marketlens/oi-tracker/internal/models"
)

// Client fetches option-chain data from the NSE public API. The API sits
// behind anti-bot checks: requests need browser-like headers and session
// cookies obtained by hitting the base URL first. A shared rate limiter
// paces all outgoing requests so serial per-symbol fetches cannot hammer
// the upstream.
type Client struct {
	baseURL         string
	optionChainPath string
	userAgent       string
	httpClient      *http.Client
	limiter         *rate.Limiter
}

// NewClient creates a client with a fresh cookie jar
func NewClient(cfg config.NSEConfig) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		optionChainPath: cfg.OptionChainPath,
		userAgent:       cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(rate.Every(cfg.RequestGap), 1),
	}, nil
}

// Bootstrap primes the session cookies the option-chain endpoints require
// by requesting the base URL. NSE sets the cookies even on non-200
// responses, so only transport failures are reported.
func (c *Client) Bootstrap(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cookie bootstrap: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// FetchOptionChain retrieves and decodes the option chain for one symbol
func (c *Client) FetchOptionChain(ctx context.Context, symbol string) (*OptionChain, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s%s?symbol=%s", c.baseURL, c.optionChainPath, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching option chain for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("option chain for %s: %w: %s", symbol, models.ErrUpstreamStatus, resp.Status)
	}

	var chain OptionChain
	if err := json.NewDecoder(resp.Body).Decode(&chain); err != nil {
		return nil, fmt.Errorf("option chain for %s: %w: %v", symbol, models.ErrMalformedPayload, err)
	}
	return &chain, nil
}

// setHeaders applies the browser-like headers NSE expects. Accept-Encoding
// is left to the transport so response bodies are decompressed for us.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en,en-US;q=0.9,hi;q=0.8")
}
