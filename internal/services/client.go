// Catalog API client
//
// Every method is a GET to {base}/{method} carrying the API version and access token.
// Responses are wrapped in either {"response": ...} or {"error": {...}}.
package services

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

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/vkpl/internal/shared"
)

const (
	defaultBaseURL     = "https://api.vk.com/method"
	defaultVersion     = "5.131"
	defaultMaxAttempts = 3
	defaultTimeout     = 30 * time.Second
	maxBodyBytes       = 8 << 20
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ClientOpts configures a [Client]. Zero values fall back to defaults.
type ClientOpts struct {
	BaseURL     string
	Version     string
	Timeout     time.Duration
	MaxAttempts int
	RateLimit   float64 // requests per second, <= 0 disables limiting
	HTTPClient  *http.Client
	Logger      *log.Logger
	Sleep       SleepFunc
}

// Client performs catalog API calls with classification and bounded retry.
type Client struct {
	baseURL     string
	version     string
	maxAttempts int
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *log.Logger
	sleep       SleepFunc
}

// NewClient creates a catalog client.
func NewClient(opts ClientOpts) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		version:     opts.Version,
		maxAttempts: opts.MaxAttempts,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		sleep:       opts.Sleep,
	}

	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.version == "" {
		c.version = defaultVersion
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	switch {
	case c.httpClient == nil:
		c.httpClient = &http.Client{Timeout: timeout}
	case c.httpClient.Timeout == 0:
		// Injected clients without a deadline still get the per-request timeout.
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(io.Discard)
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}

	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return c
}

// Call invokes method with params using token and returns the raw "response" payload.
//
// Rate limiting and flood control errors are retried after a fixed pause until MaxAttempts is
// reached. Every other failure is returned immediately as a [*CatalogError].
func (c *Client) Call(ctx context.Context, method string, params url.Values, token string) (json.RawMessage, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("access_token", token)
	query.Set("v", c.version)

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &CatalogError{Kind: KindTransport, Method: method, Err: err}
		}

		payload, err := c.do(ctx, method, query)
		if err == nil {
			return payload, nil
		}

		var cerr *CatalogError
		if !errors.As(err, &cerr) || !cerr.Retryable() || attempt >= c.maxAttempts {
			return nil, err
		}

		delay := cerr.Backoff()
		c.logger.Warn("catalog call throttled", "method", method, "code", cerr.Code, "attempt", attempt, "retry_in", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, &CatalogError{Kind: KindTransport, Method: method, Err: err}
		}
	}
}

func (c *Client) do(ctx context.Context, method string, query url.Values) (json.RawMessage, error) {
	apiURL := c.baseURL + "/" + method + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, &CatalogError{Kind: KindTransport, Method: method, Err: redact(err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &CatalogError{Kind: KindTransport, Method: method, Err: redact(err)}
	}
	defer resp.Body.Close()

	c.logger.Debug("catalog call", "method", method, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CatalogError{
			Kind:    KindTransport,
			Method:  method,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
		Error    *struct {
			Code    int    `json:"error_code"`
			Message string `json:"error_msg"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&envelope); err != nil {
		return nil, &CatalogError{Kind: KindTransport, Method: method, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if envelope.Error != nil {
		return nil, &CatalogError{
			Kind:    classify(envelope.Error.Code),
			Method:  method,
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
		}
	}
	if len(envelope.Response) == 0 {
		return nil, &CatalogError{Kind: KindTransport, Method: method, Message: "response payload missing"}
	}
	return envelope.Response, nil
}

// redact strips the query string from URL errors so tokens never reach logs or users.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
		}
		return &url.Error{Op: uerr.Op, URL: "(redacted)", Err: uerr.Err}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
