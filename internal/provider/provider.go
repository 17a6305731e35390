package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abrahamus/iBeekeeper/pkg/logger"
	"github.com/valyala/fasthttp"
)

var ErrUnauthorized = errors.New("provider rejected the api token")

// Record is one transaction as the bank feed reports it. Everything stays
// a string until the import pipeline validates it.
type Record struct {
	Date             string `json:"date"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Description      string `json:"description"`
	PayeeName        string `json:"payee_name"`
	Merchant         string `json:"merchant"`
	PaymentReference string `json:"payment_reference"`
}

type Page struct {
	Transactions []Record `json:"transactions"`
	Page         int      `json:"page"`
	HasMore      bool     `json:"has_more"`
}

type Config struct {
	BaseURL    string
	APIToken   string
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client pulls paginated transaction feeds from the provider API.
type Client struct {
	config Config
	http   *fasthttp.Client
}

func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("provider base url is required")
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	return &Client{
		config: config,
		http: &fasthttp.Client{
			MaxConnsPerHost:     64,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}, nil
}

// FetchPage retrieves one page of the feed. A non-empty since narrows the
// feed to transactions on or after that date.
func (c *Client) FetchPage(ctx context.Context, since string, page int) (*Page, error) {
	path := fmt.Sprintf("/v1/transactions?page=%d&page_size=%d", page, c.config.PageSize)
	if since != "" {
		path += "&since=" + since
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		started := time.Now()
		body, err := c.doRequest(ctx, fasthttp.MethodGet, path)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				return nil, err
			}
			logger.Warn("provider request failed",
				"path", path,
				"attempt", attempt+1,
				"error", err)
			lastErr = err
			continue
		}

		var result Page
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decoding provider response: %w", err)
		}

		logger.Debug("provider page fetched",
			"page", page,
			"transactions", len(result.Transactions),
			"latency_ms", time.Since(started).Milliseconds())
		return &result, nil
	}

	return nil, fmt.Errorf("provider unreachable after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusUnauthorized || code == fasthttp.StatusForbidden:
		return nil, ErrUnauthorized
	case code != fasthttp.StatusOK:
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", code, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}

// Healthy reports whether the provider answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	body, err := c.doRequest(ctx, fasthttp.MethodGet, "/health")
	if err != nil {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return false
	}
	return health.Status == "ok"
}
