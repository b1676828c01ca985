// Package venue is the JSON-over-HTTP client for the trading backend that
// discovers opportunities, places orders and opens hedges.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

const (
	pathScan   = "/v1/opportunities/scan"
	pathOrders = "/v1/orders"
	pathHedges = "/v1/hedges"

	defaultTimeout = 10 * time.Second
	baseRetryWait  = 250 * time.Millisecond
	maxErrorBody   = 1024
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// APISecret enables HMAC request signing when set.
	APISecret      string
	RequestsPerSec float64
	Burst          int
	Timeout        time.Duration
	MaxRetries     int
}

// Client implements domain.Discoverer, domain.OrderExecutor and
// domain.HedgeCreator against the trading backend.
//
// Discovery is retried with exponential backoff on transport errors, 429 and
// 5xx. Orders and hedges are retried only when the backend reports it did
// not process the request (429 or 503), and every attempt carries the
// execution ID as Idempotency-Key.
type Client struct {
	baseURL    string
	apiKey     string
	signer     *signer
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		signer:     newSigner(cfg.APISecret),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: retries,
		retryWait:  baseRetryWait,
		logger:     logger.With(slog.String("component", "venue")),
	}
}

// Discover asks the backend for opportunities in the enabled universe.
func (c *Client) Discover(ctx context.Context, req domain.DiscoveryRequest) ([]domain.Opportunity, error) {
	var resp scanResponse
	if err := c.post(ctx, pathScan, "", req, &resp, retryAlways); err != nil {
		return nil, fmt.Errorf("venue: discover: %w", err)
	}
	opps := make([]domain.Opportunity, 0, len(resp.Opportunities))
	for _, o := range resp.Opportunities {
		if !o.Type.Valid() || o.Symbol == "" {
			c.logger.DebugContext(ctx, "dropping malformed opportunity",
				slog.String("type", string(o.Type)),
				slog.String("symbol", o.Symbol),
			)
			continue
		}
		opps = append(opps, o)
	}
	return opps, nil
}

// Execute places the order for one opportunity.
func (c *Client) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	var res domain.ExecutionResult
	if err := c.post(ctx, pathOrders, req.ExecutionID, req, &res, retryUnprocessed); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("venue: execute %s: %w", req.ExecutionID, err)
	}
	return res, nil
}

// CreateHedge opens the offsetting position for a successful execution.
func (c *Client) CreateHedge(ctx context.Context, req domain.HedgeRequest) (domain.HedgeResult, error) {
	var res domain.HedgeResult
	if err := c.post(ctx, pathHedges, req.ExecutionID+":hedge", req, &res, retryUnprocessed); err != nil {
		return domain.HedgeResult{}, fmt.Errorf("venue: create hedge for %s: %w", req.ExecutionID, err)
	}
	return res, nil
}

// retryPolicy decides whether a failed attempt may be repeated. status is
// zero for transport errors.
type retryPolicy func(status int) bool

func retryAlways(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func retryUnprocessed(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body, out any, retry retryPolicy) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt); err != nil {
				return errors.Join(lastErr, err)
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		status, err := c.do(ctx, path, idempotencyKey, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !retry(status) {
			return err
		}
		c.logger.WarnContext(ctx, "request failed, retrying",
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	return fmt.Errorf("exhausted %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, path, idempotencyKey string, payload []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if c.signer != nil {
		c.signer.sign(req, path, payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCollaboratorUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(resp); err != nil {
		return resp.StatusCode, err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// checkHTTPStatus maps non-2xx responses to domain errors.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := errorMessage(raw)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrCollaboratorUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	wait := c.retryWait << (attempt - 1)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ domain.Discoverer    = (*Client)(nil)
	_ domain.OrderExecutor = (*Client)(nil)
	_ domain.HedgeCreator  = (*Client)(nil)
)
