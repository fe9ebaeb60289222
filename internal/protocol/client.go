package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/1edge/keeper/internal/config"
	"github.com/1edge/keeper/internal/venue"
	"github.com/1edge/keeper/pkg/types"
)

// Client is the 1edge orderbook API client: it submits signed slice
// orders and polls standing listings, per §4.6/§4.7/§6.
type Client struct {
	http   *resty.Client
	rl     *venue.RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewClient builds a protocol client bound to one chain's orderbook
// endpoint. A static bearer token authenticates every request (§6); there
// is no L1-derived L2 credential step like the teacher's CLOB client.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.Protocol.BaseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.Protocol.ApiKey)

	return &Client{
		http:   httpClient,
		rl:     venue.NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// Submit publishes one signed slice order to
// POST /orderbook/v4.0/{chain}. It always returns the locally-computed
// order hash, even on failure, so the caller can keep tracking the slice
// on-chain regardless of publish outcome (§4.6). Retries 429 (honoring
// Retry-After) and 5xx responses with exponential backoff starting at 1s,
// doubling, capped at 30s, up to 5 attempts before surfacing a
// SubmitError{Kind: SubmitTransient}; 4xx other than 429 is classified
// SubmitPermanent immediately.
func (c *Client) Submit(ctx context.Context, chainID int64, data types.ProtocolOrderData, signature string, hash string) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would submit slice order", "hash", hash, "chain", chainID)
		return hash, nil
	}
	if err := c.rl.Poll.Wait(ctx); err != nil {
		return hash, err
	}

	req := types.ProtocolSubmitRequest{Order: data, Signature: signature}
	wait := time.Second
	const maxWait = 30 * time.Second
	const maxAttempts = 5

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			Post(fmt.Sprintf("/orderbook/v4.0/%d", chainID))

		if err != nil {
			lastErr = &types.SubmitError{Kind: types.SubmitTransient, Detail: err.Error()}
		} else if resp.StatusCode() == http.StatusOK || resp.StatusCode() == http.StatusCreated {
			return hash, nil
		} else if resp.StatusCode() == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header().Get("Retry-After"), wait)
			lastErr = &types.SubmitError{Kind: types.SubmitTransient, Detail: "rate limited: " + resp.String()}
			wait = retryAfter
		} else if resp.StatusCode() >= 500 {
			lastErr = &types.SubmitError{Kind: types.SubmitTransient, Detail: fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String())}
		} else {
			return hash, &types.SubmitError{Kind: types.SubmitPermanent, Detail: fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String())}
		}

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hash, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
	return hash, lastErr
}

// parseRetryAfter reads a Retry-After header (seconds, per RFC 7231's
// delta-seconds form) and falls back to the caller's current backoff if
// the header is absent or malformed.
func parseRetryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// ListOrders fetches the maker's standing orders, used by the Slice
// Monitor to reconcile fills (§4.7).
func (c *Client) ListOrders(ctx context.Context, chainID int64, maker string) ([]types.ProtocolOrderListing, error) {
	if err := c.rl.Subscribe.Wait(ctx); err != nil {
		return nil, err
	}

	var results []types.ProtocolOrderListing
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("chain", strconv.FormatInt(chainID, 10)).
		SetPathParam("maker", maker).
		SetQueryParam("limit", "100").
		SetResult(&results).
		Get("/orderbook/v4.0/{chain}/address/{maker}")
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return results, nil
}
