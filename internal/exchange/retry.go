package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"main/internal/model"
	"main/pkg/exception"
)

const (
	defaultRetryAttempts = 3
	defaultRetryWait     = 500 * time.Millisecond
	defaultCallTimeout   = 10 * time.Second
)

// RetryConfig tunes the retry decorator. Zero values fall back to
// defaults; RateLimit <= 0 disables outbound throttling.
type RetryConfig struct {
	MaxAttempts int
	Wait        time.Duration
	Timeout     time.Duration
	RateLimit   rate.Limit
	Burst       int
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultRetryAttempts
	}
	if c.Wait <= 0 {
		c.Wait = defaultRetryWait
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultCallTimeout
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// RetryClient decorates a SpotClient with bounded retries, a fixed
// inter-attempt wait, a hard per-call timeout and an outbound rate
// limit. Every call site gets the same policy.
type RetryClient struct {
	inner   SpotClient
	cfg     RetryConfig
	limiter *rate.Limiter
}

// WithRetry wraps a SpotClient in the uniform retry policy.
func WithRetry(inner SpotClient, cfg RetryConfig) *RetryClient {
	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(cfg.RateLimit, cfg.Burst)
	}

	return &RetryClient{inner: inner, cfg: cfg, limiter: limiter}
}

// retryable reports whether another attempt can change the outcome.
// Business rejections are returned to the caller untouched.
func retryable(err error) bool {
	switch {
	case errors.Is(err, exception.ErrInsufficientBalance),
		errors.Is(err, exception.ErrAssetNotFound),
		errors.Is(err, exception.ErrOrderNotFound),
		errors.Is(err, exception.ErrSymbolNotFound),
		errors.Is(err, exception.ErrTradingDisabled),
		errors.Is(err, exception.ErrPriceNotFound),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

func (c *RetryClient) do(ctx context.Context, op string, call func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		err := call(callCtx)
		cancel()

		if err == nil {
			return nil
		}

		if !retryable(err) {
			return err
		}

		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(c.cfg.Wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s exhausted %d attempts: %w", op, c.cfg.MaxAttempts, lastErr)
}

func (c *RetryClient) PlatformName() string {
	return c.inner.PlatformName()
}

func (c *RetryClient) GetAccount(ctx context.Context) (model.AccountInformation, error) {
	var out model.AccountInformation
	err := c.do(ctx, "get account", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.GetAccount(ctx)
		return callErr
	})
	return out, err
}

func (c *RetryClient) GetBalance(ctx context.Context, asset string) (model.Balance, error) {
	var out model.Balance
	err := c.do(ctx, "get balance", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.GetBalance(ctx, asset)
		return callErr
	})
	return out, err
}

func (c *RetryClient) GetSymbolInfo(ctx context.Context, baseAsset, quoteAsset string) (model.SymbolInformation, error) {
	var out model.SymbolInformation
	err := c.do(ctx, "get symbol info", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.GetSymbolInfo(ctx, baseAsset, quoteAsset)
		return callErr
	})
	return out, err
}

func (c *RetryClient) GetOrder(ctx context.Context, baseAsset, quoteAsset, orderID string) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, "get order", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.GetOrder(ctx, baseAsset, quoteAsset, orderID)
		return callErr
	})
	return out, err
}

func (c *RetryClient) MarketBuy(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, "market buy", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.MarketBuy(ctx, baseAsset, quoteAsset, qty)
		return callErr
	})
	return out, err
}

func (c *RetryClient) MarketSell(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, "market sell", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.MarketSell(ctx, baseAsset, quoteAsset, qty)
		return callErr
	})
	return out, err
}

func (c *RetryClient) LimitBuy(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, "limit buy", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.LimitBuy(ctx, baseAsset, quoteAsset, qty, price)
		return callErr
	})
	return out, err
}

func (c *RetryClient) LimitSell(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	var out model.Order
	err := c.do(ctx, "limit sell", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.LimitSell(ctx, baseAsset, quoteAsset, qty, price)
		return callErr
	})
	return out, err
}

func (c *RetryClient) GetPrice(ctx context.Context, baseAsset, quoteAsset string) (float64, error) {
	var out float64
	err := c.do(ctx, "get price", func(ctx context.Context) error {
		var callErr error
		out, callErr = c.inner.GetPrice(ctx, baseAsset, quoteAsset)
		return callErr
	})
	return out, err
}
