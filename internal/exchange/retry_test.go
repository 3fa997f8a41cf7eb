package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

// flakyClient fails the first N calls of every method with err.
type flakyClient struct {
	calls    int
	failures int
	err      error
}

func (c *flakyClient) attempt() error {
	c.calls++
	if c.calls <= c.failures {
		return c.err
	}
	return nil
}

func (c *flakyClient) PlatformName() string { return "flaky" }

func (c *flakyClient) GetAccount(ctx context.Context) (model.AccountInformation, error) {
	return model.AccountInformation{CanTrade: true}, c.attempt()
}

func (c *flakyClient) GetBalance(ctx context.Context, asset string) (model.Balance, error) {
	return model.Balance{Asset: asset, Free: 1}, c.attempt()
}

func (c *flakyClient) GetSymbolInfo(ctx context.Context, baseAsset, quoteAsset string) (model.SymbolInformation, error) {
	return model.SymbolInformation{BaseAsset: baseAsset, QuoteAsset: quoteAsset}, c.attempt()
}

func (c *flakyClient) GetOrder(ctx context.Context, baseAsset, quoteAsset, orderID string) (model.Order, error) {
	return model.Order{OrderID: orderID}, c.attempt()
}

func (c *flakyClient) MarketBuy(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	return model.Order{ExecutedQty: qty}, c.attempt()
}

func (c *flakyClient) MarketSell(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	return model.Order{ExecutedQty: qty}, c.attempt()
}

func (c *flakyClient) LimitBuy(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	return model.Order{ExecutedQty: qty, Price: price}, c.attempt()
}

func (c *flakyClient) LimitSell(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	return model.Order{ExecutedQty: qty, Price: price}, c.attempt()
}

func (c *flakyClient) GetPrice(ctx context.Context, baseAsset, quoteAsset string) (float64, error) {
	return 50000, c.attempt()
}

func testRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Wait: time.Millisecond, Timeout: time.Second}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("connection reset")}
	client := WithRetry(inner, testRetryConfig())

	price, err := client.GetPrice(t.Context(), "BTC", "USDT")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("connection reset")}
	client := WithRetry(inner, testRetryConfig())

	_, err := client.GetAccount(t.Context())
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Contains(t, err.Error(), "exhausted 3 attempts")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRetryDoesNotRetryBusinessRejections(t *testing.T) {
	testCases := []error{
		exception.ErrInsufficientBalance,
		exception.ErrAssetNotFound,
		exception.ErrOrderNotFound,
		exception.ErrSymbolNotFound,
		exception.ErrTradingDisabled,
		exception.ErrPriceNotFound,
	}

	for _, sentinel := range testCases {
		inner := &flakyClient{failures: 10, err: errors.Wrap(sentinel, "rejected")}
		client := WithRetry(inner, testRetryConfig())

		_, err := client.MarketBuy(t.Context(), "BTC", "USDT", 1)
		assert.ErrorIs(t, err, sentinel)
		assert.Equalf(t, 1, inner.calls, "%v must not be retried", sentinel)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("connection reset")}
	client := WithRetry(inner, RetryConfig{MaxAttempts: 5, Wait: time.Hour, Timeout: time.Second})

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.GetBalance(ctx, "BTC")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryDelegatesPlatformName(t *testing.T) {
	client := WithRetry(&flakyClient{}, RetryConfig{})
	assert.Equal(t, "flaky", client.PlatformName())
}
