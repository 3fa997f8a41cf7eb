package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model/enum"
	"main/pkg/exception"
)

func newTestBacktestClient() *BacktestClient {
	return NewBacktestClient(BacktestConfig{
		MakerCommissionRate: 0.001,
		TakerCommissionRate: 0.002,
		Balances:            map[string]float64{"BTC": 1, "USDT": 10000},
	})
}

func TestBacktestMarketBuy(t *testing.T) {
	client := newTestBacktestClient()
	client.SetPrice("BTCUSDT", 50000, 1234)

	order, err := client.MarketBuy(t.Context(), "BTC", "USDT", 0.1)
	require.NoError(t, err)

	assert.Equal(t, enum.OrderSideBuy, order.Side)
	assert.Equal(t, enum.OrderTypeMarket, order.Type)
	assert.Equal(t, enum.OrderStatusFilled, order.Status)
	assert.Equal(t, 50000.0, order.Price)
	assert.Equal(t, 0.1, order.ExecutedQty)
	assert.Equal(t, "BTC", order.CommissionAsset)
	assert.InDelta(t, 0.1*0.002, order.Commission, 1e-12)
	assert.Equal(t, int64(1234), order.Timestamp)

	base, err := client.GetBalance(t.Context(), "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 1+0.1-0.0002, base.Free, 1e-12)

	quote, err := client.GetBalance(t.Context(), "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 5000, quote.Free, 1e-9)
}

func TestBacktestMarketSell(t *testing.T) {
	client := newTestBacktestClient()
	client.SetPrice("BTCUSDT", 50000, 1234)

	order, err := client.MarketSell(t.Context(), "BTC", "USDT", 0.5)
	require.NoError(t, err)

	// sell commission is charged on the quote proceeds
	assert.Equal(t, "USDT", order.CommissionAsset)
	assert.InDelta(t, 25000*0.002, order.Commission, 1e-9)

	base, err := client.GetBalance(t.Context(), "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, base.Free, 1e-12)

	quote, err := client.GetBalance(t.Context(), "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 10000+25000-50, quote.Free, 1e-9)
}

func TestBacktestLimitOrdersUseMakerRate(t *testing.T) {
	client := newTestBacktestClient()

	// limit orders fill at the limit price, no stored price needed
	buy, err := client.LimitBuy(t.Context(), "BTC", "USDT", 0.1, 48000)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderTypeLimit, buy.Type)
	assert.Equal(t, 48000.0, buy.Price)
	assert.InDelta(t, 0.1*0.001, buy.Commission, 1e-12)

	sell, err := client.LimitSell(t.Context(), "BTC", "USDT", 0.1, 52000)
	require.NoError(t, err)
	assert.InDelta(t, 0.1*52000*0.001, sell.Commission, 1e-9)
}

func TestBacktestInsufficientBalance(t *testing.T) {
	client := newTestBacktestClient()
	client.SetPrice("BTCUSDT", 50000, 0)

	_, err := client.MarketBuy(t.Context(), "BTC", "USDT", 1)
	assert.ErrorIs(t, err, exception.ErrInsufficientBalance)

	_, err = client.MarketSell(t.Context(), "BTC", "USDT", 2)
	assert.ErrorIs(t, err, exception.ErrInsufficientBalance)

	// a rejected order must not touch the ledger
	base, err := client.GetBalance(t.Context(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1.0, base.Free)
}

func TestBacktestPriceNotFound(t *testing.T) {
	client := newTestBacktestClient()

	_, err := client.MarketBuy(t.Context(), "BTC", "USDT", 0.1)
	assert.ErrorIs(t, err, exception.ErrPriceNotFound)

	_, err = client.GetPrice(t.Context(), "BTC", "USDT")
	assert.ErrorIs(t, err, exception.ErrPriceNotFound)
}

func TestBacktestGetPrice(t *testing.T) {
	client := newTestBacktestClient()
	client.SetPrice("BTCUSDT", 49000, 0)
	client.SetPrice("BTCUSDT", 51000, 0)

	price, err := client.GetPrice(t.Context(), "BTC", "USDT")
	require.NoError(t, err)
	assert.Equal(t, 51000.0, price)
}

func TestBacktestGetOrder(t *testing.T) {
	client := newTestBacktestClient()
	client.SetPrice("BTCUSDT", 50000, 777)

	placed, err := client.MarketBuy(t.Context(), "BTC", "USDT", 0.1)
	require.NoError(t, err)

	got, err := client.GetOrder(t.Context(), "BTC", "USDT", placed.OrderID)
	require.NoError(t, err)
	assert.Equal(t, placed, got)

	_, err = client.GetOrder(t.Context(), "BTC", "USDT", "999")
	assert.ErrorIs(t, err, exception.ErrOrderNotFound)

	_, err = client.GetOrder(t.Context(), "ETH", "USDT", placed.OrderID)
	assert.ErrorIs(t, err, exception.ErrOrderNotFound)
}

func TestBacktestRejectsBadQty(t *testing.T) {
	client := newTestBacktestClient()
	client.SetPrice("BTCUSDT", 50000, 0)

	_, err := client.MarketBuy(t.Context(), "BTC", "USDT", 0)
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)

	_, err = client.LimitBuy(t.Context(), "BTC", "USDT", 0.1, -1)
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)
}

func TestBacktestGetBalanceUnknownAsset(t *testing.T) {
	client := newTestBacktestClient()

	_, err := client.GetBalance(t.Context(), "ETH")
	assert.ErrorIs(t, err, exception.ErrAssetNotFound)
}

func TestBacktestAccountAndSymbolInfo(t *testing.T) {
	client := newTestBacktestClient()

	account, err := client.GetAccount(t.Context())
	require.NoError(t, err)
	assert.True(t, account.CanTrade)
	assert.Equal(t, 0.001, account.MakerCommissionRate)
	assert.Equal(t, 0.002, account.TakerCommissionRate)

	info, err := client.GetSymbolInfo(t.Context(), "BTC", "USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC", info.BaseAsset)
	assert.Equal(t, int32(8), info.BaseAssetPrecision)
}
