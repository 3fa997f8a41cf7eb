package rates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(opt Option) *Engine {
	return NewEngine(opt).WithClock(func() time.Time { return testNow })
}

func TestUpdateRateValidation(t *testing.T) {
	e := newTestEngine(Option{})

	assert.Error(t, e.UpdateRate("", "USDT", 1, "binance", testNow))
	assert.Error(t, e.UpdateRate("BTC", "BTC", 1, "binance", testNow))
	assert.Error(t, e.UpdateRate("BTC", "USDT", 0, "binance", testNow))
	assert.Error(t, e.UpdateRate("BTC", "USDT", -5, "binance", testNow))
	assert.Error(t, e.UpdateRate("BTC", "USDT", 50000, "", testNow))

	assert.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))
}

func TestGetRateSingleSource(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))

	rate, ok := e.GetRate("BTC", "USDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, rate.Rate)
	assert.Equal(t, "binance", rate.Source)
}

func TestGetRateFusesWithinBounds(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50200, "kraken", testNow))
	require.NoError(t, e.UpdateRate("BTC", "USDT", 49900, "coinbase", testNow))

	rate, ok := e.GetRate("BTC", "USDT")
	require.True(t, ok)

	assert.Greater(t, rate.Rate, 49900.0)
	assert.Less(t, rate.Rate, 50200.0)
	assert.Equal(t, "binance,coinbase,kraken", rate.Source)
}

func TestGetRateRejectsOutlier(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "kraken", testNow))
	require.NoError(t, e.UpdateRate("BTC", "USDT", 55000, "badfeed", testNow))

	rate, ok := e.GetRate("BTC", "USDT")
	require.True(t, ok)

	// 55000 deviates exactly 10% from the others' mean and is dropped
	assert.Equal(t, 50000.0, rate.Rate)
	assert.Equal(t, "binance,kraken", rate.Source)
}

func TestGetRateFavorsFresherSources(t *testing.T) {
	e := newTestEngine(Option{})
	stale := testNow.Add(-10 * time.Hour)

	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "fresh", testNow))
	require.NoError(t, e.UpdateRate("BTC", "USDT", 52000, "stale", stale))

	rate, ok := e.GetRate("BTC", "USDT")
	require.True(t, ok)

	// decay pushes the fused value toward the fresh observation
	assert.Less(t, rate.Rate, 51000.0)
	assert.Greater(t, rate.Rate, 50000.0)
}

func TestGetRateReciprocal(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50500, "kraken", testNow.Add(-time.Hour)))

	forward, ok := e.GetRate("BTC", "USDT")
	require.True(t, ok)

	backward, ok := e.GetRate("USDT", "BTC")
	require.True(t, ok)

	assert.Equal(t, 1/forward.Rate, backward.Rate)
}

func TestGetRateTriangulates(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))
	require.NoError(t, e.UpdateRate("ETH", "USDT", 2500, "binance", testNow))

	rate, ok := e.GetRate("BTC", "ETH")
	require.True(t, ok)

	assert.InDelta(t, 20.0, rate.Rate, 1e-9)
	assert.Contains(t, rate.Source, "->USDT->")
}

func TestGetRateUnknownPair(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))

	_, ok := e.GetRate("BTC", "EUR")
	assert.False(t, ok)
}

func TestGetRateIdentity(t *testing.T) {
	e := newTestEngine(Option{})

	rate, ok := e.GetRate("BTC", "BTC")
	require.True(t, ok)
	assert.Equal(t, 1.0, rate.Rate)
}

func TestCacheInvalidatedByUpdate(t *testing.T) {
	e := newTestEngine(Option{CacheTTL: time.Hour})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))

	rate, ok := e.GetRate("BTC", "USDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, rate.Rate)

	require.NoError(t, e.UpdateRate("BTC", "USDT", 60000, "binance", testNow))

	rate, ok = e.GetRate("BTC", "USDT")
	require.True(t, ok)
	assert.Equal(t, 60000.0, rate.Rate, "update must invalidate the cached merge")
}

func TestConvertAmount(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow))

	out, err := e.ConvertAmount("BTC", "USDT", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, out)

	same, err := e.ConvertAmount("BTC", "BTC", 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, same)

	_, err = e.ConvertAmount("BTC", "EUR", 1)
	assert.ErrorIs(t, err, exception.ErrRateNotFound)
}

func TestCleanupExpired(t *testing.T) {
	e := newTestEngine(Option{})
	require.NoError(t, e.UpdateRate("BTC", "USDT", 50000, "binance", testNow.Add(-2*time.Hour)))
	require.NoError(t, e.UpdateRate("ETH", "USDT", 2500, "binance", testNow))

	e.CleanupExpired(time.Hour)

	_, ok := e.GetRate("BTC", "USDT")
	assert.False(t, ok, "expired sources must be pruned")

	rate, ok := e.GetRate("ETH", "USDT")
	require.True(t, ok)
	assert.Equal(t, 2500.0, rate.Rate)

	// BTC is no longer a known intermediate either
	_, ok = e.GetRate("ETH", "BTC")
	assert.False(t, ok)
}
