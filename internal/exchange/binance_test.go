package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

func TestGetSymbolInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))

		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT","baseAssetPrecision":8,"quoteAssetPrecision":6}]}`))
	}))
	defer server.Close()

	client := NewBinanceClient(BinanceConfig{BaseURL: server.URL})

	info, err := client.GetSymbolInfo(t.Context(), "BTC", "USDT")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", info.Symbol())
	assert.Equal(t, int32(8), info.BaseAssetPrecision)
	assert.Equal(t, int32(6), info.QuoteAssetPrecision)
}

func TestGetSymbolInfoTradingDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","status":"BREAK","baseAsset":"BTC","quoteAsset":"USDT","baseAssetPrecision":8,"quoteAssetPrecision":8}]}`))
	}))
	defer server.Close()

	client := NewBinanceClient(BinanceConfig{BaseURL: server.URL})

	_, err := client.GetSymbolInfo(t.Context(), "BTC", "USDT")
	assert.ErrorIs(t, err, exception.ErrTradingDisabled)
}

func TestSignedRequestAppendsSignatureLast(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		_, _ = w.Write([]byte(`{"makerCommission":10,"takerCommission":10,"canTrade":true,"balances":[]}`))
	}))
	defer server.Close()

	client := NewBinanceClient(BinanceConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		SecretKey: "test-secret",
	})

	account, err := client.GetAccount(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 0.001, account.MakerCommissionRate, 1e-12)

	payload, signature, found := strings.Cut(rawQuery, "&signature=")
	require.True(t, found, "signature must trail the signed payload")
	assert.NotContains(t, payload, "signature")
	assert.Contains(t, payload, "timestamp=")

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(payload))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestSignedRequestRequiresCredentials(t *testing.T) {
	client := NewBinanceClient(BinanceConfig{})

	_, err := client.GetAccount(t.Context())
	assert.ErrorIs(t, err, exception.ErrInvalidArgument)
}

func TestRequestMapsBusinessRejections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer server.Close()

	client := NewBinanceClient(BinanceConfig{BaseURL: server.URL, APIKey: "k", SecretKey: "s"})

	_, err := client.MarketBuy(t.Context(), "BTC", "USDT", 1)
	assert.ErrorIs(t, err, exception.ErrInsufficientBalance)
}
