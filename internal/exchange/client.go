package exchange

import (
	"context"

	"main/internal/model"
)

// SpotClient is the exchange capability consumed by strategy nodes.
// Implementations: the Binance-backed BinanceClient and the
// deterministic BacktestClient.
type SpotClient interface {
	PlatformName() string
	GetAccount(ctx context.Context) (model.AccountInformation, error)
	GetBalance(ctx context.Context, asset string) (model.Balance, error)
	GetSymbolInfo(ctx context.Context, baseAsset, quoteAsset string) (model.SymbolInformation, error)
	GetOrder(ctx context.Context, baseAsset, quoteAsset, orderID string) (model.Order, error)
	MarketBuy(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error)
	MarketSell(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error)
	LimitBuy(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error)
	LimitSell(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error)
	GetPrice(ctx context.Context, baseAsset, quoteAsset string) (float64, error)
}
