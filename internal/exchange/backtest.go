package exchange

import (
	"context"
	"strconv"
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

const defaultAssetPrecision = 8

// BacktestConfig seeds the deterministic client.
type BacktestConfig struct {
	MakerCommissionRate float64
	TakerCommissionRate float64
	Balances            map[string]float64 // asset -> free amount
}

// BacktestClient is a SpotClient driven entirely by an in-memory price
// store. Orders fill immediately at the stored (or limit) price; the
// order book and slippage are deliberately not modeled.
//
// The balance ledger is single-writer behind the mutex; replayed ticks
// feed the price store through SetPrice.
type BacktestClient struct {
	cfg BacktestConfig

	mu       sync.Mutex
	balances map[string]float64
	prices   map[string]float64
	orders   map[string]model.Order
	orderSeq int64
	now      int64
}

// NewBacktestClient creates a client with the configured seed balances.
func NewBacktestClient(cfg BacktestConfig) *BacktestClient {
	balances := make(map[string]float64, len(cfg.Balances))
	for asset, amount := range cfg.Balances {
		balances[asset] = amount
	}

	return &BacktestClient{
		cfg:      cfg,
		balances: balances,
		prices:   make(map[string]float64),
		orders:   make(map[string]model.Order),
	}
}

func (c *BacktestClient) PlatformName() string {
	return "backtest"
}

// SetPrice installs the current price for a symbol. Data-source nodes
// call this for every replayed tick before strategies observe it.
func (c *BacktestClient) SetPrice(symbol string, price float64, timestamp int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[symbol] = price
	c.now = timestamp
}

func (c *BacktestClient) GetAccount(ctx context.Context) (model.AccountInformation, error) {
	return model.AccountInformation{
		MakerCommissionRate: c.cfg.MakerCommissionRate,
		TakerCommissionRate: c.cfg.TakerCommissionRate,
		CanTrade:            true,
	}, nil
}

func (c *BacktestClient) GetBalance(ctx context.Context, asset string) (model.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	free, ok := c.balances[asset]
	if !ok {
		return model.Balance{}, errors.Wrapf(exception.ErrAssetNotFound, "asset: %s", asset)
	}

	return model.Balance{Asset: asset, Free: free}, nil
}

func (c *BacktestClient) GetSymbolInfo(ctx context.Context, baseAsset, quoteAsset string) (model.SymbolInformation, error) {
	return model.SymbolInformation{
		BaseAsset:           baseAsset,
		QuoteAsset:          quoteAsset,
		BaseAssetPrecision:  defaultAssetPrecision,
		QuoteAssetPrecision: defaultAssetPrecision,
	}, nil
}

func (c *BacktestClient) GetOrder(ctx context.Context, baseAsset, quoteAsset, orderID string) (model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order, ok := c.orders[orderID]
	if !ok || order.BaseAsset != baseAsset || order.QuoteAsset != quoteAsset {
		return model.Order{}, errors.Wrapf(exception.ErrOrderNotFound, "order: %s", orderID)
	}

	return order, nil
}

func (c *BacktestClient) MarketBuy(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	price, err := c.price(baseAsset + quoteAsset)
	if err != nil {
		return model.Order{}, err
	}

	return c.fill(baseAsset, quoteAsset, enum.OrderSideBuy, enum.OrderTypeMarket, qty, price, c.cfg.TakerCommissionRate)
}

func (c *BacktestClient) MarketSell(ctx context.Context, baseAsset, quoteAsset string, qty float64) (model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	price, err := c.price(baseAsset + quoteAsset)
	if err != nil {
		return model.Order{}, err
	}

	return c.fill(baseAsset, quoteAsset, enum.OrderSideSell, enum.OrderTypeMarket, qty, price, c.cfg.TakerCommissionRate)
}

// LimitBuy fills immediately at the limit price with the maker rate.
func (c *BacktestClient) LimitBuy(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fill(baseAsset, quoteAsset, enum.OrderSideBuy, enum.OrderTypeLimit, qty, price, c.cfg.MakerCommissionRate)
}

func (c *BacktestClient) LimitSell(ctx context.Context, baseAsset, quoteAsset string, qty, price float64) (model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fill(baseAsset, quoteAsset, enum.OrderSideSell, enum.OrderTypeLimit, qty, price, c.cfg.MakerCommissionRate)
}

func (c *BacktestClient) GetPrice(ctx context.Context, baseAsset, quoteAsset string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.price(baseAsset + quoteAsset)
}

func (c *BacktestClient) price(symbol string) (float64, error) {
	price, ok := c.prices[symbol]
	if !ok {
		return 0, errors.Wrapf(exception.ErrPriceNotFound, "symbol: %s", symbol)
	}

	return price, nil
}

// fill settles an order against the ledger. Callers hold the mutex.
func (c *BacktestClient) fill(baseAsset, quoteAsset string, side enum.OrderSide, orderType enum.OrderType, qty, price, commissionRate float64) (model.Order, error) {
	if qty <= 0 || price <= 0 {
		return model.Order{}, errors.Wrapf(exception.ErrInvalidArgument, "qty: %v, price: %v", qty, price)
	}

	gross := qty * price

	switch side {
	case enum.OrderSideBuy:
		if c.balances[quoteAsset] < gross {
			return model.Order{}, errors.Wrapf(exception.ErrInsufficientBalance,
				"asset: %s, need: %v, have: %v", quoteAsset, gross, c.balances[quoteAsset])
		}
		commission := qty * commissionRate
		c.balances[quoteAsset] -= gross
		c.balances[baseAsset] += qty - commission
		return c.record(baseAsset, quoteAsset, side, orderType, qty, price, commission, baseAsset), nil
	case enum.OrderSideSell:
		if c.balances[baseAsset] < qty {
			return model.Order{}, errors.Wrapf(exception.ErrInsufficientBalance,
				"asset: %s, need: %v, have: %v", baseAsset, qty, c.balances[baseAsset])
		}
		commission := gross * commissionRate
		c.balances[baseAsset] -= qty
		c.balances[quoteAsset] += gross - commission
		return c.record(baseAsset, quoteAsset, side, orderType, qty, price, commission, quoteAsset), nil
	default:
		return model.Order{}, errors.Wrapf(exception.ErrInvalidArgument, "side: %d", side)
	}
}

func (c *BacktestClient) record(baseAsset, quoteAsset string, side enum.OrderSide, orderType enum.OrderType, qty, price, commission float64, commissionAsset string) model.Order {
	c.orderSeq++

	order := model.Order{
		OrderID:         strconv.FormatInt(c.orderSeq, 10),
		Exchange:        c.PlatformName(),
		BaseAsset:       baseAsset,
		QuoteAsset:      quoteAsset,
		Side:            side,
		Type:            orderType,
		Status:          enum.OrderStatusFilled,
		Price:           price,
		OrigQty:         qty,
		ExecutedQty:     qty,
		Commission:      commission,
		CommissionAsset: commissionAsset,
		Timestamp:       c.now,
	}
	c.orders[order.OrderID] = order

	return order
}
