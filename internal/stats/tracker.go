package stats

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/repository"
	"main/pkg/exception"
)

// SpotStatsData is the running trading state for one (exchange, symbol).
type SpotStatsData struct {
	Exchange   string
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	InitialBaseBalance  float64
	InitialQuoteBalance float64
	InitialPrice        float64

	BaseAssetBalance  float64
	QuoteAssetBalance float64
	AvgPrice          float64

	TotalTrades int64
	BuyTrades   int64
	SellTrades  int64
	WinTrades   int64

	TotalBaseVolume      float64
	TotalQuoteVolume     float64
	TotalBaseCommission  float64
	TotalQuoteCommission float64

	RealizedPnl   float64
	UnrealizedPnl float64

	FirstTradeAt int64 // unix milliseconds, zero until the first fill
	LastTradeAt  int64
}

// Repository persists tracker snapshots. Both writes are idempotent
// upserts/appends keyed by (workflow, node, exchange, symbol).
type Repository interface {
	UpsertSpotStats(ctx context.Context, record *repository.StrategySpotStats) error
	AppendSpotPosition(ctx context.Context, record *repository.StrategySpotPosition) error
}

type key struct {
	exchange string
	symbol   string
}

// Tracker is the order-driven balance/PnL state machine of one strategy
// node. Transitions are driven only by fills and price ticks; every fill
// persists a position snapshot and a cumulative stats snapshot. Balances
// and PnL accumulate in decimal arithmetic, float64 is only the storage
// format.
type Tracker struct {
	workflowID string
	nodeID     string
	repo       Repository

	mu   sync.Mutex
	data map[key]*SpotStatsData
}

// NewTracker creates a tracker. repo may be nil to keep state in memory
// only (backtests that do not need persisted snapshots).
func NewTracker(workflowID, nodeID string, repo Repository) *Tracker {
	return &Tracker{
		workflowID: workflowID,
		nodeID:     nodeID,
		repo:       repo,
		data:       make(map[key]*SpotStatsData),
	}
}

// InitializeBalance sets the initial balances and price for a pair and
// persists the starting snapshot.
func (t *Tracker) InitializeBalance(ctx context.Context, exchange, baseAsset, quoteAsset string, baseBalance, quoteBalance, price float64) error {
	if baseBalance < 0 || quoteBalance < 0 || price < 0 {
		return errors.Wrapf(exception.ErrInvalidArgument,
			"initial balance must not be negative, base: %v, quote: %v, price: %v", baseBalance, quoteBalance, price)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d := &SpotStatsData{
		Exchange:            exchange,
		Symbol:              baseAsset + quoteAsset,
		BaseAsset:           baseAsset,
		QuoteAsset:          quoteAsset,
		InitialBaseBalance:  baseBalance,
		InitialQuoteBalance: quoteBalance,
		InitialPrice:        price,
		BaseAssetBalance:    baseBalance,
		QuoteAssetBalance:   quoteBalance,
	}
	t.data[key{exchange: exchange, symbol: d.Symbol}] = d

	return t.persist(ctx, d)
}

// UpdateWithOrder applies one fill and persists both snapshots.
func (t *Tracker) UpdateWithOrder(ctx context.Context, order model.Order) error {
	if order.ExecutedQty <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "executed qty: %v", order.ExecutedQty)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.get(order.Exchange, order.Symbol())
	if err != nil {
		return err
	}

	switch order.Side {
	case enum.OrderSideBuy:
		applyBuy(d, order)
	case enum.OrderSideSell:
		applySell(d, order)
	default:
		return errors.Wrapf(exception.ErrInvalidArgument, "order side: %d", order.Side)
	}

	d.TotalTrades++
	d.TotalBaseVolume = dec(d.TotalBaseVolume).Add(dec(order.ExecutedQty)).InexactFloat64()
	d.TotalQuoteVolume = dec(d.TotalQuoteVolume).Add(dec(order.QuoteVolume())).InexactFloat64()
	if d.FirstTradeAt == 0 {
		d.FirstTradeAt = order.Timestamp
	}
	d.LastTradeAt = order.Timestamp

	return t.persist(ctx, d)
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// applyBuy nets the commission out of the received base amount and
// recomputes the weighted average entry price.
func applyBuy(d *SpotStatsData, order model.Order) {
	net := dec(order.ExecutedQty).Sub(dec(order.Commission))
	balance := dec(d.BaseAssetBalance)
	total := balance.Add(net)

	if total.IsPositive() {
		cost := balance.Mul(dec(d.AvgPrice)).Add(net.Mul(dec(order.Price)))
		d.AvgPrice = cost.Div(total).InexactFloat64()
	}

	d.BaseAssetBalance = total.InexactFloat64()
	d.QuoteAssetBalance = dec(d.QuoteAssetBalance).Sub(dec(order.QuoteVolume())).InexactFloat64()
	d.TotalBaseCommission = dec(d.TotalBaseCommission).Add(dec(order.Commission)).InexactFloat64()
	d.BuyTrades++
}

// applySell realizes PnL against the average cost basis.
func applySell(d *SpotStatsData, order model.Order) {
	netProceeds := dec(order.QuoteVolume()).Sub(dec(order.Commission))
	cost := dec(order.ExecutedQty).Mul(dec(d.AvgPrice))

	if netProceeds.GreaterThan(cost) {
		d.WinTrades++
	}
	d.RealizedPnl = dec(d.RealizedPnl).Add(netProceeds.Sub(cost)).InexactFloat64()

	d.BaseAssetBalance = dec(d.BaseAssetBalance).Sub(dec(order.ExecutedQty)).InexactFloat64()
	d.QuoteAssetBalance = dec(d.QuoteAssetBalance).Add(netProceeds).InexactFloat64()
	d.TotalQuoteCommission = dec(d.TotalQuoteCommission).Add(dec(order.Commission)).InexactFloat64()
	d.SellTrades++
}

// UpdateWithTick recomputes the unrealized PnL from the latest price.
// Persisted state is not touched.
func (t *Tracker) UpdateWithTick(exchange string, tick model.Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.data[key{exchange: exchange, symbol: tick.Symbol}]
	if !ok {
		return
	}

	d.UnrealizedPnl = d.BaseAssetBalance * (tick.Price - d.AvgPrice)
}

// Data returns a copy of the tracked state for one pair.
func (t *Tracker) Data(exchange, symbol string) (SpotStatsData, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.data[key{exchange: exchange, symbol: symbol}]
	if !ok {
		return SpotStatsData{}, false
	}

	return *d, true
}

func (t *Tracker) get(exchange, symbol string) (*SpotStatsData, error) {
	d, ok := t.data[key{exchange: exchange, symbol: symbol}]
	if !ok {
		return nil, errors.Wrapf(exception.ErrAssetNotFound, "exchange: %s, symbol: %s", exchange, symbol)
	}

	return d, nil
}

func (t *Tracker) persist(ctx context.Context, d *SpotStatsData) error {
	if t.repo == nil {
		return nil
	}

	position := &repository.StrategySpotPosition{
		WorkflowID:        t.workflowID,
		NodeID:            t.nodeID,
		Exchange:          d.Exchange,
		Symbol:            d.Symbol,
		BaseAsset:         d.BaseAsset,
		QuoteAsset:        d.QuoteAsset,
		BaseAssetBalance:  d.BaseAssetBalance,
		QuoteAssetBalance: d.QuoteAssetBalance,
		AvgPrice:          d.AvgPrice,
		RealizedPnl:       d.RealizedPnl,
		Timestamp:         d.LastTradeAt,
	}
	if err := t.repo.AppendSpotPosition(ctx, position); err != nil {
		return errors.Wrap(err, "append position snapshot")
	}

	stats := &repository.StrategySpotStats{
		WorkflowID:           t.workflowID,
		NodeID:               t.nodeID,
		Exchange:             d.Exchange,
		Symbol:               d.Symbol,
		BaseAsset:            d.BaseAsset,
		QuoteAsset:           d.QuoteAsset,
		InitialBaseBalance:   d.InitialBaseBalance,
		InitialQuoteBalance:  d.InitialQuoteBalance,
		InitialPrice:         d.InitialPrice,
		BaseAssetBalance:     d.BaseAssetBalance,
		QuoteAssetBalance:    d.QuoteAssetBalance,
		AvgPrice:             d.AvgPrice,
		TotalTrades:          d.TotalTrades,
		BuyTrades:            d.BuyTrades,
		SellTrades:           d.SellTrades,
		WinTrades:            d.WinTrades,
		TotalBaseVolume:      d.TotalBaseVolume,
		TotalQuoteVolume:     d.TotalQuoteVolume,
		TotalBaseCommission:  d.TotalBaseCommission,
		TotalQuoteCommission: d.TotalQuoteCommission,
		RealizedPnl:          d.RealizedPnl,
		FirstTradeAt:         d.FirstTradeAt,
		LastTradeAt:          d.LastTradeAt,
	}
	if err := t.repo.UpsertSpotStats(ctx, stats); err != nil {
		return errors.Wrap(err, "upsert stats snapshot")
	}

	return nil
}
