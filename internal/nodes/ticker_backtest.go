package nodes

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/backfill"
	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/node"
	"main/pkg/exception"
)

// BacktestTickerConfig describes one deterministic replay source.
type BacktestTickerConfig struct {
	BaseAsset  string
	QuoteAsset string
	Interval   string
	StartTime  int64 // unix seconds
	EndTime    int64
	Pace       time.Duration // optional delay between replayed bars
}

func (c BacktestTickerConfig) Validate() error {
	if c.BaseAsset == "" || c.QuoteAsset == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "ticker assets are empty")
	}
	if _, err := model.IntervalSeconds(c.Interval); err != nil {
		return err
	}
	if c.StartTime <= 0 || c.StartTime >= c.EndTime {
		return errors.Wrapf(exception.ErrInvalidArgument, "replay window [%d, %d]", c.StartTime, c.EndTime)
	}
	return nil
}

// BacktestTicker replays stored klines as ticks. The backfill pipeline
// runs first so a gap in storage fails the run instead of silently
// replaying a shorter history. When a PriceSink is connected, each price
// is installed before the tick is published, so strategies always trade
// against the price they observed.
type BacktestTicker struct {
	id       string
	cfg      BacktestTickerConfig
	port     *node.Port
	provider backfill.KlineProvider
	store    KlineReplayStore
	barrier  *node.Barrier
	hub      *bus.Hub[model.Tick]
}

func NewBacktestTicker(id string, cfg BacktestTickerConfig, provider backfill.KlineProvider, store KlineReplayStore, barrier *node.Barrier) (*BacktestTicker, error) {
	if provider == nil || store == nil || barrier == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "backtest ticker collaborators")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &BacktestTicker{
		id:       id,
		cfg:      cfg,
		port:     node.NewPort(),
		provider: provider,
		store:    store,
		barrier:  barrier,
		hub:      bus.NewHub[model.Tick](defaultHubCapacity),
	}
	node.SetOutput(t.port, SlotTickOut, t.hub)

	return t, nil
}

func (t *BacktestTicker) ID() string       { return t.id }
func (t *BacktestTicker) Port() *node.Port { return t.port }

func (t *BacktestTicker) Execute(ctx context.Context) error {
	defer t.hub.Close()

	pipeline, err := backfill.NewPipeline(t.provider, t.store, backfill.Config{
		Market:    enum.MarketSpot,
		Symbol:    t.cfg.BaseAsset + t.cfg.QuoteAsset,
		Interval:  t.cfg.Interval,
		StartTime: t.cfg.StartTime,
		EndTime:   t.cfg.EndTime,
	})
	if err != nil {
		return err
	}

	if err := backfill.Wait(pipeline.Run(ctx)); err != nil {
		return err
	}

	if err := t.barrier.Arrive(ctx); err != nil {
		return err
	}

	sink := t.priceSink()
	symbol := t.cfg.BaseAsset + t.cfg.QuoteAsset

	klines, err := t.store.KlineRange(ctx, t.provider.PlatformName(), enum.MarketSpot,
		symbol, t.cfg.Interval, t.cfg.StartTime*1000, t.cfg.EndTime*1000)
	if err != nil {
		return errors.Wrap(err, "read replay range")
	}

	logs.Infof("backtest ticker replaying, node: %s, symbol: %s, bars: %d", t.id, symbol, len(klines))

	for _, k := range klines {
		tick := model.Tick{
			Timestamp: k.OpenTime,
			Symbol:    symbol,
			Price:     k.Close,
		}

		if sink != nil {
			sink.SetPrice(symbol, tick.Price, tick.Timestamp)
		}
		if err := t.hub.PublishSync(ctx, tick); err != nil {
			return err
		}

		if t.cfg.Pace > 0 {
			timer := time.NewTimer(t.cfg.Pace)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil
}

// priceSink resolves the optional sink input. Unconnected is fine,
// running live strategies against replayed data is not this node's call.
func (t *BacktestTicker) priceSink() PriceSink {
	sink, err := node.Input[PriceSink](t.port, SlotPriceSinkIn)
	if err != nil {
		return nil
	}

	return *sink
}
