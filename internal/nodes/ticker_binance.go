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

// BinanceTickerConfig describes one live tick source.
type BinanceTickerConfig struct {
	BaseAsset  string
	QuoteAsset string
	Interval   string
	StartTime  int64 // unix seconds, backfill window start
}

func (c BinanceTickerConfig) Validate() error {
	if c.BaseAsset == "" || c.QuoteAsset == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "ticker assets are empty")
	}
	if _, err := model.IntervalSeconds(c.Interval); err != nil {
		return err
	}
	if c.StartTime <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "start time: %d", c.StartTime)
	}
	return nil
}

// TradeStream is the websocket surface the live ticker consumes.
type TradeStream interface {
	Start(ctx context.Context) error
	SubscribeTrade(ctx context.Context, symbol string) error
	ObserveTrade(ctx context.Context, symbol string, handler func(t model.Tick)) (unsubscribe func())
	Close()
}

// BinanceTicker backfills the historical window, arrives at the startup
// barrier, then streams live trade ticks into its broadcast output.
type BinanceTicker struct {
	id       string
	cfg      BinanceTickerConfig
	port     *node.Port
	provider backfill.KlineProvider
	store    backfill.KlineStore
	stream   TradeStream
	barrier  *node.Barrier
	hub      *bus.Hub[model.Tick]
	clock    func() time.Time
}

func NewBinanceTicker(id string, cfg BinanceTickerConfig, provider backfill.KlineProvider, store backfill.KlineStore, stream TradeStream, barrier *node.Barrier) (*BinanceTicker, error) {
	if provider == nil || store == nil || stream == nil || barrier == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "binance ticker collaborators")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &BinanceTicker{
		id:       id,
		cfg:      cfg,
		port:     node.NewPort(),
		provider: provider,
		store:    store,
		stream:   stream,
		barrier:  barrier,
		hub:      bus.NewHub[model.Tick](defaultHubCapacity),
		clock:    time.Now,
	}
	node.SetOutput(t.port, SlotTickOut, t.hub)

	return t, nil
}

func (t *BinanceTicker) ID() string       { return t.id }
func (t *BinanceTicker) Port() *node.Port { return t.port }

func (t *BinanceTicker) Execute(ctx context.Context) error {
	defer t.hub.Close()

	if err := t.ensureHistory(ctx); err != nil {
		return err
	}

	if err := t.barrier.Arrive(ctx); err != nil {
		return err
	}

	symbol := t.cfg.BaseAsset + t.cfg.QuoteAsset

	if err := t.stream.Start(ctx); err != nil {
		return errors.Wrap(err, "start trade stream")
	}
	defer t.stream.Close()

	if err := t.stream.SubscribeTrade(ctx, symbol); err != nil {
		return errors.Wrapf(err, "subscribe trade, symbol: %s", symbol)
	}

	// the queue decouples the websocket read loop from fan-out, a full
	// backlog drops the tick rather than stalling the stream
	queue := bus.NewQueue[model.Tick](defaultHubCapacity)
	defer queue.Close()

	unsubscribe := t.stream.ObserveTrade(ctx, symbol, func(tick model.Tick) {
		if err := queue.TryPublish(tick); err != nil {
			logs.Warnf("tick dropped, node: %s, symbol: %s, err: %v", t.id, symbol, err)
		}
	})
	defer unsubscribe()

	logs.Infof("live ticker streaming, node: %s, symbol: %s", t.id, symbol)

	queue.Run(ctx, func(tick model.Tick) {
		t.hub.Publish(tick)
	})

	return nil
}

// ensureHistory backfills [StartTime, now floored to the last closed bar].
func (t *BinanceTicker) ensureHistory(ctx context.Context) error {
	intervalSec, err := model.IntervalSeconds(t.cfg.Interval)
	if err != nil {
		return err
	}

	endTime := t.clock().Unix() / intervalSec * intervalSec
	if endTime <= t.cfg.StartTime {
		return errors.Wrapf(exception.ErrInvalidArgument,
			"backfill window empty, start: %d, end: %d", t.cfg.StartTime, endTime)
	}

	pipeline, err := backfill.NewPipeline(t.provider, t.store, backfill.Config{
		Market:    enum.MarketSpot,
		Symbol:    t.cfg.BaseAsset + t.cfg.QuoteAsset,
		Interval:  t.cfg.Interval,
		StartTime: t.cfg.StartTime,
		EndTime:   endTime,
	})
	if err != nil {
		return err
	}

	return backfill.Wait(pipeline.Run(ctx))
}
