package nodes

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/exchange"
	"main/internal/grid"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/node"
	"main/internal/stats"
	"main/pkg/exception"
)

// SpotGridConfig describes one grid strategy ladder.
type SpotGridConfig struct {
	BaseAsset     string
	QuoteAsset    string
	Mode          enum.GridMode
	LowerPrice    float64
	UpperPrice    float64
	GridCount     int
	PriceDecimals int32
	OrderQty      float64 // base quantity per grid order
}

func (c SpotGridConfig) Validate() error {
	if c.BaseAsset == "" || c.QuoteAsset == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "grid assets are empty")
	}
	if err := grid.Validate(c.Mode, c.LowerPrice, c.UpperPrice, c.GridCount); err != nil {
		return err
	}
	if c.OrderQty <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "order qty: %v", c.OrderQty)
	}
	return nil
}

// SpotGrid trades a fixed price ladder: a downward crossing of a level
// buys one slice there, the matching upward crossing one level higher
// sells that slice. Fills and ticks feed the statistics tracker.
type SpotGrid struct {
	id      string
	cfg     SpotGridConfig
	port    *node.Port
	tracker *stats.Tracker
	barrier *node.Barrier
}

func NewSpotGrid(id string, cfg SpotGridConfig, tracker *stats.Tracker, barrier *node.Barrier) (*SpotGrid, error) {
	if tracker == nil || barrier == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "spot grid collaborators")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &SpotGrid{
		id:      id,
		cfg:     cfg,
		port:    node.NewPort(),
		tracker: tracker,
		barrier: barrier,
	}, nil
}

func (g *SpotGrid) ID() string       { return g.id }
func (g *SpotGrid) Port() *node.Port { return g.port }

func (g *SpotGrid) Execute(ctx context.Context) error {
	clientPtr, err := node.Input[exchange.SpotClient](g.port, SlotClientIn)
	if err != nil {
		return err
	}
	client := *clientPtr

	hub, err := node.Input[bus.Hub[model.Tick]](g.port, SlotTickIn)
	if err != nil {
		return err
	}

	levels, err := grid.Levels(g.cfg.Mode, g.cfg.LowerPrice, g.cfg.UpperPrice, g.cfg.GridCount, g.cfg.PriceDecimals)
	if err != nil {
		return err
	}

	profit, err := grid.ProfitRates(g.cfg.Mode, g.cfg.LowerPrice, g.cfg.UpperPrice, g.cfg.GridCount, 0)
	if err != nil {
		return err
	}
	logs.Infof("grid ladder ready, node: %s, levels: %d, profit rate: [%v, %v]",
		g.id, len(levels), profit.MinRate, profit.MaxRate)

	ticks, cancel := hub.Subscribe()
	defer cancel()

	if err := g.barrier.Arrive(ctx); err != nil {
		return err
	}

	var (
		platform    = client.PlatformName()
		inventory   = make([]float64, len(levels))
		lastIdx     int
		initialized bool
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}

			if !initialized {
				if err := g.initialize(ctx, client, tick.Price); err != nil {
					return err
				}
				lastIdx = levelIndex(levels, tick.Price)
				initialized = true
				continue
			}

			g.tracker.UpdateWithTick(platform, tick)

			idx := levelIndex(levels, tick.Price)
			switch {
			case idx < lastIdx:
				if err := g.buyRange(ctx, client, levels, inventory, idx+1, lastIdx); err != nil {
					return err
				}
			case idx > lastIdx:
				if err := g.sellRange(ctx, client, levels, inventory, lastIdx+1, idx); err != nil {
					return err
				}
			}
			lastIdx = idx
		}
	}
}

// initialize snapshots the starting balances at the first observed price.
func (g *SpotGrid) initialize(ctx context.Context, client exchange.SpotClient, price float64) error {
	base, err := g.freeBalance(ctx, client, g.cfg.BaseAsset)
	if err != nil {
		return err
	}

	quote, err := g.freeBalance(ctx, client, g.cfg.QuoteAsset)
	if err != nil {
		return err
	}

	return g.tracker.InitializeBalance(ctx, client.PlatformName(),
		g.cfg.BaseAsset, g.cfg.QuoteAsset, base, quote, price)
}

// freeBalance treats an account with no entry for the asset as zero.
func (g *SpotGrid) freeBalance(ctx context.Context, client exchange.SpotClient, asset string) (float64, error) {
	balance, err := client.GetBalance(ctx, asset)
	if err != nil {
		if errors.Is(err, exception.ErrAssetNotFound) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "get balance, asset: %s", asset)
	}

	return balance.Free, nil
}

// buyRange buys one slice at every level crossed downward, highest first.
// The topmost level never buys, its exit level would be outside the grid.
func (g *SpotGrid) buyRange(ctx context.Context, client exchange.SpotClient, levels []float64, inventory []float64, lo, hi int) error {
	for i := hi; i >= lo; i-- {
		if i < 0 || i >= len(levels)-1 || inventory[i] > 0 {
			continue
		}

		order, err := client.LimitBuy(ctx, g.cfg.BaseAsset, g.cfg.QuoteAsset, g.cfg.OrderQty, levels[i])
		if err != nil {
			if errors.Is(err, exception.ErrInsufficientBalance) {
				logs.Warnf("grid buy skipped, node: %s, level: %v, err: %+v", g.id, levels[i], err)
				continue
			}
			return errors.Wrapf(err, "grid buy, level: %v", levels[i])
		}

		inventory[i] = order.ExecutedQty - order.Commission
		if err := g.tracker.UpdateWithOrder(ctx, order); err != nil {
			return err
		}
	}

	return nil
}

// sellRange exits the slice bought one level below each upward crossing.
func (g *SpotGrid) sellRange(ctx context.Context, client exchange.SpotClient, levels []float64, inventory []float64, lo, hi int) error {
	for i := lo; i <= hi; i++ {
		if i <= 0 || i >= len(levels) || inventory[i-1] <= 0 {
			continue
		}

		order, err := client.LimitSell(ctx, g.cfg.BaseAsset, g.cfg.QuoteAsset, inventory[i-1], levels[i])
		if err != nil {
			if errors.Is(err, exception.ErrInsufficientBalance) {
				logs.Warnf("grid sell skipped, node: %s, level: %v, err: %+v", g.id, levels[i], err)
				continue
			}
			return errors.Wrapf(err, "grid sell, level: %v", levels[i])
		}

		inventory[i-1] = 0
		if err := g.tracker.UpdateWithOrder(ctx, order); err != nil {
			return err
		}
	}

	return nil
}

// levelIndex returns the highest ladder index at or below price, -1 when
// the price sits under the whole ladder.
func levelIndex(levels []float64, price float64) int {
	idx := -1
	for i, level := range levels {
		if level <= price {
			idx = i
			continue
		}
		break
	}

	return idx
}
