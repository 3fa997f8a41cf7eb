package nodes

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/node"
	"main/internal/rates"
	"main/pkg/exception"
)

// RateSourceConfig names the currency pair and the source label the
// fusion engine attributes observations to.
type RateSourceConfig struct {
	BaseCurrency  string
	QuoteCurrency string
	Source        string
}

func (c RateSourceConfig) Validate() error {
	if c.BaseCurrency == "" || c.QuoteCurrency == "" || c.Source == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "rate source fields are empty")
	}
	if c.BaseCurrency == c.QuoteCurrency {
		return errors.Wrapf(exception.ErrInvalidArgument, "identical currencies: %s", c.BaseCurrency)
	}
	return nil
}

// RateSourceNode feeds observed tick prices into the fusion engine as
// rate observations for one currency pair.
type RateSourceNode struct {
	id      string
	cfg     RateSourceConfig
	port    *node.Port
	engine  *rates.Engine
	barrier *node.Barrier
}

func NewRateSourceNode(id string, cfg RateSourceConfig, engine *rates.Engine, barrier *node.Barrier) (*RateSourceNode, error) {
	if engine == nil || barrier == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "rate source collaborators")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &RateSourceNode{
		id:      id,
		cfg:     cfg,
		port:    node.NewPort(),
		engine:  engine,
		barrier: barrier,
	}, nil
}

func (n *RateSourceNode) ID() string       { return n.id }
func (n *RateSourceNode) Port() *node.Port { return n.port }

func (n *RateSourceNode) Execute(ctx context.Context) error {
	hub, err := node.Input[bus.Hub[model.Tick]](n.port, SlotTickIn)
	if err != nil {
		return err
	}

	ticks, cancel := hub.Subscribe()
	defer cancel()

	if err := n.barrier.Arrive(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}

			if err := n.engine.UpdateRate(n.cfg.BaseCurrency, n.cfg.QuoteCurrency,
				tick.Price, n.cfg.Source, time.UnixMilli(tick.Timestamp)); err != nil {
				logs.Warnf("rate update rejected, node: %s, price: %v, err: %+v", n.id, tick.Price, err)
			}
		}
	}
}
