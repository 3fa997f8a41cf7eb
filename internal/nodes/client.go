package nodes

import (
	"context"

	"github.com/yanun0323/errors"

	"main/internal/exchange"
	"main/internal/node"
	"main/pkg/exception"
)

// SpotClientNode exposes a live SpotClient on its output slot. Execute
// verifies the account is allowed to trade before any strategy starts.
type SpotClientNode struct {
	id     string
	port   *node.Port
	client exchange.SpotClient
}

func NewSpotClientNode(id string, client exchange.SpotClient) (*SpotClientNode, error) {
	if client == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "spot client")
	}

	n := &SpotClientNode{
		id:     id,
		port:   node.NewPort(),
		client: client,
	}
	node.SetOutput(n.port, SlotClientOut, &n.client)

	return n, nil
}

func (n *SpotClientNode) ID() string       { return n.id }
func (n *SpotClientNode) Port() *node.Port { return n.port }

func (n *SpotClientNode) Execute(ctx context.Context) error {
	account, err := n.client.GetAccount(ctx)
	if err != nil {
		return errors.Wrap(err, "get account")
	}

	if !account.CanTrade {
		return errors.Wrapf(exception.ErrTradingDisabled, "platform: %s", n.client.PlatformName())
	}

	return nil
}

// BacktestSpotClientConfig seeds the deterministic client node.
type BacktestSpotClientConfig struct {
	BaseAsset    string
	QuoteAsset   string
	BaseBalance  float64
	QuoteBalance float64
	MakerRate    float64
	TakerRate    float64
}

func (c BacktestSpotClientConfig) Validate() error {
	if c.BaseAsset == "" || c.QuoteAsset == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "client assets are empty")
	}
	if c.BaseBalance < 0 || c.QuoteBalance < 0 {
		return errors.Wrapf(exception.ErrInvalidArgument,
			"seed balance must not be negative, base: %v, quote: %v", c.BaseBalance, c.QuoteBalance)
	}
	if c.MakerRate < 0 || c.TakerRate < 0 {
		return errors.Wrapf(exception.ErrInvalidArgument,
			"commission rate must not be negative, maker: %v, taker: %v", c.MakerRate, c.TakerRate)
	}
	return nil
}

// BacktestSpotClientNode exposes a seeded backtest client plus its price
// sink, which a replay ticker connects to.
type BacktestSpotClientNode struct {
	id     string
	port   *node.Port
	client exchange.SpotClient
	sink   PriceSink
}

func NewBacktestSpotClientNode(id string, cfg BacktestSpotClientConfig) (*BacktestSpotClientNode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := exchange.NewBacktestClient(exchange.BacktestConfig{
		MakerCommissionRate: cfg.MakerRate,
		TakerCommissionRate: cfg.TakerRate,
		Balances: map[string]float64{
			cfg.BaseAsset:  cfg.BaseBalance,
			cfg.QuoteAsset: cfg.QuoteBalance,
		},
	})

	n := &BacktestSpotClientNode{
		id:     id,
		port:   node.NewPort(),
		client: client,
		sink:   client,
	}
	node.SetOutput(n.port, SlotClientOut, &n.client)
	node.SetOutput(n.port, SlotPriceSinkOut, &n.sink)

	return n, nil
}

func (n *BacktestSpotClientNode) ID() string       { return n.id }
func (n *BacktestSpotClientNode) Port() *node.Port { return n.port }

func (n *BacktestSpotClientNode) Execute(ctx context.Context) error {
	return nil
}
