package workflow

import (
	"encoding/json"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model/enum"
	"main/internal/nodes"
	"main/pkg/exception"
)

// Node type tags accepted by the builder.
const (
	TypeBinanceTicker      = "binance_ticker"
	TypeBacktestTicker     = "backtest_ticker"
	TypeSpotClient         = "spot_client"
	TypeBacktestSpotClient = "backtest_spot_client"
	TypeSpotGrid           = "spot_grid"
	TypeRateSource         = "rate_source"
)

// Definition is the parsed workflow graph.
//
// Node params are positional, their schema is fixed per node type:
//
//	binance_ticker       [base, quote, interval, startSec]
//	backtest_ticker      [base, quote, interval, startSec, endSec, paceMs?]
//	spot_client          []
//	backtest_spot_client [base, quote, baseBalance, quoteBalance, makerRate, takerRate]
//	spot_grid            [base, quote, mode, lower, upper, count, decimals, qty]
//	rate_source          [baseCurrency, quoteCurrency, source]
type Definition struct {
	ID    string           `json:"id"`
	Nodes []NodeDefinition `json:"nodes"`
	Links []LinkDefinition `json:"links"`
}

type NodeDefinition struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Params []any  `json:"params"`
}

type LinkDefinition struct {
	OriginID   string `json:"origin_id"`
	OriginSlot int    `json:"origin_slot"`
	TargetID   string `json:"target_id"`
	TargetSlot int    `json:"target_slot"`
}

// Parse decodes and fully validates a workflow definition. A malformed
// graph is rejected here, before any node is constructed.
func Parse(data []byte) (Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, errors.Wrap(err, "decode workflow definition")
	}

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}

	return def, nil
}

func (d Definition) Validate() error {
	if d.ID == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "workflow id is empty")
	}
	if len(d.Nodes) == 0 {
		return errors.Wrap(exception.ErrInvalidArgument, "workflow has no nodes")
	}

	seen := make(map[string]string, len(d.Nodes))
	for _, nd := range d.Nodes {
		if nd.ID == "" {
			return errors.Wrap(exception.ErrInvalidArgument, "node id is empty")
		}
		if _, ok := seen[nd.ID]; ok {
			return errors.Wrapf(exception.ErrInvalidArgument, "duplicate node id: %s", nd.ID)
		}
		seen[nd.ID] = nd.Type

		if err := validateNodeParams(nd); err != nil {
			return errors.Wrapf(err, "node: %s", nd.ID)
		}
	}

	for _, link := range d.Links {
		if err := validateLink(link, seen); err != nil {
			return err
		}
	}

	return nil
}

// slotKind classifies what value a slot carries, so link compatibility
// is checked while the graph is still just JSON.
type slotKind uint8

const (
	slotKindTick slotKind = iota + 1
	slotKindClient
	slotKindPriceSink
)

var nodeOutputSlots = map[string]map[int]slotKind{
	TypeBinanceTicker:  {nodes.SlotTickOut: slotKindTick},
	TypeBacktestTicker: {nodes.SlotTickOut: slotKindTick},
	TypeSpotClient:     {nodes.SlotClientOut: slotKindClient},
	TypeBacktestSpotClient: {
		nodes.SlotClientOut:    slotKindClient,
		nodes.SlotPriceSinkOut: slotKindPriceSink,
	},
}

var nodeInputSlots = map[string]map[int]slotKind{
	TypeBacktestTicker: {nodes.SlotPriceSinkIn: slotKindPriceSink},
	TypeSpotGrid: {
		nodes.SlotTickIn:   slotKindTick,
		nodes.SlotClientIn: slotKindClient,
	},
	TypeRateSource: {nodes.SlotTickIn: slotKindTick},
}

func validateLink(link LinkDefinition, nodeTypes map[string]string) error {
	originType, ok := nodeTypes[link.OriginID]
	if !ok {
		return errors.Wrapf(exception.ErrNodeNotFound, "link origin: %s", link.OriginID)
	}

	targetType, ok := nodeTypes[link.TargetID]
	if !ok {
		return errors.Wrapf(exception.ErrNodeNotFound, "link target: %s", link.TargetID)
	}

	outKind, ok := nodeOutputSlots[originType][link.OriginSlot]
	if !ok {
		return errors.Wrapf(exception.ErrSlotNotConnected,
			"node %s (%s) has no output slot %d", link.OriginID, originType, link.OriginSlot)
	}

	inKind, ok := nodeInputSlots[targetType][link.TargetSlot]
	if !ok {
		return errors.Wrapf(exception.ErrSlotNotConnected,
			"node %s (%s) has no input slot %d", link.TargetID, targetType, link.TargetSlot)
	}

	if outKind != inKind {
		return errors.Wrapf(exception.ErrSlotTypeMismatch,
			"link %s:%d -> %s:%d", link.OriginID, link.OriginSlot, link.TargetID, link.TargetSlot)
	}

	return nil
}

func validateNodeParams(nd NodeDefinition) error {
	switch nd.Type {
	case TypeBinanceTicker:
		cfg, err := binanceTickerConfig(nd.Params)
		if err != nil {
			return err
		}
		return cfg.Validate()
	case TypeBacktestTicker:
		cfg, err := backtestTickerConfig(nd.Params)
		if err != nil {
			return err
		}
		return cfg.Validate()
	case TypeSpotClient:
		if len(nd.Params) != 0 {
			return errors.Wrapf(exception.ErrInvalidArgument, "spot_client takes no params, got %d", len(nd.Params))
		}
		return nil
	case TypeBacktestSpotClient:
		cfg, err := backtestSpotClientConfig(nd.Params)
		if err != nil {
			return err
		}
		return cfg.Validate()
	case TypeSpotGrid:
		cfg, err := spotGridConfig(nd.Params)
		if err != nil {
			return err
		}
		return cfg.Validate()
	case TypeRateSource:
		cfg, err := rateSourceConfig(nd.Params)
		if err != nil {
			return err
		}
		return cfg.Validate()
	default:
		return errors.Wrapf(exception.ErrInvalidArgument, "unknown node type: %s", nd.Type)
	}
}

func paramString(params []any, idx int) (string, error) {
	if idx >= len(params) {
		return "", errors.Wrapf(exception.ErrInvalidArgument, "missing param %d", idx)
	}

	s, ok := params[idx].(string)
	if !ok {
		return "", errors.Wrapf(exception.ErrInvalidArgument, "param %d: expected string, got %T", idx, params[idx])
	}

	return s, nil
}

func paramFloat(params []any, idx int) (float64, error) {
	if idx >= len(params) {
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "missing param %d", idx)
	}

	f, ok := params[idx].(float64)
	if !ok {
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "param %d: expected number, got %T", idx, params[idx])
	}

	return f, nil
}

func paramInt(params []any, idx int) (int64, error) {
	f, err := paramFloat(params, idx)
	if err != nil {
		return 0, err
	}

	n := int64(f)
	if float64(n) != f {
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "param %d: expected integer, got %v", idx, f)
	}

	return n, nil
}

func binanceTickerConfig(params []any) (nodes.BinanceTickerConfig, error) {
	var (
		cfg nodes.BinanceTickerConfig
		err error
	)

	if cfg.BaseAsset, err = paramString(params, 0); err != nil {
		return cfg, err
	}
	if cfg.QuoteAsset, err = paramString(params, 1); err != nil {
		return cfg, err
	}
	if cfg.Interval, err = paramString(params, 2); err != nil {
		return cfg, err
	}
	if cfg.StartTime, err = paramInt(params, 3); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func backtestTickerConfig(params []any) (nodes.BacktestTickerConfig, error) {
	var (
		cfg nodes.BacktestTickerConfig
		err error
	)

	if cfg.BaseAsset, err = paramString(params, 0); err != nil {
		return cfg, err
	}
	if cfg.QuoteAsset, err = paramString(params, 1); err != nil {
		return cfg, err
	}
	if cfg.Interval, err = paramString(params, 2); err != nil {
		return cfg, err
	}
	if cfg.StartTime, err = paramInt(params, 3); err != nil {
		return cfg, err
	}
	if cfg.EndTime, err = paramInt(params, 4); err != nil {
		return cfg, err
	}

	if len(params) > 5 {
		paceMs, err := paramInt(params, 5)
		if err != nil {
			return cfg, err
		}
		if paceMs < 0 {
			return cfg, errors.Wrapf(exception.ErrInvalidArgument, "pace: %d", paceMs)
		}
		cfg.Pace = time.Duration(paceMs) * time.Millisecond
	}

	return cfg, nil
}

func backtestSpotClientConfig(params []any) (nodes.BacktestSpotClientConfig, error) {
	var (
		cfg nodes.BacktestSpotClientConfig
		err error
	)

	if cfg.BaseAsset, err = paramString(params, 0); err != nil {
		return cfg, err
	}
	if cfg.QuoteAsset, err = paramString(params, 1); err != nil {
		return cfg, err
	}
	if cfg.BaseBalance, err = paramFloat(params, 2); err != nil {
		return cfg, err
	}
	if cfg.QuoteBalance, err = paramFloat(params, 3); err != nil {
		return cfg, err
	}
	if cfg.MakerRate, err = paramFloat(params, 4); err != nil {
		return cfg, err
	}
	if cfg.TakerRate, err = paramFloat(params, 5); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func spotGridConfig(params []any) (nodes.SpotGridConfig, error) {
	var (
		cfg nodes.SpotGridConfig
		err error
	)

	if cfg.BaseAsset, err = paramString(params, 0); err != nil {
		return cfg, err
	}
	if cfg.QuoteAsset, err = paramString(params, 1); err != nil {
		return cfg, err
	}

	mode, err := paramString(params, 2)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = enum.ParseGridMode(mode)

	if cfg.LowerPrice, err = paramFloat(params, 3); err != nil {
		return cfg, err
	}
	if cfg.UpperPrice, err = paramFloat(params, 4); err != nil {
		return cfg, err
	}

	count, err := paramInt(params, 5)
	if err != nil {
		return cfg, err
	}
	cfg.GridCount = int(count)

	decimals, err := paramInt(params, 6)
	if err != nil {
		return cfg, err
	}
	cfg.PriceDecimals = int32(decimals)

	if cfg.OrderQty, err = paramFloat(params, 7); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func rateSourceConfig(params []any) (nodes.RateSourceConfig, error) {
	var (
		cfg nodes.RateSourceConfig
		err error
	)

	if cfg.BaseCurrency, err = paramString(params, 0); err != nil {
		return cfg, err
	}
	if cfg.QuoteCurrency, err = paramString(params, 1); err != nil {
		return cfg, err
	}
	if cfg.Source, err = paramString(params, 2); err != nil {
		return cfg, err
	}

	return cfg, nil
}
