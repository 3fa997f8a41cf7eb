// Package nodes holds the built-in workflow node implementations.
//
// Slot layout is part of each node's contract: tick sources expose the
// broadcast hub on output slot 0, client nodes expose the SpotClient on
// output slot 0, and strategy nodes take ticks on input slot 0 and the
// client on input slot 1.
package nodes

import (
	"context"

	"main/internal/model"
	"main/internal/model/enum"
)

const (
	// SlotTickOut/SlotTickIn carry the broadcast tick hub.
	SlotTickOut = 0
	SlotTickIn  = 0

	// SlotClientOut/SlotClientIn carry the SpotClient capability.
	SlotClientOut = 0
	SlotClientIn  = 1

	// SlotPriceSinkOut/SlotPriceSinkIn connect a replay source to the
	// backtest price store.
	SlotPriceSinkOut = 1
	SlotPriceSinkIn  = 2

	defaultHubCapacity = 256
)

// PriceSink receives replayed prices before any strategy observes the
// matching tick. The backtest client implements it.
type PriceSink interface {
	SetPrice(symbol string, price float64, timestamp int64)
}

// KlineReplayStore is the persistence surface replay sources need:
// completeness checks for backfill plus the ordered range read.
type KlineReplayStore interface {
	UpsertKlines(ctx context.Context, klines []model.Kline) error
	CountKlines(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) (int64, error)
	KlineTimeBounds(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) (minOpen, maxOpen int64, ok bool, err error)
	KlineRange(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) ([]model.Kline, error)
}
