package stats

import (
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/pkg/exception"
)

// PositionSnapshot is one persisted balance observation, keyed by time.
type PositionSnapshot struct {
	Timestamp    int64 // unix milliseconds
	BaseBalance  float64
	QuoteBalance float64
}

// NetValuePoint is one analytics row, aligned to a bar.
type NetValuePoint struct {
	Timestamp   int64
	TotalValue  float64
	NetValue    float64
	MaxNetValue float64
	Drawdown    float64
}

// NetValueSeries outer-joins chronological position snapshots with
// chronological bars and produces one row per bar. Balances are
// forward-filled across bars where no new snapshot exists: positions
// change only on fills, but valuation must be computed at every bar.
//
// NetValue is normalized to the first bar's total value; Drawdown is
// the relative decline from the running peak.
func NetValueSeries(snapshots []PositionSnapshot, bars []model.Kline) ([]NetValuePoint, error) {
	if len(snapshots) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "no position snapshots")
	}
	if len(bars) == 0 {
		return nil, nil
	}

	var (
		points  = make([]NetValuePoint, 0, len(bars))
		idx     = 0
		current = snapshots[0]
		initial float64
		maxNet  float64
	)

	for _, bar := range bars {
		for idx < len(snapshots) && snapshots[idx].Timestamp <= bar.OpenTime {
			current = snapshots[idx]
			idx++
		}

		total := current.BaseBalance*bar.Close + current.QuoteBalance
		if initial == 0 {
			if total <= 0 {
				return nil, errors.Wrapf(exception.ErrInvalidArgument, "initial total value: %v", total)
			}
			initial = total
		}

		net := total / initial
		if net > maxNet {
			maxNet = net
		}

		points = append(points, NetValuePoint{
			Timestamp:   bar.OpenTime,
			TotalValue:  total,
			NetValue:    net,
			MaxNetValue: maxNet,
			Drawdown:    1 - net/maxNet,
		})
	}

	return points, nil
}
