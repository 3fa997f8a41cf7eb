package grid

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model/enum"
	"main/pkg/exception"
)

const (
	minGridCount = 2
	maxGridCount = 150
)

// Validate checks the grid parameters shared by Levels and ProfitRates.
func Validate(mode enum.GridMode, lower, upper float64, count int) error {
	if !mode.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidArgument, "grid mode: %d", mode)
	}

	if lower <= 0 || upper <= 0 {
		return errors.Wrapf(exception.ErrInvalidArgument, "grid prices must be positive, lower: %v, upper: %v", lower, upper)
	}

	if lower >= upper {
		return errors.Wrapf(exception.ErrInvalidArgument, "lower price must be below upper price, lower: %v, upper: %v", lower, upper)
	}

	if count < minGridCount || count > maxGridCount {
		return errors.Wrapf(exception.ErrInvalidArgument, "grid count out of range [%d, %d]: %d", minGridCount, maxGridCount, count)
	}

	return nil
}

// Levels produces count+1 price levels between lower and upper.
// Arithmetic mode spaces levels by a constant price step, geometric mode
// by a constant ratio. Levels are rounded half-up to decimals.
func Levels(mode enum.GridMode, lower, upper float64, count int, decimals int32) ([]float64, error) {
	if err := Validate(mode, lower, upper, count); err != nil {
		return nil, err
	}

	levels := make([]float64, 0, count+1)

	switch mode {
	case enum.GridModeArithmetic:
		step := (upper - lower) / float64(count)
		for i := 0; i <= count; i++ {
			levels = append(levels, RoundHalfUp(lower+step*float64(i), decimals))
		}
	case enum.GridModeGeometric:
		ratio := math.Pow(upper/lower, 1/float64(count))
		price := lower
		for i := 0; i <= count; i++ {
			levels = append(levels, RoundHalfUp(price, decimals))
			price *= ratio
		}
	}

	return levels, nil
}

// ProfitRate bounds the per-grid profit of a ladder after taker
// commission. Arithmetic grids have constant absolute spacing, so the
// relative profit shrinks toward the top: MinRate is the top pair and
// MaxRate the bottom pair. Geometric grids have constant relative
// spacing and MinRate == MaxRate. Advisory output only.
type ProfitRate struct {
	MinRate float64
	MaxRate float64
}

// ProfitRates derives the per-grid profit-rate bounds, floored to 4 decimals.
func ProfitRates(mode enum.GridMode, lower, upper float64, count int, takerRate float64) (ProfitRate, error) {
	if err := Validate(mode, lower, upper, count); err != nil {
		return ProfitRate{}, err
	}

	if takerRate < 0 || takerRate >= 1 {
		return ProfitRate{}, errors.Wrapf(exception.ErrInvalidArgument, "taker rate: %v", takerRate)
	}

	switch mode {
	case enum.GridModeArithmetic:
		step := (upper - lower) / float64(count)
		maxRate := pairProfitRate(lower, lower+step, takerRate)
		minRate := pairProfitRate(upper-step, upper, takerRate)
		return ProfitRate{
			MinRate: floorTo(minRate, 4),
			MaxRate: floorTo(maxRate, 4),
		}, nil
	default:
		ratio := math.Pow(upper/lower, 1/float64(count))
		rate := floorTo(ratio*(1-takerRate)/(1+takerRate)-1, 4)
		return ProfitRate{MinRate: rate, MaxRate: rate}, nil
	}
}

// pairProfitRate is the net profit of buying at buy and selling at sell
// relative to the gross buy cost, paying takerRate on both legs.
func pairProfitRate(buy, sell, takerRate float64) float64 {
	return sell*(1-takerRate)/(buy*(1+takerRate)) - 1
}

// RoundHalfUp rounds v to decimals, halves away from zero. Rounding
// runs on the decimal digits of v, not its binary representation, so
// values like 1.0375 round up.
func RoundHalfUp(v float64, decimals int32) float64 {
	return decimal.NewFromFloat(v).Round(decimals).InexactFloat64()
}

func floorTo(v float64, decimals int32) float64 {
	return decimal.NewFromFloat(v).RoundFloor(decimals).InexactFloat64()
}
