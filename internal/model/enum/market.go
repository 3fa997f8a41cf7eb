package enum

type Market uint8

const (
	_market_beg Market = iota
	MarketSpot
	_market_end
)

func (m Market) IsAvailable() bool {
	return m > _market_beg && m < _market_end
}

func (m Market) String() string {
	switch m {
	case MarketSpot:
		return "spot"
	default:
		return "unknown"
	}
}

type GridMode uint8

const (
	_gridMode_beg GridMode = iota
	GridModeArithmetic
	GridModeGeometric
	_gridMode_end
)

func (m GridMode) IsAvailable() bool {
	return m > _gridMode_beg && m < _gridMode_end
}

func (m GridMode) String() string {
	switch m {
	case GridModeArithmetic:
		return "arithmetic"
	case GridModeGeometric:
		return "geometric"
	default:
		return "unknown"
	}
}

// ParseGridMode converts the workflow-definition tag into a GridMode.
// Unknown tags map to the zero value, which IsAvailable rejects.
func ParseGridMode(s string) GridMode {
	switch s {
	case "arithmetic":
		return GridModeArithmetic
	case "geometric":
		return GridModeGeometric
	default:
		return _gridMode_beg
	}
}
