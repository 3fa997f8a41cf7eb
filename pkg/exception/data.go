package exception

import "errors"

// Market data errors.
var (
	ErrDataIncomplete      = errors.New("historical data incomplete")
	ErrPriceNotFound       = errors.New("price not found")
	ErrRateNotFound        = errors.New("exchange rate not found")
	ErrIntervalUnsupported = errors.New("interval unsupported")
)
