package exception

import "errors"

// Trading errors. Returned to the caller of a trade operation.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrTradingDisabled     = errors.New("trading disabled")
)
