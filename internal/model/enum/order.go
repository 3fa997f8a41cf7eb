package enum

type OrderSide uint8

const (
	_orderSide_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_orderSide_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _orderSide_beg && s < _orderSide_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

type OrderType uint8

const (
	_orderType_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	_orderType_end
)

func (t OrderType) IsAvailable() bool {
	return t > _orderType_beg && t < _orderType_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}

type OrderStatus uint8

const (
	_orderStatus_beg OrderStatus = iota
	OrderStatusNew
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusRejected
	_orderStatus_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _orderStatus_beg && s < _orderStatus_end
}

// IsTerminal reports whether no further fills can happen for this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	default:
		return false
	}
}
