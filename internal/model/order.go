package model

import "main/internal/model/enum"

// Order is a fill report from an exchange client.
//
// Commission is denominated in the base asset for buys and in the quote
// asset for sells, matching exchange spot conventions.
type Order struct {
	OrderID         string
	Exchange        string
	BaseAsset       string
	QuoteAsset      string
	Side            enum.OrderSide
	Type            enum.OrderType
	Status          enum.OrderStatus
	Price           float64
	OrigQty         float64
	ExecutedQty     float64
	Commission      float64
	CommissionAsset string
	Timestamp       int64 // unix milliseconds
}

// Symbol returns the concatenated exchange symbol, e.g. BTCUSDT.
func (o Order) Symbol() string {
	return o.BaseAsset + o.QuoteAsset
}

// QuoteVolume returns the gross quote amount of the fill.
func (o Order) QuoteVolume() float64 {
	return o.Price * o.ExecutedQty
}
