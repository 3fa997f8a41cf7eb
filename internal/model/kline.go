package model

import "main/internal/model/enum"

// Kline is one OHLCV bar for a symbol/interval.
type Kline struct {
	Exchange string
	Market   enum.Market
	Symbol   string
	Interval string
	OpenTime int64 // unix milliseconds
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}
