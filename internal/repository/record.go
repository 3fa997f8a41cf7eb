package repository

import "time"

// KlineRecord is the persisted form of one OHLCV bar, keyed by
// (exchange, market, symbol, interval, open_time).
type KlineRecord struct {
	ID       uint   `gorm:"primaryKey"`
	Exchange string `gorm:"size:32;not null;uniqueIndex:idx_kline_key"`
	Market   string `gorm:"size:16;not null;uniqueIndex:idx_kline_key"`
	Symbol   string `gorm:"size:32;not null;uniqueIndex:idx_kline_key"`
	Interval string `gorm:"size:8;not null;uniqueIndex:idx_kline_key"`
	OpenTime int64  `gorm:"not null;uniqueIndex:idx_kline_key"`
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KlineRecord) TableName() string {
	return "klines"
}

// StrategySpotPosition is an append-only balance snapshot written after
// every fill.
type StrategySpotPosition struct {
	ID                uint   `gorm:"primaryKey"`
	WorkflowID        string `gorm:"size:64;not null;index:idx_spot_position_key"`
	NodeID            string `gorm:"size:64;not null;index:idx_spot_position_key"`
	Exchange          string `gorm:"size:32;not null;index:idx_spot_position_key"`
	Symbol            string `gorm:"size:32;not null;index:idx_spot_position_key"`
	BaseAsset         string `gorm:"size:16;not null"`
	QuoteAsset        string `gorm:"size:16;not null"`
	BaseAssetBalance  float64
	QuoteAssetBalance float64
	AvgPrice          float64
	RealizedPnl       float64
	Timestamp         int64 // unix milliseconds of the triggering fill

	CreatedAt time.Time
}

func (StrategySpotPosition) TableName() string {
	return "strategy_spot_positions"
}

// StrategySpotStats is the cumulative stats snapshot, upserted after
// every fill so reruns stay idempotent.
type StrategySpotStats struct {
	ID         uint   `gorm:"primaryKey"`
	WorkflowID string `gorm:"size:64;not null;uniqueIndex:idx_spot_stats_key"`
	NodeID     string `gorm:"size:64;not null;uniqueIndex:idx_spot_stats_key"`
	Exchange   string `gorm:"size:32;not null;uniqueIndex:idx_spot_stats_key"`
	Symbol     string `gorm:"size:32;not null;uniqueIndex:idx_spot_stats_key"`
	BaseAsset  string `gorm:"size:16;not null"`
	QuoteAsset string `gorm:"size:16;not null"`

	InitialBaseBalance  float64
	InitialQuoteBalance float64
	InitialPrice        float64

	BaseAssetBalance  float64
	QuoteAssetBalance float64
	AvgPrice          float64

	TotalTrades int64
	BuyTrades   int64
	SellTrades  int64
	WinTrades   int64

	TotalBaseVolume      float64
	TotalQuoteVolume     float64
	TotalBaseCommission  float64
	TotalQuoteCommission float64

	RealizedPnl  float64
	FirstTradeAt int64
	LastTradeAt  int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StrategySpotStats) TableName() string {
	return "strategy_spot_stats"
}
