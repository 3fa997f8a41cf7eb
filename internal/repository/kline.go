package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm/clause"

	"main/internal/model"
	"main/internal/model/enum"
)

// UpsertKlines inserts bars or updates the OHLCV of existing ones keyed
// by (exchange, market, symbol, interval, open_time). Same-bar updates
// only ever touch high/low/close/volume, so replays stay idempotent.
func (s *Store) UpsertKlines(ctx context.Context, klines []model.Kline) error {
	if len(klines) == 0 {
		return nil
	}

	records := make([]KlineRecord, 0, len(klines))
	for _, k := range klines {
		records = append(records, KlineRecord{
			Exchange: k.Exchange,
			Market:   k.Market.String(),
			Symbol:   k.Symbol,
			Interval: k.Interval,
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		})
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "exchange"},
			{Name: "market"},
			{Name: "symbol"},
			{Name: "interval"},
			{Name: "open_time"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "updated_at"}),
	}).Create(&records).Error
}

// CountKlines returns the stored bar count in [start, end] milliseconds.
func (s *Store) CountKlines(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&KlineRecord{}).
		Where("exchange = ? AND market = ? AND symbol = ? AND interval = ? AND open_time BETWEEN ? AND ?",
			exchange, market.String(), symbol, interval, start, end).
		Count(&count).Error

	return count, err
}

// KlineTimeBounds returns the min/max open_time stored in [start, end].
// ok is false when no bars are stored in the range.
func (s *Store) KlineTimeBounds(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) (minOpen, maxOpen int64, ok bool, err error) {
	var bounds struct {
		MinOpen sql.NullInt64
		MaxOpen sql.NullInt64
	}

	err = s.db.WithContext(ctx).
		Model(&KlineRecord{}).
		Select("MIN(open_time) AS min_open, MAX(open_time) AS max_open").
		Where("exchange = ? AND market = ? AND symbol = ? AND interval = ? AND open_time BETWEEN ? AND ?",
			exchange, market.String(), symbol, interval, start, end).
		Scan(&bounds).Error
	if err != nil {
		return 0, 0, false, err
	}

	if !bounds.MinOpen.Valid || !bounds.MaxOpen.Valid {
		return 0, 0, false, nil
	}

	return bounds.MinOpen.Int64, bounds.MaxOpen.Int64, true, nil
}

// KlineRange streams the stored bars in [start, end] ordered by open_time.
func (s *Store) KlineRange(ctx context.Context, exchange string, market enum.Market, symbol, interval string, start, end int64) ([]model.Kline, error) {
	var records []KlineRecord
	err := s.db.WithContext(ctx).
		Where("exchange = ? AND market = ? AND symbol = ? AND interval = ? AND open_time BETWEEN ? AND ?",
			exchange, market.String(), symbol, interval, start, end).
		Order("open_time ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	klines := make([]model.Kline, 0, len(records))
	for _, r := range records {
		klines = append(klines, model.Kline{
			Exchange: r.Exchange,
			Market:   market,
			Symbol:   r.Symbol,
			Interval: r.Interval,
			OpenTime: r.OpenTime,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		})
	}

	return klines, nil
}
