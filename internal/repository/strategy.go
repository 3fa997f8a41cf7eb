package repository

import (
	"context"

	"gorm.io/gorm/clause"
)

// UpsertSpotStats writes the cumulative stats snapshot, replacing the
// previous one for the same (workflow, node, exchange, symbol).
func (s *Store) UpsertSpotStats(ctx context.Context, record *StrategySpotStats) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "workflow_id"},
			{Name: "node_id"},
			{Name: "exchange"},
			{Name: "symbol"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_asset_balance", "quote_asset_balance", "avg_price",
			"total_trades", "buy_trades", "sell_trades", "win_trades",
			"total_base_volume", "total_quote_volume",
			"total_base_commission", "total_quote_commission",
			"realized_pnl", "first_trade_at", "last_trade_at", "updated_at",
		}),
	}).Create(record).Error
}

// AppendSpotPosition appends one balance snapshot.
func (s *Store) AppendSpotPosition(ctx context.Context, record *StrategySpotPosition) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// SpotPositions returns the snapshots of one strategy pair in
// chronological order, ready for net-value analytics.
func (s *Store) SpotPositions(ctx context.Context, workflowID, nodeID, exchange, symbol string) ([]StrategySpotPosition, error) {
	var records []StrategySpotPosition
	err := s.db.WithContext(ctx).
		Where("workflow_id = ? AND node_id = ? AND exchange = ? AND symbol = ?",
			workflowID, nodeID, exchange, symbol).
		Order("timestamp ASC").
		Find(&records).Error

	return records, err
}
