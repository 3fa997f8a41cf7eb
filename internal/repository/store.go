package repository

import (
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/pkg/exception"
)

// Store bundles all persistence queries over one gorm connection.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "gorm db")
	}

	return &Store{db: db}, nil
}

// AutoMigrate creates or updates every table the store uses.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&KlineRecord{},
		&StrategySpotPosition{},
		&StrategySpotStats{},
	)
}
