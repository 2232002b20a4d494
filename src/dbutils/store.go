package dbutils

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/jiaming2012/webhook-trader/src/models"
)

const defaultListLimit = 100

// PostgresStore implements models.OrderStore on top of gorm.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("PostgresStore.Ping: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("PostgresStore.Ping: %w", err)
	}

	return nil
}

func (s *PostgresStore) SaveOrder(order *models.Order) error {
	if result := s.db.Create(order); result.Error != nil {
		return fmt.Errorf("PostgresStore.SaveOrder: %w", result.Error)
	}

	return nil
}

func (s *PostgresStore) UpdateOrder(order *models.Order) error {
	if result := s.db.Save(order); result.Error != nil {
		return fmt.Errorf("PostgresStore.UpdateOrder: %w", result.Error)
	}

	return nil
}

func (s *PostgresStore) ListOrders(filter models.OrderFilter) ([]*models.Order, error) {
	query := s.db.Order("created_at desc")

	if filter.Ticker != "" {
		query = query.Where("ticker = ?", filter.Ticker)
	}

	if filter.Nickname != "" {
		query = query.Where("nickname = ?", filter.Nickname)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var orders []*models.Order
	if result := query.Limit(limit).Offset(filter.Offset).Find(&orders); result.Error != nil {
		return nil, fmt.Errorf("PostgresStore.ListOrders: %w", result.Error)
	}

	return orders, nil
}

func (s *PostgresStore) SaveSnapshot(snapshot *models.AccountSnapshot) error {
	if result := s.db.Create(snapshot); result.Error != nil {
		return fmt.Errorf("PostgresStore.SaveSnapshot: %w", result.Error)
	}

	return nil
}

func (s *PostgresStore) ListSnapshots(name string, limit int) ([]*models.AccountSnapshot, error) {
	query := s.db.Order("created_at desc")

	if name != "" {
		query = query.Where("name = ?", name)
	}

	if limit <= 0 {
		limit = defaultListLimit
	}

	var snapshots []*models.AccountSnapshot
	if result := query.Limit(limit).Find(&snapshots); result.Error != nil {
		return nil, fmt.Errorf("PostgresStore.ListSnapshots: %w", result.Error)
	}

	return snapshots, nil
}
