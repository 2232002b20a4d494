package dbutils

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jiaming2012/webhook-trader/src/models"
)

// InitPostgresWithUrl opens the database and migrates the schema. When echo
// is set, every query is logged (DB_ECHO).
func InitPostgresWithUrl(url string, echo bool) (*gorm.DB, error) {
	logMode := logger.Default.LogMode(logger.Silent)
	if echo {
		logMode = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.AutoMigrate(&models.AccountSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func InitPostgres(host, port, user, password, dbName string, echo bool) (*gorm.DB, error) {
	url := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC", host, user, password, dbName, port)
	return InitPostgresWithUrl(url, echo)
}
