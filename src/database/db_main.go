package database

import (
	"fmt"
	"time"

	"forwardtester/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MainDB is the primary read/write database connection used by the engine.
var MainDB *gorm.DB

// InitMainDB initializes the main database connection and runs migrations.
// This should be called once at application startup.
func InitMainDB() error {
	config := GetConfig()

	db, err := gorm.Open(postgres.Open(config.DatabaseURL),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to get DB from GORM")
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	MainDB = db

	logrus.Info("[database] MainDB connection established")

	if err := MainDB.AutoMigrate(
		&model.TradingSession{},
		&model.ExecutionRecord{},
		&model.OHLCVCandle{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")

	return nil
}
