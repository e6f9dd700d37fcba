package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"textbook-rag-be/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func getLogger(isProd bool) logger.Interface {
	level := logger.Info
	if isProd {
		level = logger.Warn
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  !isProd,
		},
	)
}

func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return nil
}

func NewGormDBFromDSN(dsn string, isProd bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         getLogger(isProd),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates the conversations and messages tables with their
// indexes. The chunk table is owned by the pgvector index.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Conversation{}, &model.Message{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
