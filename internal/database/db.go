package database

import (
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Nika0000/publisher-cli/internal/models"
)

var DB *gorm.DB

func Connect(dsn string) error {
	if dsn == "" {
		return errors.New("empty DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(60 * time.Minute)

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&models.Version{},
		&models.Build{},
	)
}
