package repository

import (
	"github.com/harborchat/harbor-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.Chat{},
		&models.ChatMember{},
		&models.Message{},
		&models.MessageRead{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
