package db

import (
	"gorm.io/gorm"

	"github.com/lnfunding/tipcards/internal/models"
)

// Migrate runs the schema migrations for all models.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.Card{},
		&models.Set{},
		&models.BulkWithdraw{},
		&models.User{},
	)
}
