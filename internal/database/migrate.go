package database

import (
	"github.com/quantumchem/quantumchem-backend/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.PendingVerification{},
	)
}
