package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quantumchem/quantumchem-backend/internal/domain"
	"github.com/quantumchem/quantumchem-backend/internal/security"
)

// Seed ensures a verified manual demo account exists so a fresh local
// environment can sign in without going through SMTP. The password never
// expires; this is development data, not a temporary credential.
func Seed(db *gorm.DB, email, name, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return fmt.Errorf("seed email and password are required")
	}
	if name == "" {
		name = "Demo User"
	}

	var existing domain.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	user := domain.User{
		Name:            name,
		Email:           email,
		AuthProvider:    domain.AuthProviderManual,
		PasswordHash:    &hash,
		IsEmailVerified: true,
	}
	return db.Create(&user).Error
}

// PromotePending consumes a pending verification directly in the database,
// standing in for the emailed link when mail delivery is disabled locally.
// It returns the freshly minted temporary password.
func PromotePending(db *gorm.DB, email string, tempPasswordTTL time.Duration) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	var pending domain.PendingVerification
	if err := db.Where("email = ?", email).First(&pending).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("no pending verification for %s", email)
		}
		return "", err
	}

	tempPassword, err := security.NewTempPassword()
	if err != nil {
		return "", err
	}
	hash, err := security.HashPassword(tempPassword)
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().UTC().Add(tempPasswordTTL)

	err = db.Transaction(func(tx *gorm.DB) error {
		user := domain.User{
			Name:              pending.Name,
			Email:             pending.Email,
			AuthProvider:      domain.AuthProviderManual,
			PasswordHash:      &hash,
			PasswordExpiresAt: &expiresAt,
			IsEmailVerified:   true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.PendingVerification{}, pending.ID).Error
	})
	if err != nil {
		return "", err
	}
	return tempPassword, nil
}
