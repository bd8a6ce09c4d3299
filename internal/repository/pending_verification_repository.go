package repository

import (
	"errors"
	"time"

	"github.com/quantumchem/quantumchem-backend/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrPendingVerificationNotFound = errors.New("pending verification not found")
	ErrDuplicatePendingEmail       = errors.New("pending verification already exists for email")
)

type PendingVerificationRepository interface {
	Create(pending *domain.PendingVerification) error
	FindByEmail(email string) (*domain.PendingVerification, error)
	FindByToken(token string) (*domain.PendingVerification, error)
	// Renew swaps in a fresh token, bumps the resend counter and pushes the
	// expiry forward on the row identified by id.
	Renew(id uint, token string, expiresAt, now time.Time) error
	// DeleteByID removes the row and reports ErrPendingVerificationNotFound
	// when it was already gone. Callers use this as a test-and-delete so two
	// concurrent verifications cannot both claim the same row.
	DeleteByID(id uint) error
}

type GormPendingVerificationRepository struct{ db *gorm.DB }

func NewPendingVerificationRepository(db *gorm.DB) PendingVerificationRepository {
	return &GormPendingVerificationRepository{db: db}
}

func (r *GormPendingVerificationRepository) Create(pending *domain.PendingVerification) error {
	err := r.db.Create(pending).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePendingEmail
	}
	return err
}

func (r *GormPendingVerificationRepository) FindByEmail(email string) (*domain.PendingVerification, error) {
	var p domain.PendingVerification
	if err := r.db.Where("email = ?", email).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPendingVerificationNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormPendingVerificationRepository) FindByToken(token string) (*domain.PendingVerification, error) {
	var p domain.PendingVerification
	if err := r.db.Where("token = ?", token).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPendingVerificationNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormPendingVerificationRepository) Renew(id uint, token string, expiresAt, now time.Time) error {
	res := r.db.Model(&domain.PendingVerification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"token":          token,
			"resend_count":   gorm.Expr("resend_count + 1"),
			"last_resent_at": now,
			"expires_at":     expiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPendingVerificationNotFound
	}
	return nil
}

func (r *GormPendingVerificationRepository) DeleteByID(id uint) error {
	res := r.db.Delete(&domain.PendingVerification{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPendingVerificationNotFound
	}
	return nil
}
