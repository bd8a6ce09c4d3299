package repository

import (
	"errors"

	"github.com/quantumchem/quantumchem-backend/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	FindByGoogleID(googleID string) (*domain.User, error)
	Create(user *domain.User) error
	Update(user *domain.User) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, translateUserError(err)
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translateUserError(err)
	}
	return &u, nil
}

func (r *GormUserRepository) FindByGoogleID(googleID string) (*domain.User, error) {
	var u domain.User
	if err := r.db.Where("google_id = ?", googleID).First(&u).Error; err != nil {
		return nil, translateUserError(err)
	}
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	return translateUserError(r.db.Create(user).Error)
}

func (r *GormUserRepository) Update(user *domain.User) error {
	return translateUserError(r.db.Save(user).Error)
}

func translateUserError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrUserNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateEmail
	default:
		return err
	}
}
