package service

import (
	"context"

	"github.com/quantumchem/quantumchem-backend/internal/domain"
)

type AccountServiceInterface interface {
	RegisterManual(ctx context.Context, name, email string) error
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
	LoginManual(ctx context.Context, email, password string) (*LoginResult, error)
	ResetPassword(ctx context.Context, email string) error
	GoogleUpsert(ctx context.Context, identity *ExternalIdentity) (*LoginResult, error)
	Profile(ctx context.Context, userID uint) (*domain.User, error)
}

type OAuthServiceInterface interface {
	LoginURL(state string) string
	FetchIdentity(ctx context.Context, code string) (*ExternalIdentity, error)
}

type ChatServiceInterface interface {
	Reply(ctx context.Context, message string) (string, error)
}
