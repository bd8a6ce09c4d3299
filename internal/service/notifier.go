package service

import (
	"context"
	"log/slog"
	"time"
)

type VerificationNotification struct {
	Name      string
	Email     string
	Token     string
	VerifyURL string
	ExpiresAt time.Time
}

type TempPasswordNotification struct {
	Name      string
	Email     string
	Password  string
	ExpiresAt time.Time
	// Reset marks a password reset as opposed to first-time issuance; the
	// two use different mail templates.
	Reset bool
}

type WelcomeNotification struct {
	Name  string
	Email string
}

// Notifier delivers account emails. Implementations must be safe for
// concurrent use; callers treat failures as non-fatal and never roll back
// committed state because a send failed.
type Notifier interface {
	SendVerification(ctx context.Context, n VerificationNotification) error
	SendTempPassword(ctx context.Context, n TempPasswordNotification) error
	SendWelcome(ctx context.Context, n WelcomeNotification) error
}

// DevNotifier logs instead of sending. Used in development and tests where
// no SMTP relay is configured.
type DevNotifier struct {
	logger *slog.Logger
}

func NewDevNotifier(logger *slog.Logger) *DevNotifier {
	return &DevNotifier{logger: logger}
}

func (n *DevNotifier) SendVerification(ctx context.Context, v VerificationNotification) error {
	n.logger.InfoContext(ctx, "verification email issued",
		"email", v.Email,
		"verify_url", v.VerifyURL,
		"expires_at", v.ExpiresAt,
	)
	return nil
}

func (n *DevNotifier) SendTempPassword(ctx context.Context, v TempPasswordNotification) error {
	n.logger.InfoContext(ctx, "temporary password issued",
		"email", v.Email,
		"reset", v.Reset,
		"expires_at", v.ExpiresAt,
	)
	return nil
}

func (n *DevNotifier) SendWelcome(ctx context.Context, v WelcomeNotification) error {
	n.logger.InfoContext(ctx, "welcome email issued", "email", v.Email)
	return nil
}
