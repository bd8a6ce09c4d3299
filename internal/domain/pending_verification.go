package domain

import "time"

// PendingVerification holds a manual signup that has not clicked its
// verification link yet. At most one row exists per email; re-registration
// and resends renew the same row instead of inserting a second one.
type PendingVerification struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Token        string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ResendCount  int        `gorm:"not null;default:0" json:"resend_count"`
	LastResentAt *time.Time `json:"last_resent_at,omitempty"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether the verification window has closed.
func (p *PendingVerification) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
