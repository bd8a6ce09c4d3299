package domain

import "time"

const (
	AuthProviderManual = "manual"
	AuthProviderGoogle = "google"
)

// User is an account that completed email verification (manual) or signed
// in through Google. Rows only exist for verified identities; unverified
// manual signups live in PendingVerification until the link is clicked.
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	Email             string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	AuthProvider      string     `gorm:"size:32;not null;default:manual" json:"auth_provider"`
	PasswordHash      *string    `gorm:"size:1024" json:"-"`
	PasswordExpiresAt *time.Time `json:"-"`
	GoogleID          *string    `gorm:"uniqueIndex;size:255" json:"-"`
	ProfilePicture    string     `gorm:"size:1024" json:"profile_picture,omitempty"`
	IsEmailVerified   bool       `gorm:"not null;default:false" json:"is_email_verified"`
	WelcomeEmailSent  bool       `gorm:"not null;default:false" json:"-"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PasswordExpired reports whether the temporary password is past its
// validity window at the given instant. Users without an expiry never
// expire.
func (u *User) PasswordExpired(now time.Time) bool {
	return u.PasswordExpiresAt != nil && now.After(*u.PasswordExpiresAt)
}
