package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/quantumchem/quantumchem-backend/internal/config"
	"github.com/quantumchem/quantumchem-backend/internal/domain"
	"github.com/quantumchem/quantumchem-backend/internal/observability"
	"github.com/quantumchem/quantumchem-backend/internal/repository"
	"github.com/quantumchem/quantumchem-backend/internal/security"

	"github.com/google/uuid"
)

// maxResendCount caps how many times one pending signup may be re-issued a
// verification link, counting both explicit resends and re-registrations.
const maxResendCount = 5

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUserExists           = errors.New("account already exists for email")
	ErrVerificationNotFound = errors.New("no pending verification for email")
	ErrResendLimitExceeded  = errors.New("verification resend limit exceeded")
	ErrInvalidVerifyToken   = errors.New("invalid or expired verification token")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotVerified     = errors.New("email verification required")
	ErrPasswordExpired      = errors.New("temporary password expired")
	ErrProviderConflict     = errors.New("email belongs to a different sign-in method")
	ErrMissingIdentityField = errors.New("external identity is missing id or email")
)

type LoginResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// AccountService owns the manual-credential lifecycle: pending signups,
// verification, temporary passwords and their expiry, and the Google
// upsert rules that keep the two providers from clobbering each other.
type AccountService struct {
	cfg         *config.Config
	userRepo    repository.UserRepository
	pendingRepo repository.PendingVerificationRepository
	tokenSvc    *TokenService
	notifier    Notifier
	logger      *slog.Logger
}

func NewAccountService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	pendingRepo repository.PendingVerificationRepository,
	tokenSvc *TokenService,
	notifier Notifier,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		cfg:         cfg,
		userRepo:    userRepo,
		pendingRepo: pendingRepo,
		tokenSvc:    tokenSvc,
		notifier:    notifier,
		logger:      logger,
	}
}

// RegisterManual starts a manual signup. Any existing user for the email,
// regardless of provider, blocks registration. A live pending record is
// renewed in place so re-registering counts against the resend cap instead
// of minting unlimited tokens.
func (s *AccountService) RegisterManual(ctx context.Context, name, email string) error {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		observability.RecordAuthFlowEvent(ctx, "register", "user_exists")
		return ErrUserExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	pending, err := s.pendingRepo.FindByEmail(email)
	switch {
	case err == nil:
		return s.renewPending(ctx, pending, "register")
	case errors.Is(err, repository.ErrPendingVerificationNotFound):
	default:
		return err
	}

	now := time.Now().UTC()
	pending = &domain.PendingVerification{
		Name:      name,
		Email:     email,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.cfg.VerificationTTL),
	}
	if err := s.pendingRepo.Create(pending); err != nil {
		if errors.Is(err, repository.ErrDuplicatePendingEmail) {
			// Lost the unique-index race to a concurrent registration; the
			// surviving row is renewed like any other repeat signup.
			existing, ferr := s.pendingRepo.FindByEmail(email)
			if ferr != nil {
				return ferr
			}
			return s.renewPending(ctx, existing, "register")
		}
		return err
	}

	observability.RecordAuthFlowEvent(ctx, "register", "created")
	s.notifyVerification(ctx, pending)
	return nil
}

// ResendVerification re-issues the link for an existing pending signup.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	pending, err := s.pendingRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrPendingVerificationNotFound) {
			observability.RecordAuthFlowEvent(ctx, "resend", "not_found")
			return ErrVerificationNotFound
		}
		return err
	}
	return s.renewPending(ctx, pending, "resend")
}

func (s *AccountService) renewPending(ctx context.Context, pending *domain.PendingVerification, flow string) error {
	if pending.ResendCount >= maxResendCount {
		observability.RecordAuthFlowEvent(ctx, flow, "resend_limit")
		return ErrResendLimitExceeded
	}

	now := time.Now().UTC()
	token := uuid.NewString()
	expiresAt := now.Add(s.cfg.VerificationTTL)
	if err := s.pendingRepo.Renew(pending.ID, token, expiresAt, now); err != nil {
		if errors.Is(err, repository.ErrPendingVerificationNotFound) {
			return ErrVerificationNotFound
		}
		return err
	}

	pending.Token = token
	pending.ExpiresAt = expiresAt
	pending.ResendCount++
	observability.RecordAuthFlowEvent(ctx, flow, "renewed")
	s.notifyVerification(ctx, pending)
	return nil
}

// VerifyEmail consumes a verification token: it promotes the pending
// signup to a verified manual user and issues a temporary password. The
// user row's unique email is the serialization point; whichever concurrent
// verification creates it first wins and the loser sees an invalid token.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidVerifyToken
	}

	pending, err := s.pendingRepo.FindByToken(token)
	if err != nil {
		if errors.Is(err, repository.ErrPendingVerificationNotFound) {
			observability.RecordAuthFlowEvent(ctx, "verify", "unknown_token")
			return nil, ErrInvalidVerifyToken
		}
		return nil, err
	}

	now := time.Now().UTC()
	if pending.Expired(now) {
		_ = s.pendingRepo.DeleteByID(pending.ID)
		observability.RecordAuthFlowEvent(ctx, "verify", "expired")
		return nil, ErrInvalidVerifyToken
	}

	if _, err := s.userRepo.FindByEmail(pending.Email); err == nil {
		_ = s.pendingRepo.DeleteByID(pending.ID)
		observability.RecordAuthFlowEvent(ctx, "verify", "user_exists")
		return nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	tempPassword, err := security.NewTempPassword()
	if err != nil {
		return nil, fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := security.HashPassword(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash temporary password: %w", err)
	}

	passwordExpiresAt := now.Add(s.cfg.TempPasswordTTL)
	user := &domain.User{
		Name:              pending.Name,
		Email:             pending.Email,
		AuthProvider:      domain.AuthProviderManual,
		PasswordHash:      &hash,
		PasswordExpiresAt: &passwordExpiresAt,
		IsEmailVerified:   true,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			observability.RecordAuthFlowEvent(ctx, "verify", "lost_race")
			return nil, ErrInvalidVerifyToken
		}
		return nil, err
	}
	if err := s.pendingRepo.DeleteByID(pending.ID); err != nil &&
		!errors.Is(err, repository.ErrPendingVerificationNotFound) {
		s.logger.WarnContext(ctx, "cleanup of consumed verification failed",
			"email", user.Email, "error", err)
	}

	observability.RecordAuthFlowEvent(ctx, "verify", "success")
	s.notify(ctx, "temp_password", func() error {
		return s.notifier.SendTempPassword(ctx, TempPasswordNotification{
			Name:      user.Name,
			Email:     user.Email,
			Password:  tempPassword,
			ExpiresAt: passwordExpiresAt,
		})
	})
	return user, nil
}

// LoginManual authenticates a verified manual user. Absent accounts,
// Google accounts and wrong passwords all collapse into
// ErrInvalidCredentials so responses cannot be used to enumerate emails;
// only a signup the caller started themselves surfaces as unverified.
func (s *AccountService) LoginManual(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if _, perr := s.pendingRepo.FindByEmail(email); perr == nil {
				observability.RecordAuthLogin(ctx, domain.AuthProviderManual, "unverified")
				return nil, ErrEmailNotVerified
			}
			observability.RecordAuthLogin(ctx, domain.AuthProviderManual, "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.AuthProvider != domain.AuthProviderManual || user.PasswordHash == nil {
		observability.RecordAuthLogin(ctx, domain.AuthProviderManual, "provider_mismatch")
		return nil, ErrInvalidCredentials
	}
	if !user.IsEmailVerified {
		observability.RecordAuthLogin(ctx, domain.AuthProviderManual, "unverified")
		return nil, ErrEmailNotVerified
	}

	// Expiry is checked before the hash so an expired credential reads as
	// expired even when the password is right.
	now := time.Now().UTC()
	if user.PasswordExpired(now) {
		observability.RecordAuthLogin(ctx, domain.AuthProviderManual, "password_expired")
		return nil, ErrPasswordExpired
	}

	ok, err := security.VerifyPassword(*user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.RecordAuthLogin(ctx, domain.AuthProviderManual, "bad_password")
		return nil, ErrInvalidCredentials
	}

	firstLogin := !user.WelcomeEmailSent
	user.LastLoginAt = &now
	user.WelcomeEmailSent = true
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokenSvc.Issue(user)
	if err != nil {
		return nil, err
	}

	observability.RecordAuthLogin(ctx, domain.AuthProviderManual, "success")
	if firstLogin {
		s.notify(ctx, "welcome", func() error {
			return s.notifier.SendWelcome(ctx, WelcomeNotification{Name: user.Name, Email: user.Email})
		})
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ResetPassword issues a fresh temporary password to a verified manual
// user. Every non-infrastructure outcome reports success so the endpoint
// does not reveal which emails have accounts.
func (s *AccountService) ResetPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if validateEmail(email) != nil {
		observability.RecordAuthFlowEvent(ctx, "reset", "invalid_email")
		return nil
	}

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthFlowEvent(ctx, "reset", "unknown_email")
			return nil
		}
		return err
	}
	if user.AuthProvider != domain.AuthProviderManual || !user.IsEmailVerified {
		observability.RecordAuthFlowEvent(ctx, "reset", "not_eligible")
		return nil
	}

	tempPassword, err := security.NewTempPassword()
	if err != nil {
		return fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := security.HashPassword(tempPassword)
	if err != nil {
		return fmt.Errorf("hash temporary password: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.cfg.TempPasswordTTL)
	user.PasswordHash = &hash
	user.PasswordExpiresAt = &expiresAt
	if err := s.userRepo.Update(user); err != nil {
		return err
	}

	observability.RecordAuthFlowEvent(ctx, "reset", "success")
	s.notify(ctx, "temp_password", func() error {
		return s.notifier.SendTempPassword(ctx, TempPasswordNotification{
			Name:      user.Name,
			Email:     user.Email,
			Password:  tempPassword,
			ExpiresAt: expiresAt,
			Reset:     true,
		})
	})
	return nil
}

// GoogleUpsert signs in an external identity, creating or backfilling the
// user row. A verified manual account or a live pending signup for the
// same email is a conflict and nothing is written.
func (s *AccountService) GoogleUpsert(ctx context.Context, identity *ExternalIdentity) (*LoginResult, error) {
	if identity == nil || identity.ProviderUserID == "" || identity.Email == "" {
		observability.RecordAuthLogin(ctx, domain.AuthProviderGoogle, "missing_identity")
		return nil, ErrMissingIdentityField
	}
	email := normalizeEmail(identity.Email)

	user, err := s.userRepo.FindByGoogleID(identity.ProviderUserID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.claimGoogleEmail(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	now := time.Now().UTC()
	firstLogin := !user.WelcomeEmailSent
	user.LastLoginAt = &now
	user.WelcomeEmailSent = true
	if user.ProfilePicture == "" {
		user.ProfilePicture = identity.Picture
	}
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokenSvc.Issue(user)
	if err != nil {
		return nil, err
	}

	observability.RecordAuthLogin(ctx, domain.AuthProviderGoogle, "success")
	if firstLogin {
		s.notify(ctx, "welcome", func() error {
			return s.notifier.SendWelcome(ctx, WelcomeNotification{Name: user.Name, Email: user.Email})
		})
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// claimGoogleEmail resolves an identity whose Google id is unknown: either
// the email is free (create), belongs to an earlier Google user without a
// stored id (backfill), or belongs to the manual flow (conflict).
func (s *AccountService) claimGoogleEmail(ctx context.Context, identity *ExternalIdentity, email string) (*domain.User, error) {
	if _, err := s.pendingRepo.FindByEmail(email); err == nil {
		observability.RecordAuthLogin(ctx, domain.AuthProviderGoogle, "provider_conflict")
		return nil, ErrProviderConflict
	} else if !errors.Is(err, repository.ErrPendingVerificationNotFound) {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(email)
	switch {
	case err == nil:
		if user.AuthProvider != domain.AuthProviderGoogle {
			observability.RecordAuthLogin(ctx, domain.AuthProviderGoogle, "provider_conflict")
			return nil, ErrProviderConflict
		}
		googleID := identity.ProviderUserID
		user.GoogleID = &googleID
		return user, nil
	case errors.Is(err, repository.ErrUserNotFound):
		googleID := identity.ProviderUserID
		user = &domain.User{
			Name:             identity.Name,
			Email:            email,
			AuthProvider:     domain.AuthProviderGoogle,
			GoogleID:         &googleID,
			ProfilePicture:   identity.Picture,
			IsEmailVerified:  true,
			WelcomeEmailSent: false,
		}
		if err := s.userRepo.Create(user); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				observability.RecordAuthLogin(ctx, domain.AuthProviderGoogle, "provider_conflict")
				return nil, ErrProviderConflict
			}
			return nil, err
		}
		return user, nil
	default:
		return nil, err
	}
}

// Profile returns the signed-in user's account view.
func (s *AccountService) Profile(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordUserProfileEvent(ctx, "not_found")
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}
	observability.RecordUserProfileEvent(ctx, "success")
	return user, nil
}

func (s *AccountService) notifyVerification(ctx context.Context, pending *domain.PendingVerification) {
	s.notify(ctx, "verification", func() error {
		return s.notifier.SendVerification(ctx, VerificationNotification{
			Name:      pending.Name,
			Email:     pending.Email,
			Token:     pending.Token,
			VerifyURL: s.verifyURL(pending.Token),
			ExpiresAt: pending.ExpiresAt,
		})
	})
}

// notify runs a mail send and swallows failures. Committed account state
// never rolls back because a relay was down.
func (s *AccountService) notify(ctx context.Context, kind string, send func() error) {
	if err := send(); err != nil {
		observability.RecordNotifierEvent(ctx, kind, "error")
		s.logger.WarnContext(ctx, "notification delivery failed", "kind", kind, "error", err)
		return
	}
	observability.RecordNotifierEvent(ctx, kind, "sent")
}

func (s *AccountService) verifyURL(token string) string {
	return s.cfg.PublicBaseURL + "/api/auth/verify/" + url.PathEscape(token)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return nil
}
