package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/quantumchem/quantumchem-backend/internal/domain"
	"github.com/quantumchem/quantumchem-backend/internal/security"
)

// TokenService issues and verifies session tokens. Manual and Google
// sessions share one signing key but carry different lifetimes.
type TokenService struct {
	jwtMgr    *security.JWTManager
	manualTTL time.Duration
	googleTTL time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, manualTTL, googleTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, manualTTL: manualTTL, googleTTL: googleTTL}
}

func (s *TokenService) Issue(user *domain.User) (string, time.Time, error) {
	ttl := s.manualTTL
	if user.AuthProvider == domain.AuthProviderGoogle {
		ttl = s.googleTTL
	}
	expiresAt := time.Now().UTC().Add(ttl)
	token, err := s.jwtMgr.SignSession(
		strconv.FormatUint(uint64(user.ID), 10),
		user.Email, user.Name, user.AuthProvider, ttl,
	)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *TokenService) Parse(raw string) (*security.Claims, error) {
	return s.jwtMgr.ParseSession(raw)
}

func (s *TokenService) ParseUserID(subject string) (uint, error) {
	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user subject")
	}
	return uint(id), nil
}
