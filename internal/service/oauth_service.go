package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/quantumchem/quantumchem-backend/internal/config"
	"github.com/quantumchem/quantumchem-backend/internal/observability"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ExternalIdentity is the subset of the OpenID userinfo document the
// account layer needs to upsert a Google user.
type ExternalIdentity struct {
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
	EmailVerified  bool
}

type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error)
}

type GoogleOAuthProvider struct {
	cfg *oauth2.Config
}

func NewGoogleOAuthProvider(cfg *config.Config) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{cfg: &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

func (p *GoogleOAuthProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *GoogleOAuthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.cfg.Exchange(ctx, code)
}

func (p *GoogleOAuthProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error) {
	client := p.cfg.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openidconnect.googleapis.com/v1/userinfo", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status: %d", resp.StatusCode)
	}
	var body struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &ExternalIdentity{
		ProviderUserID: body.Sub,
		Email:          strings.ToLower(body.Email),
		Name:           body.Name,
		Picture:        body.Picture,
		EmailVerified:  body.EmailVerified,
	}, nil
}

// OAuthService runs the authorize-code half of the Google flow: code
// exchange and userinfo retrieval, with per-stage metrics. Account state
// changes happen in AccountService.GoogleUpsert.
type OAuthService struct {
	provider OAuthProvider
}

func NewOAuthService(provider OAuthProvider) *OAuthService {
	return &OAuthService{provider: provider}
}

func (s *OAuthService) LoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

func (s *OAuthService) FetchIdentity(ctx context.Context, code string) (*ExternalIdentity, error) {
	exchangeStart := time.Now()
	token, err := s.provider.Exchange(ctx, code)
	observability.RecordGoogleOAuthRequestDuration(ctx, "exchange", oauthStatus(err), time.Since(exchangeStart))
	if err != nil {
		observability.RecordGoogleOAuthError(ctx, classifyOAuthError(err))
		return nil, err
	}

	userInfoStart := time.Now()
	info, err := s.provider.FetchUserInfo(ctx, token)
	observability.RecordGoogleOAuthRequestDuration(ctx, "userinfo", oauthStatus(err), time.Since(userInfoStart))
	if err != nil {
		observability.RecordGoogleOAuthError(ctx, classifyOAuthError(err))
		return nil, err
	}
	if info == nil || info.ProviderUserID == "" || info.Email == "" {
		observability.RecordGoogleOAuthError(ctx, "invalid_userinfo")
		return nil, ErrMissingIdentityField
	}
	if !info.EmailVerified {
		observability.RecordGoogleOAuthError(ctx, "email_not_verified")
		return nil, fmt.Errorf("google email not verified")
	}
	return info, nil
}

func oauthStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func classifyOAuthError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.Canceled) {
		return "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "userinfo status:"):
		return "userinfo_status"
	case strings.Contains(msg, "missing"):
		return "invalid_userinfo"
	case strings.Contains(msg, "oauth2"):
		return "oauth2_exchange"
	default:
		return "other"
	}
}
