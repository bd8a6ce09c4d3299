package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/oauth2"
)

type stubOAuthProvider struct {
	authURL     string
	exchangeErr error
	userInfo    *ExternalIdentity
	userInfoErr error

	exchangedCode string
}

func (p *stubOAuthProvider) AuthCodeURL(state string) string {
	return p.authURL + "?state=" + state
}

func (p *stubOAuthProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	p.exchangedCode = code
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access"}, nil
}

func (p *stubOAuthProvider) FetchUserInfo(context.Context, *oauth2.Token) (*ExternalIdentity, error) {
	if p.userInfoErr != nil {
		return nil, p.userInfoErr
	}
	return p.userInfo, nil
}

func TestOAuthServiceLoginURL(t *testing.T) {
	provider := &stubOAuthProvider{authURL: "https://accounts.example.com/auth"}
	svc := NewOAuthService(provider)
	if got := svc.LoginURL("signed-state"); got != "https://accounts.example.com/auth?state=signed-state" {
		t.Fatalf("unexpected login url: %s", got)
	}
}

func TestOAuthServiceFetchIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("exchange error propagates", func(t *testing.T) {
		provider := &stubOAuthProvider{exchangeErr: errors.New("oauth2: bad code")}
		svc := NewOAuthService(provider)
		if _, err := svc.FetchIdentity(ctx, "bad-code"); err == nil {
			t.Fatal("expected exchange error")
		}
		if provider.exchangedCode != "bad-code" {
			t.Fatalf("exchanged code = %q", provider.exchangedCode)
		}
	})

	t.Run("userinfo error propagates", func(t *testing.T) {
		provider := &stubOAuthProvider{userInfoErr: errors.New("userinfo status: 503")}
		svc := NewOAuthService(provider)
		if _, err := svc.FetchIdentity(ctx, "code"); err == nil {
			t.Fatal("expected userinfo error")
		}
	})

	t.Run("incomplete identity rejected", func(t *testing.T) {
		provider := &stubOAuthProvider{userInfo: &ExternalIdentity{Email: "x@example.com", EmailVerified: true}}
		svc := NewOAuthService(provider)
		if _, err := svc.FetchIdentity(ctx, "code"); !errors.Is(err, ErrMissingIdentityField) {
			t.Fatalf("expected ErrMissingIdentityField, got %v", err)
		}
	})

	t.Run("unverified google email rejected", func(t *testing.T) {
		provider := &stubOAuthProvider{userInfo: &ExternalIdentity{
			ProviderUserID: "sub-1",
			Email:          "x@example.com",
			EmailVerified:  false,
		}}
		svc := NewOAuthService(provider)
		if _, err := svc.FetchIdentity(ctx, "code"); err == nil {
			t.Fatal("expected rejection of unverified email")
		}
	})

	t.Run("success returns the identity", func(t *testing.T) {
		want := &ExternalIdentity{
			ProviderUserID: "sub-1",
			Email:          "x@example.com",
			Name:           "X",
			EmailVerified:  true,
		}
		svc := NewOAuthService(&stubOAuthProvider{userInfo: want})
		got, err := svc.FetchIdentity(ctx, "code")
		if err != nil {
			t.Fatalf("fetch identity: %v", err)
		}
		if got != want {
			t.Fatalf("unexpected identity: %+v", got)
		}
	})
}

func TestClassifyOAuthError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{context.Canceled, "context_canceled"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("userinfo status: 502"), "userinfo_status"},
		{errors.New("oauth2: cannot fetch token"), "oauth2_exchange"},
		{errors.New("something else"), "other"},
	}
	for _, tc := range cases {
		if got := classifyOAuthError(tc.err); got != tc.want {
			t.Errorf("classifyOAuthError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
