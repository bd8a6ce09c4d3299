package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumchem/quantumchem-backend/internal/domain"
	"github.com/quantumchem/quantumchem-backend/internal/security"
	"github.com/quantumchem/quantumchem-backend/internal/service"
)

const testStateKey = "test-state-signing-secret"

type fakeAccountService struct {
	registerFn func(ctx context.Context, name, email string) error
	resendFn   func(ctx context.Context, email string) error
	verifyFn   func(ctx context.Context, token string) (*domain.User, error)
	loginFn    func(ctx context.Context, email, password string) (*service.LoginResult, error)
	resetFn    func(ctx context.Context, email string) error
	upsertFn   func(ctx context.Context, identity *service.ExternalIdentity) (*service.LoginResult, error)
	profileFn  func(ctx context.Context, userID uint) (*domain.User, error)
}

func (f *fakeAccountService) RegisterManual(ctx context.Context, name, email string) error {
	return f.registerFn(ctx, name, email)
}

func (f *fakeAccountService) ResendVerification(ctx context.Context, email string) error {
	return f.resendFn(ctx, email)
}

func (f *fakeAccountService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	return f.verifyFn(ctx, token)
}

func (f *fakeAccountService) LoginManual(ctx context.Context, email, password string) (*service.LoginResult, error) {
	return f.loginFn(ctx, email, password)
}

func (f *fakeAccountService) ResetPassword(ctx context.Context, email string) error {
	return f.resetFn(ctx, email)
}

func (f *fakeAccountService) GoogleUpsert(ctx context.Context, identity *service.ExternalIdentity) (*service.LoginResult, error) {
	return f.upsertFn(ctx, identity)
}

func (f *fakeAccountService) Profile(ctx context.Context, userID uint) (*domain.User, error) {
	return f.profileFn(ctx, userID)
}

type fakeOAuthService struct {
	loginURLFn func(state string) string
	fetchFn    func(ctx context.Context, code string) (*service.ExternalIdentity, error)
}

func (f *fakeOAuthService) LoginURL(state string) string {
	return f.loginURLFn(state)
}

func (f *fakeOAuthService) FetchIdentity(ctx context.Context, code string) (*service.ExternalIdentity, error) {
	return f.fetchFn(ctx, code)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAuthHandlerUnderTest(accountSvc service.AccountServiceInterface, oauthSvc service.OAuthServiceInterface) *AuthHandler {
	return NewAuthHandler(accountSvc, oauthSvc, testStateKey, false, "http://localhost:3000/")
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}

func TestRegisterHandler(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"success", `{"name":"Marie","email":"marie@example.com"}`, nil, http.StatusOK, ""},
		{"invalid json", `{`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"validation error", `{"name":"","email":"x@example.com"}`, service.ErrInvalidInput, http.StatusBadRequest, "VALIDATION"},
		{"user exists", `{"name":"M","email":"x@example.com"}`, service.ErrUserExists, http.StatusConflict, "USER_EXISTS"},
		{"resend limit", `{"name":"M","email":"x@example.com"}`, service.ErrResendLimitExceeded, http.StatusTooManyRequests, "RESEND_LIMIT"},
		{"infra error", `{"name":"M","email":"x@example.com"}`, errors.New("db down"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newAuthHandlerUnderTest(&fakeAccountService{
				registerFn: func(context.Context, string, string) error { return tc.serviceErr },
			}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Register(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantCode != "" {
				if env := decodeErrorEnvelope(t, rec); env.Error.Code != tc.wantCode {
					t.Fatalf("error code = %q, want %q", env.Error.Code, tc.wantCode)
				}
			}
		})
	}
}

func TestResendVerificationHandler(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"success", nil, http.StatusOK, ""},
		{"not found", service.ErrVerificationNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"resend limit", service.ErrResendLimitExceeded, http.StatusTooManyRequests, "RESEND_LIMIT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newAuthHandlerUnderTest(&fakeAccountService{
				resendFn: func(context.Context, string) error { return tc.serviceErr },
			}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/resend-verification",
				strings.NewReader(`{"email":"x@example.com"}`))
			rec := httptest.NewRecorder()
			h.ResendVerification(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantCode != "" {
				if env := decodeErrorEnvelope(t, rec); env.Error.Code != tc.wantCode {
					t.Fatalf("error code = %q, want %q", env.Error.Code, tc.wantCode)
				}
			}
		})
	}
}

func TestVerifyEmailHandlerRendersPage(t *testing.T) {
	serveVerify := func(t *testing.T, h *AuthHandler, token string) *httptest.ResponseRecorder {
		t.Helper()
		r := chi.NewRouter()
		r.Get("/api/auth/verify/{token}", h.VerifyEmail)
		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify/"+token, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("success page links to sign in", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{
			verifyFn: func(_ context.Context, token string) (*domain.User, error) {
				if token != "good-token" {
					t.Fatalf("token = %q", token)
				}
				return &domain.User{ID: 1, Email: "m@example.com"}, nil
			},
		}, nil)

		rec := serveVerify(t, h, "good-token")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("content type = %q", ct)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Email verified") {
			t.Fatal("page must confirm verification")
		}
		if !strings.Contains(body, "http://localhost:3000/login.html") {
			t.Fatal("page must link to the sign-in page")
		}
	})

	t.Run("already verified", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{
			verifyFn: func(context.Context, string) (*domain.User, error) {
				return nil, service.ErrUserExists
			},
		}, nil)

		rec := serveVerify(t, h, "stale-token")
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Already verified") {
			t.Fatal("page must explain the account already exists")
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{
			verifyFn: func(context.Context, string) (*domain.User, error) {
				return nil, service.ErrInvalidVerifyToken
			},
		}, nil)

		rec := serveVerify(t, h, "bad-token")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Verification failed") {
			t.Fatal("page must report the failure")
		}
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("success returns session payload", func(t *testing.T) {
		now := time.Now().UTC()
		h := newAuthHandlerUnderTest(&fakeAccountService{
			loginFn: func(_ context.Context, email, password string) (*service.LoginResult, error) {
				if email != "m@example.com" || password != "Secret123" {
					t.Fatalf("credentials forwarded wrong: %s %s", email, password)
				}
				return &service.LoginResult{
					User:      &domain.User{ID: 3, Email: email, AuthProvider: domain.AuthProviderManual},
					Token:     "jwt-token",
					ExpiresAt: now.Add(24 * time.Hour),
				}, nil
			},
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"m@example.com","password":"Secret123"}`))
		rec := httptest.NewRecorder()
		h.Login(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var result service.LoginResult
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.Token != "jwt-token" || result.User == nil || result.User.ID != 3 {
			t.Fatalf("unexpected payload: %+v", result)
		}
	})

	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"unverified", service.ErrEmailNotVerified, http.StatusForbidden, "EMAIL_NOT_VERIFIED"},
		{"expired", service.ErrPasswordExpired, http.StatusUnauthorized, "PASSWORD_EXPIRED"},
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"infra error", errors.New("db down"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newAuthHandlerUnderTest(&fakeAccountService{
				loginFn: func(context.Context, string, string) (*service.LoginResult, error) {
					return nil, tc.serviceErr
				},
			}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
				strings.NewReader(`{"email":"m@example.com","password":"x"}`))
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if env := decodeErrorEnvelope(t, rec); env.Error.Code != tc.wantCode {
				t.Fatalf("error code = %q, want %q", env.Error.Code, tc.wantCode)
			}
		})
	}
}

func TestResetPasswordHandlerAlwaysGeneric(t *testing.T) {
	h := newAuthHandlerUnderTest(&fakeAccountService{
		resetFn: func(context.Context, string) error { return nil },
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/reset-password",
		strings.NewReader(`{"email":"whoever@example.com"}`))
	rec := httptest.NewRecorder()
	h.ResetPassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "if the email has an account") {
		t.Fatal("reset response must stay generic")
	}
}

func TestGoogleLoginRedirectsWithStateCookie(t *testing.T) {
	h := newAuthHandlerUnderTest(&fakeAccountService{}, &fakeOAuthService{
		loginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google", nil)
	rec := httptest.NewRecorder()
	h.GoogleLogin(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "https://accounts.google.com/") {
		t.Fatalf("location = %q", location)
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == security.StateCookieName {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("state cookie must be set")
	}
	if !stateCookie.HttpOnly {
		t.Fatal("state cookie must be http only")
	}
	if err := security.VerifySignedState(stateCookie.Value, testStateKey); err != nil {
		t.Fatalf("state cookie must carry a signed state: %v", err)
	}
	if !strings.Contains(location, url.QueryEscape(stateCookie.Value)) {
		t.Fatal("redirect must carry the same state as the cookie")
	}
}

func TestGoogleCallback(t *testing.T) {
	signedState := func(t *testing.T) string {
		t.Helper()
		state, err := security.SignState(testStateKey)
		if err != nil {
			t.Fatalf("sign state: %v", err)
		}
		return state
	}
	callbackRequest := func(state, code, cookieState string) *http.Request {
		target := "/api/auth/google/callback?state=" + url.QueryEscape(state) + "&code=" + url.QueryEscape(code)
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if cookieState != "" {
			req.AddCookie(&http.Cookie{Name: security.StateCookieName, Value: cookieState})
		}
		return req
	}
	assertRedirect := func(t *testing.T, rec *httptest.ResponseRecorder, wantPrefix string) {
		t.Helper()
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, wantPrefix) {
			t.Fatalf("location = %q, want prefix %q", loc, wantPrefix)
		}
	}

	t.Run("missing code or state", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{}, &fakeOAuthService{})
		rec := httptest.NewRecorder()
		h.GoogleCallback(rec, callbackRequest("", "", ""))
		assertRedirect(t, rec, "http://localhost:3000/login.html?error=oauth_failed")
	})

	t.Run("cookie state mismatch", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{}, &fakeOAuthService{})
		rec := httptest.NewRecorder()
		h.GoogleCallback(rec, callbackRequest(signedState(t), "code", signedState(t)))
		assertRedirect(t, rec, "http://localhost:3000/login.html?error=oauth_failed")
	})

	t.Run("forged state rejected", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{}, &fakeOAuthService{})
		forged := "nonce.not-a-real-signature"
		rec := httptest.NewRecorder()
		h.GoogleCallback(rec, callbackRequest(forged, "code", forged))
		assertRedirect(t, rec, "http://localhost:3000/login.html?error=oauth_failed")
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{}, &fakeOAuthService{
			fetchFn: func(context.Context, string) (*service.ExternalIdentity, error) {
				return nil, errors.New("oauth2: bad code")
			},
		})
		state := signedState(t)
		rec := httptest.NewRecorder()
		h.GoogleCallback(rec, callbackRequest(state, "code", state))
		assertRedirect(t, rec, "http://localhost:3000/login.html?error=oauth_failed")
	})

	t.Run("provider conflict", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{
			upsertFn: func(context.Context, *service.ExternalIdentity) (*service.LoginResult, error) {
				return nil, service.ErrProviderConflict
			},
		}, &fakeOAuthService{
			fetchFn: func(context.Context, string) (*service.ExternalIdentity, error) {
				return &service.ExternalIdentity{ProviderUserID: "sub-1", Email: "x@example.com"}, nil
			},
		})
		state := signedState(t)
		rec := httptest.NewRecorder()
		h.GoogleCallback(rec, callbackRequest(state, "code", state))
		assertRedirect(t, rec, "http://localhost:3000/login.html?error=provider_conflict")
	})

	t.Run("success redirects to profile with token", func(t *testing.T) {
		h := newAuthHandlerUnderTest(&fakeAccountService{
			upsertFn: func(_ context.Context, identity *service.ExternalIdentity) (*service.LoginResult, error) {
				if identity.ProviderUserID != "sub-1" {
					t.Fatalf("identity not forwarded: %+v", identity)
				}
				return &service.LoginResult{
					User:  &domain.User{ID: 5, Email: identity.Email},
					Token: "session+token",
				}, nil
			},
		}, &fakeOAuthService{
			fetchFn: func(context.Context, string) (*service.ExternalIdentity, error) {
				return &service.ExternalIdentity{ProviderUserID: "sub-1", Email: "x@example.com"}, nil
			},
		})
		state := signedState(t)
		rec := httptest.NewRecorder()
		h.GoogleCallback(rec, callbackRequest(state, "code", state))
		assertRedirect(t, rec, "http://localhost:3000/profile.html?token="+url.QueryEscape("session+token"))

		var cleared bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == security.StateCookieName && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Fatal("state cookie must be cleared after use")
		}
	})
}
