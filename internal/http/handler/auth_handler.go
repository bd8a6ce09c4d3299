package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumchem/quantumchem-backend/internal/http/response"
	"github.com/quantumchem/quantumchem-backend/internal/observability"
	"github.com/quantumchem/quantumchem-backend/internal/security"
	"github.com/quantumchem/quantumchem-backend/internal/service"
)

const stateCookieTTL = 5 * time.Minute

// verifyPageTemplate is the browser-facing result page for the emailed
// verification link. It is the one HTML endpoint the API serves.
const verifyPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} | QuantumChem</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; background: #f4f6fb; margin: 0; }
.card { max-width: 420px; margin: 12vh auto; background: #fff; border-radius: 10px; padding: 2.2rem; box-shadow: 0 4px 18px rgba(20,40,80,.12); text-align: center; }
h1 { font-size: 1.35rem; color: {{if .Success}}#1b7f4d{{else}}#b03030{{end}}; }
p { color: #444; line-height: 1.5; }
a.button { display: inline-block; margin-top: 1rem; padding: .6rem 1.4rem; background: #2b5fc7; color: #fff; border-radius: 6px; text-decoration: none; }
</style>
</head>
<body>
<div class="card">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Success}}<a class="button" href="{{.LoginURL}}">Go to sign in</a>{{end}}
</div>
</body>
</html>
`

type verifyPageData struct {
	Success  bool
	Title    string
	Message  string
	LoginURL string
}

type AuthHandler struct {
	accountSvc   service.AccountServiceInterface
	oauthSvc     service.OAuthServiceInterface
	stateKey     string
	cookieSecure bool
	frontendURL  string
	verifyPage   *template.Template
}

func NewAuthHandler(
	accountSvc service.AccountServiceInterface,
	oauthSvc service.OAuthServiceInterface,
	stateKey string,
	cookieSecure bool,
	frontendURL string,
) *AuthHandler {
	return &AuthHandler{
		accountSvc:   accountSvc,
		oauthSvc:     oauthSvc,
		stateKey:     stateKey,
		cookieSecure: cookieSecure,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		verifyPage:   template.Must(template.New("verify").Parse(verifyPageTemplate)),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}

	err := h.accountSvc.RegisterManual(r.Context(), req.Name, req.Email)
	switch {
	case err == nil:
		observability.Audit(r, "auth.register.pending", "email", req.Email, "ip", clientIP(r))
		response.JSON(w, r, http.StatusOK, map[string]string{"message": "verification email sent"})
	case errors.Is(err, service.ErrInvalidInput):
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, service.ErrUserExists):
		status = "failure"
		observability.Audit(r, "auth.register.rejected", "reason", "user_exists", "ip", clientIP(r))
		response.Error(w, r, http.StatusConflict, "USER_EXISTS", "an account already exists for this email", nil)
	case errors.Is(err, service.ErrResendLimitExceeded):
		status = "failure"
		observability.Audit(r, "auth.register.rejected", "reason", "resend_limit", "ip", clientIP(r))
		response.Error(w, r, http.StatusTooManyRequests, "RESEND_LIMIT", "verification resend limit reached", nil)
	default:
		status = "failure"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "registration failed", nil)
	}
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "resend_verification", status, time.Since(start))
	}()

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}

	err := h.accountSvc.ResendVerification(r.Context(), req.Email)
	switch {
	case err == nil:
		observability.Audit(r, "auth.verification.resent", "email", req.Email, "ip", clientIP(r))
		response.JSON(w, r, http.StatusOK, map[string]string{"message": "verification email sent"})
	case errors.Is(err, service.ErrVerificationNotFound):
		status = "failure"
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no pending verification for this email", nil)
	case errors.Is(err, service.ErrResendLimitExceeded):
		status = "failure"
		observability.Audit(r, "auth.verification.rejected", "reason", "resend_limit", "ip", clientIP(r))
		response.Error(w, r, http.StatusTooManyRequests, "RESEND_LIMIT", "verification resend limit reached", nil)
	default:
		status = "failure"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "resend failed", nil)
	}
}

// VerifyEmail consumes the emailed link, so it answers with a browser page
// rather than JSON.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_email", status, time.Since(start))
	}()

	token := chi.URLParam(r, "token")
	user, err := h.accountSvc.VerifyEmail(r.Context(), token)
	switch {
	case err == nil:
		observability.Audit(r, "auth.email.verified", "user_id", user.ID, "email", user.Email, "ip", clientIP(r))
		h.renderVerifyPage(w, r, http.StatusOK, verifyPageData{
			Success:  true,
			Title:    "Email verified",
			Message:  "Your account is ready. We emailed you a temporary password valid for 4 days; use it for your first sign in.",
			LoginURL: h.frontendURL + "/login.html",
		})
	case errors.Is(err, service.ErrUserExists):
		status = "failure"
		h.renderVerifyPage(w, r, http.StatusConflict, verifyPageData{
			Success:  true,
			Title:    "Already verified",
			Message:  "This email address already has an account. You can sign in directly.",
			LoginURL: h.frontendURL + "/login.html",
		})
	case errors.Is(err, service.ErrInvalidVerifyToken):
		status = "failure"
		observability.Audit(r, "auth.email.verify.failed", "reason", "invalid_token", "ip", clientIP(r))
		h.renderVerifyPage(w, r, http.StatusBadRequest, verifyPageData{
			Title:   "Verification failed",
			Message: "This verification link is invalid or has expired. Please register again or request a new link.",
		})
	default:
		status = "failure"
		h.renderVerifyPage(w, r, http.StatusInternalServerError, verifyPageData{
			Title:   "Something went wrong",
			Message: "We could not verify your email right now. Please try the link again in a few minutes.",
		})
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}

	result, err := h.accountSvc.LoginManual(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "provider", "manual", "ip", clientIP(r))
		response.JSON(w, r, http.StatusOK, result)
	case errors.Is(err, service.ErrEmailNotVerified):
		status = "failure"
		observability.Audit(r, "auth.login.failed", "reason", "email_not_verified", "ip", clientIP(r))
		response.Error(w, r, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "verify your email before signing in", nil)
	case errors.Is(err, service.ErrPasswordExpired):
		status = "failure"
		observability.Audit(r, "auth.login.failed", "reason", "password_expired", "ip", clientIP(r))
		response.Error(w, r, http.StatusUnauthorized, "PASSWORD_EXPIRED", "temporary password expired, request a reset", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		status = "failure"
		observability.Audit(r, "auth.login.failed", "reason", "invalid_credentials", "ip", clientIP(r))
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
	default:
		status = "failure"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
	}
}

// ResetPassword always reports success for non-infrastructure outcomes so
// the endpoint cannot be used to probe which emails have accounts.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "reset_password", status, time.Since(start))
	}()

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}

	if err := h.accountSvc.ResetPassword(r.Context(), req.Email); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "reset failed", nil)
		return
	}
	observability.Audit(r, "auth.password.reset.requested", "ip", clientIP(r))
	response.JSON(w, r, http.StatusOK, map[string]string{
		"message": "if the email has an account, a new temporary password is on its way",
	})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_login", status, time.Since(start))
	}()

	state, err := security.SignState(h.stateKey)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.login.failed", "reason", "state_generation")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to generate oauth state", nil)
		return
	}
	security.SetStateCookie(w, state, h.cookieSecure, stateCookieTTL)
	observability.Audit(r, "auth.google.login.redirect", "ip", clientIP(r))
	http.Redirect(w, r, h.oauthSvc.LoginURL(state), http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_callback", status, time.Since(start))
	}()

	queryState := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if queryState == "" || code == "" {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "missing_code_or_state", "ip", clientIP(r))
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		h.redirectLoginError(w, r, "oauth_failed")
		return
	}
	cookieState := security.GetCookie(r, security.StateCookieName)
	if cookieState != queryState || security.VerifySignedState(cookieState, h.stateKey) != nil {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "invalid_state", "ip", clientIP(r))
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		h.redirectLoginError(w, r, "oauth_failed")
		return
	}
	// The state is single use; drop it as soon as it has been checked.
	security.ClearStateCookie(w, h.cookieSecure)

	identity, err := h.oauthSvc.FetchIdentity(r.Context(), code)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "oauth_exchange", "error", err.Error())
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		h.redirectLoginError(w, r, "oauth_failed")
		return
	}

	result, err := h.accountSvc.GoogleUpsert(r.Context(), identity)
	switch {
	case err == nil:
		observability.Audit(r, "auth.login.success", "user_id", result.User.ID, "provider", "google", "ip", clientIP(r))
		http.Redirect(w, r, h.frontendURL+"/profile.html?token="+url.QueryEscape(result.Token), http.StatusFound)
	case errors.Is(err, service.ErrProviderConflict):
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "provider_conflict", "email", identity.Email)
		h.redirectLoginError(w, r, "provider_conflict")
	default:
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "upsert_error", "error", err.Error())
		h.redirectLoginError(w, r, "oauth_failed")
	}
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.frontendURL+"/login.html?error="+url.QueryEscape(code), http.StatusFound)
}

func (h *AuthHandler) renderVerifyPage(w http.ResponseWriter, r *http.Request, status int, data verifyPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.verifyPage.Execute(w, data); err != nil {
		observability.Audit(r, "auth.verify.page.render_failed", "error", err.Error())
	}
}

func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
