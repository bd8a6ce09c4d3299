package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

const StateCookieName = "oauth_state"

var ErrInvalidState = errors.New("invalid oauth state")

// SignState mints a random nonce and appends an HMAC over it, so the
// callback can verify the state without server-side storage.
func SignState(secret string) (string, error) {
	nonce, err := NewRandomString(16)
	if err != nil {
		return "", err
	}
	return nonce + "." + signHMAC(nonce, secret), nil
}

func VerifySignedState(state, secret string) error {
	nonce, sig, ok := strings.Cut(state, ".")
	if !ok || nonce == "" {
		return ErrInvalidState
	}
	expected := signHMAC(nonce, secret)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrInvalidState
	}
	return nil
}

func signHMAC(msg, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func SetStateCookie(w http.ResponseWriter, state string, secure bool, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearStateCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/api/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
