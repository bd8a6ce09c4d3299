package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quantumchem/quantumchem-backend/internal/health"
	"github.com/quantumchem/quantumchem-backend/internal/http/handler"
	"github.com/quantumchem/quantumchem-backend/internal/http/middleware"
	"github.com/quantumchem/quantumchem-backend/internal/http/response"
	"github.com/quantumchem/quantumchem-backend/internal/security"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	ChatHandler       *handler.ChatHandler
	JWTManager        *security.JWTManager
	CORSOrigins       []string
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	ChatRateLimitRPM  int
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	ChatRateLimiter   ChatRateLimiterFunc
	GoogleEnabled     bool
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler
type ChatRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}
	chatLimiter := dep.ChatRateLimiter
	if chatLimiter == nil {
		chatLimiter = middleware.NewRateLimiter(dep.ChatRateLimitRPM, time.Minute).Middleware()
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			if dep.Readiness == nil {
				response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
				return
			}
			ready, results := dep.Readiness.Ready(r.Context())
			if ready {
				response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
				return
			}
			response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Get("/verify/{token}", dep.AuthHandler.VerifyEmail)
			r.With(authLimiter).Post("/resend-verification", dep.AuthHandler.ResendVerification)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/reset-password", dep.AuthHandler.ResetPassword)
			if dep.GoogleEnabled {
				r.With(authLimiter).Get("/google", dep.AuthHandler.GoogleLogin)
				r.With(authLimiter).Get("/google/callback", dep.AuthHandler.GoogleCallback)
			}
		})

		r.With(middleware.AuthMiddleware(dep.JWTManager)).Get("/user/profile", dep.UserHandler.Profile)
		r.With(chatLimiter).Post("/chat", dep.ChatHandler.Reply)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
