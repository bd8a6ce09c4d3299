package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quantumchem/quantumchem-backend/internal/app"
	"github.com/quantumchem/quantumchem-backend/internal/config"
	"github.com/quantumchem/quantumchem-backend/internal/database"
	"github.com/quantumchem/quantumchem-backend/internal/health"
	"github.com/quantumchem/quantumchem-backend/internal/http/handler"
	"github.com/quantumchem/quantumchem-backend/internal/http/middleware"
	"github.com/quantumchem/quantumchem-backend/internal/http/router"
	"github.com/quantumchem/quantumchem-backend/internal/observability"
	"github.com/quantumchem/quantumchem-backend/internal/repository"
	"github.com/quantumchem/quantumchem-backend/internal/security"
	"github.com/quantumchem/quantumchem-backend/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewPendingVerificationRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
)

var ServiceSet = wire.NewSet(
	provideTokenService,
	provideNotifier,
	service.NewGoogleOAuthProvider,
	wire.Bind(new(service.OAuthProvider), new(*service.GoogleOAuthProvider)),
	service.NewOAuthService,
	service.NewAccountService,
	service.NewChatService,
	wire.Bind(new(service.AccountServiceInterface), new(*service.AccountService)),
	wire.Bind(new(service.OAuthServiceInterface), new(*service.OAuthService)),
	wire.Bind(new(service.ChatServiceInterface), new(*service.ChatService)),
)

var HTTPSet = wire.NewSet(
	provideAuthHandler,
	handler.NewUserHandler,
	handler.NewChatHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideChatRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	return database.Migrate(m.db)
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

func provideTokenService(cfg *config.Config, jwtMgr *security.JWTManager) *service.TokenService {
	return service.NewTokenService(jwtMgr, cfg.ManualSessionTTL, cfg.GoogleSessionTTL)
}

func provideNotifier(cfg *config.Config, logger *slog.Logger) service.Notifier {
	if cfg.MailEnabled {
		return service.NewSMTPNotifier(cfg)
	}
	return service.NewDevNotifier(logger)
}

func provideAuthHandler(
	accountSvc service.AccountServiceInterface,
	oauthSvc service.OAuthServiceInterface,
	cfg *config.Config,
) *handler.AuthHandler {
	return handler.NewAuthHandler(accountSvc, oauthSvc, cfg.StateSigningSecret, cfg.CookieSecure, cfg.FrontendBaseURL)
}

func provideGlobalRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.GlobalRateLimiterFunc {
	return limiterForScope(cfg, redisClient, "api", cfg.APIRateLimitPerMin, middleware.FailOpen)
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	return limiterForScope(cfg, redisClient, "auth", cfg.AuthRateLimitPerMin, middleware.FailClosed)
}

func provideChatRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.ChatRateLimiterFunc {
	return limiterForScope(cfg, redisClient, "chat", cfg.ChatRateLimitPerMin, middleware.FailOpen)
}

func limiterForScope(cfg *config.Config, redisClient redis.UniversalClient, scope string, rpm int, mode middleware.FailureMode) func(http.Handler) http.Handler {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		if cfg.RateLimitFailOpen {
			mode = middleware.FailOpen
		}
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "rl:"+scope)
		return middleware.NewDistributedRateLimiter(redisLimiter, rpm, time.Minute, mode, scope).Middleware()
	}
	return middleware.NewDistributedRateLimiter(middleware.NewLocalFixedWindowLimiter(), rpm, time.Minute, mode, scope).Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	chatHandler *handler.ChatHandler,
	jwtMgr *security.JWTManager,
	globalRateLimiter router.GlobalRateLimiterFunc,
	authRateLimiter router.AuthRateLimiterFunc,
	chatRateLimiter router.ChatRateLimiterFunc,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		UserHandler:       userHandler,
		ChatHandler:       chatHandler,
		JWTManager:        jwtMgr,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		ChatRateLimitRPM:  cfg.ChatRateLimitPerMin,
		GlobalRateLimiter: globalRateLimiter,
		AuthRateLimiter:   authRateLimiter,
		ChatRateLimiter:   chatRateLimiter,
		GoogleEnabled:     cfg.AuthGoogleEnabled,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if cfg.RateLimitRedisEnabled {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, 0, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness)
}
