package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	RedisAddr             string
	RedisPassword         string
	RateLimitRedisEnabled bool
	RateLimitFailOpen     bool

	JWTIssuer          string
	JWTAudience        string
	JWTSecret          string
	ManualSessionTTL   time.Duration
	GoogleSessionTTL   time.Duration
	StateSigningSecret string
	CookieSecure       bool

	CORSAllowedOrigins []string
	FrontendBaseURL    string
	PublicBaseURL      string

	AuthGoogleEnabled  bool
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	VerificationTTL time.Duration
	TempPasswordTTL time.Duration

	MailEnabled  bool
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailSender   string

	ChatEnabled   bool
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	ChatTimeout   time.Duration

	AuthRateLimitPerMin int
	APIRateLimitPerMin  int
	ChatRateLimitPerMin int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string

	ReadinessProbeTimeout        time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	googleClientID := os.Getenv("GOOGLE_OAUTH_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET")
	googleEnabled := getEnvBool("AUTH_GOOGLE_ENABLED", true)
	if _, explicitlySet := os.LookupEnv("AUTH_GOOGLE_ENABLED"); !explicitlySet &&
		(googleClientID == "" || googleClientSecret == "") && isLocalLikeEnv(env) {
		googleEnabled = false
	}

	cfg := &Config{
		Env:                   env,
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RateLimitRedisEnabled: getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitFailOpen:     getEnvBool("RATE_LIMIT_FAIL_OPEN", true),
		JWTIssuer:             getEnv("JWT_ISSUER", "quantumchem"),
		JWTAudience:           getEnv("JWT_AUDIENCE", "quantumchem-api"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		StateSigningSecret:    os.Getenv("OAUTH_STATE_SECRET"),
		CookieSecure:          getEnvBool("COOKIE_SECURE", true),
		CORSAllowedOrigins:    splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		FrontendBaseURL:       strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		AuthGoogleEnabled:     googleEnabled,
		GoogleClientID:        googleClientID,
		GoogleClientSecret:    googleClientSecret,
		GoogleRedirectURL:     getEnv("GOOGLE_OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		MailEnabled:           getEnvBool("MAIL_ENABLED", false),
		SMTPHost:              getEnv("SMTP_HOST", "smtp-relay.brevo.com"),
		SMTPPort:              getEnv("SMTP_PORT", "587"),
		SMTPUsername:          os.Getenv("SMTP_USERNAME"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		MailSender:            getEnv("MAIL_SENDER", "QuantumChem <no-reply@quantumchem.app>"),
		ChatEnabled:           getEnvBool("CHAT_ENABLED", true),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AuthRateLimitPerMin:   getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:    getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		ChatRateLimitPerMin:   getEnvInt("CHAT_RATE_LIMIT_PER_MIN", 20),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "quantumchem-backend"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"MANUAL_SESSION_TTL", "24h", &cfg.ManualSessionTTL},
		{"GOOGLE_SESSION_TTL", "168h", &cfg.GoogleSessionTTL},
		{"VERIFICATION_TTL", "24h", &cfg.VerificationTTL},
		{"TEMP_PASSWORD_TTL", "96h", &cfg.TempPasswordTTL},
		{"CHAT_TIMEOUT", "30s", &cfg.ChatTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if len(c.StateSigningSecret) < 16 {
		errs = append(errs, "OAUTH_STATE_SECRET must be at least 16 chars")
	}
	if c.ManualSessionTTL <= 0 || c.ManualSessionTTL > (7*24*time.Hour) {
		errs = append(errs, "MANUAL_SESSION_TTL must be between 1s and 7d")
	}
	if c.GoogleSessionTTL <= 0 || c.GoogleSessionTTL > (30*24*time.Hour) {
		errs = append(errs, "GOOGLE_SESSION_TTL must be between 1s and 30d")
	}
	if c.VerificationTTL <= 0 {
		errs = append(errs, "VERIFICATION_TTL must be > 0")
	}
	if c.TempPasswordTTL <= 0 {
		errs = append(errs, "TEMP_PASSWORD_TTL must be > 0")
	}
	if c.FrontendBaseURL == "" {
		errs = append(errs, "FRONTEND_URL is required")
	}
	if c.AuthGoogleEnabled && c.GoogleClientID == "" {
		errs = append(errs, "GOOGLE_OAUTH_CLIENT_ID is required when AUTH_GOOGLE_ENABLED=true")
	}
	if c.AuthGoogleEnabled && c.GoogleClientSecret == "" {
		errs = append(errs, "GOOGLE_OAUTH_CLIENT_SECRET is required when AUTH_GOOGLE_ENABLED=true")
	}
	if c.MailEnabled {
		if c.SMTPHost == "" || c.SMTPPort == "" {
			errs = append(errs, "SMTP_HOST and SMTP_PORT are required when MAIL_ENABLED=true")
		}
		if c.SMTPUsername == "" || c.SMTPPassword == "" {
			errs = append(errs, "SMTP_USERNAME and SMTP_PASSWORD are required when MAIL_ENABLED=true")
		}
	}
	if c.ChatEnabled && c.OpenAIAPIKey == "" && isProdLikeEnv(c.Env) {
		errs = append(errs, "OPENAI_API_KEY is required when CHAT_ENABLED=true in production")
	}
	if c.RateLimitRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when RATE_LIMIT_REDIS_ENABLED=true")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.ChatRateLimitPerMin <= 0 {
		errs = append(errs, "CHAT_RATE_LIMIT_PER_MIN must be > 0")
	}
	if isProdLikeEnv(c.Env) && !c.CookieSecure {
		errs = append(errs, "COOKIE_SECURE must be true in production")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 || c.ShutdownHTTPDrainTimeout <= 0 || c.ShutdownObservabilityTimeout <= 0 {
		errs = append(errs, "shutdown timeouts must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
