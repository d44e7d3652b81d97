package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAppEnv               = "dev"
	defaultPort                 = "8080"
	defaultDatabaseURL          = "library.db"
	defaultLogLevel             = "info"
	defaultJWTSecret            = "change-me-jwt-secret"
	defaultJWTAccessTTL         = "15m"
	defaultJWTRefreshTTL        = "24h"
	defaultBackendBaseURL       = "http://localhost:8080"
	defaultTelegramAPIURL       = "https://api.telegram.org"
	defaultOverdueSweepInterval = "24h"
	defaultOverdueSweepEnabled  = "true"
	defaultTokenRateLimit       = "10"
	defaultTokenRateBurst       = "5"
	defaultNotifyQueueSize      = "100"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	LogLevel    string

	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	CORSAllowedOrigins []string
	BackendBaseURL     string

	StripeAPIKey        string
	StripeWebhookSecret string

	TelegramBotToken string
	TelegramChatID   string
	TelegramAPIURL   string

	OverdueSweepInterval time.Duration
	OverdueSweepEnabled  bool

	// requests per minute per client IP on the token endpoints
	TokenRateLimit  float64
	TokenRateBurst  int
	NotifyQueueSize int
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE.
// Environment variables always win over file values.
type fileConfig struct {
	AppEnv      string `yaml:"app_env"`
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`

	JWT struct {
		Secret     string `yaml:"secret"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	BackendBaseURL     string   `yaml:"backend_base_url"`

	Stripe struct {
		APIKey        string `yaml:"api_key"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"stripe"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		APIURL   string `yaml:"api_url"`
	} `yaml:"telegram"`

	OverdueSweep struct {
		Interval string `yaml:"interval"`
		Enabled  *bool  `yaml:"enabled"`
	} `yaml:"overdue_sweep"`

	TokenRateLimit  string `yaml:"token_rate_limit"`
	TokenRateBurst  string `yaml:"token_rate_burst"`
	NotifyQueueSize string `yaml:"notify_queue_size"`
}

// Load reads .env (when present), the optional CONFIG_FILE and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	fc, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return fromSources(fc)
}

func readFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	path = strings.TrimSpace(path)
	if path == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func fromSources(fc *fileConfig) (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = or(fc.AppEnv, defaultAppEnv)
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.Port = strings.TrimSpace(getEnv("PORT", or(fc.Port, defaultPort)))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", or(fc.DatabaseURL, defaultDatabaseURL)))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", or(fc.LogLevel, defaultLogLevel))))

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", or(fc.JWT.Secret, defaultJWTSecret)))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", or(fc.JWT.AccessTTL, defaultJWTAccessTTL))
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", or(fc.JWT.RefreshTTL, defaultJWTRefreshTTL))
	if err != nil {
		return nil, err
	}

	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", strings.Join(fc.CORSAllowedOrigins, ",")))
	cfg.BackendBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("BACKEND_BASE_URL", or(fc.BackendBaseURL, defaultBackendBaseURL))), "/")

	cfg.StripeAPIKey = strings.TrimSpace(getEnv("STRIPE_API_KEY", fc.Stripe.APIKey))
	cfg.StripeWebhookSecret = strings.TrimSpace(getEnv("STRIPE_WEBHOOK_SECRET", fc.Stripe.WebhookSecret))

	cfg.TelegramBotToken = strings.TrimSpace(getEnv("TELEGRAM_BOT_TOKEN", fc.Telegram.BotToken))
	cfg.TelegramChatID = strings.TrimSpace(getEnv("TELEGRAM_CHAT_ID", fc.Telegram.ChatID))
	cfg.TelegramAPIURL = strings.TrimRight(strings.TrimSpace(getEnv("TELEGRAM_API_URL", or(fc.Telegram.APIURL, defaultTelegramAPIURL))), "/")

	cfg.OverdueSweepInterval, err = parseDurationEnv("OVERDUE_SWEEP_INTERVAL", or(fc.OverdueSweep.Interval, defaultOverdueSweepInterval))
	if err != nil {
		return nil, err
	}
	sweepEnabled := defaultOverdueSweepEnabled
	if fc.OverdueSweep.Enabled != nil {
		sweepEnabled = strconv.FormatBool(*fc.OverdueSweep.Enabled)
	}
	cfg.OverdueSweepEnabled = parseBoolEnv("OVERDUE_SWEEP_ENABLED", sweepEnabled)

	cfg.TokenRateLimit, err = parseFloatEnv("TOKEN_RATE_LIMIT", or(fc.TokenRateLimit, defaultTokenRateLimit))
	if err != nil {
		return nil, err
	}
	cfg.TokenRateBurst, err = parseIntEnv("TOKEN_RATE_BURST", or(fc.TokenRateBurst, defaultTokenRateBurst))
	if err != nil {
		return nil, err
	}
	cfg.NotifyQueueSize, err = parseIntEnv("NOTIFY_QUEUE_SIZE", or(fc.NotifyQueueSize, defaultNotifyQueueSize))
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TTL must be > 0")
	}
	if cfg.JWTRefreshTTL < cfg.JWTAccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must not be shorter than JWT_ACCESS_TTL")
	}
	if cfg.OverdueSweepEnabled && cfg.OverdueSweepInterval <= 0 {
		return fmt.Errorf("OVERDUE_SWEEP_INTERVAL must be > 0")
	}
	if cfg.TokenRateLimit <= 0 {
		return fmt.Errorf("TOKEN_RATE_LIMIT must be > 0")
	}
	if cfg.TokenRateBurst <= 0 {
		return fmt.Errorf("TOKEN_RATE_BURST must be > 0")
	}
	if cfg.NotifyQueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be > 0")
	}
	if !strings.HasPrefix(cfg.BackendBaseURL, "http://") && !strings.HasPrefix(cfg.BackendBaseURL, "https://") {
		return fmt.Errorf("BACKEND_BASE_URL must be an absolute http(s) URL")
	}

	if cfg.IsProdLike() {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.StripeAPIKey == "" {
			return fmt.Errorf("in prod/release STRIPE_API_KEY must be set")
		}
	}
	return nil
}

func (c *Config) IsProdLike() bool {
	return isProdLike(c.AppEnv)
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseFloatEnv(name, fallback string) (float64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return f, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
