package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddress string
	DatabaseURL string

	InviteTokenSecret  string
	AccessTokenSecret  string
	RefreshTokenSecret string
	InviteTokenTTL     time.Duration
	AccessTokenTTL     time.Duration
	RefreshCookieTTL   time.Duration

	HashMemory      uint32
	HashIterations  uint32
	HashParallelism uint8
	HashSaltLength  uint32
	HashKeyLength   uint32

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailTimeout  time.Duration

	FrontendURL  string
	CookieDomain string

	AllowedOrigins   []string
	AllowCredentials bool

	HTTPSCertFile string
	HTTPSKeyFile  string

	LogLevel string
}

var required = []string{
	"DATABASE_URL",
	"INVITE_TOKEN_SECRET",
	"ACCESS_TOKEN_SECRET",
	"REFRESH_TOKEN_SECRET",
	"SMTP_HOST",
	"MAIL_FROM",
	"FRONTEND_URL",
}

// Load reads an optional config.json and overlays environment variables.
// Missing required keys fail at startup, never inside request handling.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	keys := append([]string{}, required...)
	keys = append(keys,
		"HTTP_ADDRESS",
		"INVITE_TOKEN_TTL", "ACCESS_TOKEN_TTL", "REFRESH_COOKIE_TTL",
		"HASH_MEMORY_KIB", "HASH_ITERATIONS", "HASH_PARALLELISM",
		"HASH_SALT_LENGTH", "HASH_KEY_LENGTH",
		"SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_TIMEOUT",
		"COOKIE_DOMAIN", "ALLOWED_ORIGINS", "ALLOW_CREDENTIALS",
		"HTTPS_CERT_FILE", "HTTPS_KEY_FILE", "LOG_LEVEL",
	)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("INVITE_TOKEN_TTL", "15m")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_COOKIE_TTL", "168h")
	v.SetDefault("HASH_MEMORY_KIB", 64*1024)
	v.SetDefault("HASH_ITERATIONS", 2)
	v.SetDefault("HASH_PARALLELISM", 4)
	v.SetDefault("HASH_SALT_LENGTH", 16)
	v.SetDefault("HASH_KEY_LENGTH", 32)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_TIMEOUT", "10s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file, %w", err)
		}
	}

	for _, key := range required {
		if v.GetString(key) == "" {
			return nil, fmt.Errorf("missing required config key %s", key)
		}
	}

	cfg := &Config{
		HTTPAddress:        v.GetString("HTTP_ADDRESS"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		InviteTokenSecret:  v.GetString("INVITE_TOKEN_SECRET"),
		AccessTokenSecret:  v.GetString("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: v.GetString("REFRESH_TOKEN_SECRET"),
		InviteTokenTTL:     v.GetDuration("INVITE_TOKEN_TTL"),
		AccessTokenTTL:     v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshCookieTTL:   v.GetDuration("REFRESH_COOKIE_TTL"),
		HashMemory:         v.GetUint32("HASH_MEMORY_KIB"),
		HashIterations:     v.GetUint32("HASH_ITERATIONS"),
		HashParallelism:    uint8(v.GetUint("HASH_PARALLELISM")),
		HashSaltLength:     v.GetUint32("HASH_SALT_LENGTH"),
		HashKeyLength:      v.GetUint32("HASH_KEY_LENGTH"),
		SMTPHost:           v.GetString("SMTP_HOST"),
		SMTPPort:           v.GetInt("SMTP_PORT"),
		SMTPUsername:       v.GetString("SMTP_USERNAME"),
		SMTPPassword:       v.GetString("SMTP_PASSWORD"),
		MailFrom:           v.GetString("MAIL_FROM"),
		MailTimeout:        v.GetDuration("MAIL_TIMEOUT"),
		FrontendURL:        v.GetString("FRONTEND_URL"),
		CookieDomain:       v.GetString("COOKIE_DOMAIN"),
		AllowedOrigins:     v.GetStringSlice("ALLOWED_ORIGINS"),
		AllowCredentials:   v.GetBool("ALLOW_CREDENTIALS"),
		HTTPSCertFile:      v.GetString("HTTPS_CERT_FILE"),
		HTTPSKeyFile:       v.GetString("HTTPS_KEY_FILE"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}

	if cfg.InviteTokenTTL <= 0 || cfg.AccessTokenTTL <= 0 || cfg.RefreshCookieTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}

	return cfg, nil
}
