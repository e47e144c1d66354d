// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MinSigningSecretLen is the minimum HMAC secret length in bytes.
const MinSigningSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// SigningSecret is the HS256 key for access tokens; at least MinSigningSecretLen bytes.
	SigningSecret string        `mapstructure:"AUTH_SIGNING_SECRET"`
	Issuer        string        `mapstructure:"AUTH_ISSUER"`
	AccessTTL     time.Duration `mapstructure:"AUTH_ACCESS_TTL"`
	RefreshTTL    time.Duration `mapstructure:"AUTH_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// CookieSecure sets the Secure flag on the refresh cookie. Disable only for local plain-HTTP use.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// APIKeyTouchTimeout bounds the detached last_used_at update after a key validates.
	APIKeyTouchTimeout time.Duration `mapstructure:"APIKEY_TOUCH_TIMEOUT"`

	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Env         string `mapstructure:"APP_ENV"`
	ServiceName string `mapstructure:"SERVICE_NAME"`

	// OTLPEndpoint enables OTLP export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	var cfg Config
	if err := newViper().Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabaseURL returns DATABASE_URL alone, for tools that only touch the database.
func LoadDatabaseURL() (string, error) {
	dsn := newViper().GetString("DATABASE_URL")
	if dsn == "" {
		return "", errors.New("config: DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	return dsn, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_SIGNING_SECRET", "")
	v.SetDefault("AUTH_ISSUER", "rollups-auth")
	v.SetDefault("AUTH_ACCESS_TTL", "15m")
	v.SetDefault("AUTH_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("APIKEY_TOUCH_TIMEOUT", "2s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVICE_NAME", "tenant-rollups")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	return v
}

// Validate checks fields that have no safe default.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if len(c.SigningSecret) < MinSigningSecretLen {
		return fmt.Errorf("config: AUTH_SIGNING_SECRET must be at least %d bytes", MinSigningSecretLen)
	}
	if c.Issuer == "" {
		return errors.New("config: AUTH_ISSUER must be set")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return errors.New("config: AUTH_ACCESS_TTL must be shorter than AUTH_REFRESH_TTL")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.DBMinConns < 0 || c.DBMaxConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns) {
		return errors.New("config: DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if c.APIKeyTouchTimeout <= 0 {
		c.APIKeyTouchTimeout = 2 * time.Second
	}
	if c.Env == "production" && !c.CookieSecure {
		return errors.New("config: COOKIE_SECURE must not be false when APP_ENV=production")
	}
	return nil
}
