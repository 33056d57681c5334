package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	PublicPort int `yaml:"public_port"` // redemption API
	AdminPort  int `yaml:"admin_port"`  // dashboard API
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // coupon cache TTL
}

type AdminConfig struct {
	Password     string        `yaml:"password"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
	CookieDomain string        `yaml:"cookie_domain"`
}

type PaymentConfig struct {
	// Mode selects the purchase verification backend: "local" reads this
	// service's own purchases table, "http" calls the external wallet
	// intake API.
	Mode    string `yaml:"mode"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type RateLimitConfig struct {
	RedeemPerMinute int `yaml:"redeem_per_minute"` // 0 disables the limit
}

type SecurityConfig struct {
	// EncryptionKey seals the sender number and raw SMS text in the
	// purchase ledger. Must be 16, 24, or 32 bytes; empty disables
	// at-rest encryption.
	EncryptionKey string `yaml:"encryption_key"`
}

type ReconcilerConfig struct {
	Interval time.Duration `yaml:"interval"` // 0 means every 10 minutes
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Admin      AdminConfig      `yaml:"admin"`
	Payment    PaymentConfig    `yaml:"payment"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Security   SecurityConfig   `yaml:"security"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.PublicPort == 0 {
		cfg.Server.PublicPort = 8080
	}
	if cfg.Server.AdminPort == 0 {
		cfg.Server.AdminPort = 8081
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Payment.Mode == "" {
		cfg.Payment.Mode = "local"
	}
	if cfg.RateLimit.RedeemPerMinute < 0 {
		cfg.RateLimit.RedeemPerMinute = 0
	}

	// Minimal validation
	if !dev {
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required")
		}
		if cfg.Admin.Password == "" {
			return nil, errors.New("admin.password is required")
		}
		if cfg.Admin.JWTSecret == "" {
			return nil, errors.New("admin.jwt_secret is required")
		}
	}
	switch strings.ToLower(cfg.Payment.Mode) {
	case "local":
	case "http":
		if cfg.Payment.BaseURL == "" {
			return nil, errors.New("payment.base_url is required for http mode")
		}
	default:
		return nil, fmt.Errorf("unknown payment.mode %q", cfg.Payment.Mode)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
