// Package config loads service settings from configs/config.yml, a .env file and
// AUTHGATE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const envPrefix = "AUTHGATE"

// Supported backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	SessionCookie = "cookie"
	SessionMemory = "memory"
	SessionJWT    = "jwt"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"

	releaseMode = "release"
)

type Config struct {
	Port    string `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`

	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	CORS    CORSConfig    `mapstructure:"cors"`
	DB      DBConfig      `mapstructure:"db"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Session SessionConfig `mapstructure:"session"`
	Limiter LimiterConfig `mapstructure:"limiter"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	AuthPrefix        string        `mapstructure:"auth_prefix"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig tunes password hashing and login throttling.
type AuthConfig struct {
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LoginWindow      time.Duration `mapstructure:"login_window"`
	LockDuration     time.Duration `mapstructure:"lock_duration"`
}

type SessionConfig struct {
	Backend string        `mapstructure:"backend"`
	Name    string        `mapstructure:"name"`
	Secret  string        `mapstructure:"secret"`
	MaxAge  time.Duration `mapstructure:"max_age"`
	Secure  bool          `mapstructure:"secure"`
}

type LimiterConfig struct {
	Backend string `mapstructure:"backend"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "debug")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("http.auth_prefix", "/api/auth")
	v.SetDefault("http.trusted_proxies", []string{})
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", "app.db")

	v.SetDefault("auth.bcrypt_cost", 14)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.login_window", 15*time.Minute)
	v.SetDefault("auth.lock_duration", 10*time.Minute)

	v.SetDefault("session.backend", SessionCookie)
	v.SetDefault("session.name", "chocolatechip")
	v.SetDefault("session.secret", "keep it secret, keep it safe")
	v.SetDefault("session.max_age", time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("limiter.backend", LimiterMemory)
	v.SetDefault("redis.url", "redis://127.0.0.1:6379/0")
}

// Load reads configuration from dir/config.yml (optional), .env (optional) and the
// environment. A missing config file is not an error; a malformed one is.
func Load(dir string) (*Config, error) {
	// .env only seeds variables that are not already set.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be in [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	if c.Auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("auth.max_login_attempts must be positive, got %d", c.Auth.MaxLoginAttempts)
	}
	if c.Auth.LoginWindow <= 0 || c.Auth.LockDuration <= 0 {
		return errors.New("auth.login_window and auth.lock_duration must be positive")
	}

	for _, p := range c.HTTP.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("http.trusted_proxies: %q is neither an IP nor a CIDR", p)
		}
	}

	switch c.DB.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("db.dsn is required")
	}

	switch c.Session.Backend {
	case SessionCookie, SessionMemory, SessionJWT:
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.Session.Name == "" {
		return errors.New("session.name is required")
	}
	if c.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	if c.GinMode == releaseMode && c.Session.Secret == "keep it secret, keep it safe" {
		return errors.New("session.secret must be overridden in release mode")
	}

	switch c.Limiter.Backend {
	case LimiterMemory:
	case LimiterRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when limiter.backend is redis")
		}
	default:
		return fmt.Errorf("unknown limiter.backend %q", c.Limiter.Backend)
	}
	return nil
}
