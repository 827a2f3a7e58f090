/*
config.go - Runtime configuration

PURPOSE:
  Collects every setting the server needs from the environment, with an
  optional .env file loaded first. Command-line flags in cmd/server
  override the values returned here.

VARIABLES:
  HTTP_ADDR            Listen address (default :8080)
  DB_DRIVER            sqlite | postgres (default sqlite)
  DB_PATH              SQLite file (default rewards.db)
  DATABASE_URL         PostgreSQL DSN, required when DB_DRIVER=postgres
  LOG_LEVEL, ENV       zap level and dev|prod encoder
  SENTRY_DSN           Error reporting, disabled when empty
  CLIENT_URL           Prefix for links in notifications
  SESSION_SECRET       HMAC key for session tokens (required in prod)
  SESSION_KEY          AES-256 key sealing the session cookie, 32 bytes
  SESSION_TTL          Session lifetime (default 12h)
  LDAP_URL, LDAP_BIND_DN, LDAP_BIND_PASSWORD, LDAP_BASE_DN
  AMQP_URL, NOTIFY_QUEUE
  REDIS_ADDR, REDIS_PASSWORD, CACHE_TTL
  UPLOAD_DIR           Attachment root (default ./uploads)
  SYNC_INTERVAL        Directory sync period, 0 disables the scheduler
  SYNC_BATCH_SIZE, SYNC_BATCH_DELAY
  CORS_ORIGINS         Comma separated

SEE ALSO:
  - cmd/server/main.go: Flag overrides and wiring
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CookieName is the session cookie.
const CookieName = "_wfr"

type LDAP struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string
}

// Enabled reports whether a directory server is configured.
func (l LDAP) Enabled() bool { return l.URL != "" }

type Config struct {
	HTTPAddr    string
	DBDriver    string // sqlite | postgres
	DBPath      string
	DatabaseURL string
	LogLevel    string
	Env         string // dev | prod
	SentryDSN   string
	Release     string
	ClientURL   string

	SessionSecret string
	SessionKey    string
	CookieName    string
	SessionTTL    time.Duration

	LDAP LDAP

	AMQPURL     string
	NotifyQueue string

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	UploadDir string

	SyncInterval   time.Duration
	SyncBatchSize  int
	SyncBatchDelay time.Duration

	CORSOrigins []string
	DBTimeout   time.Duration
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		DBDriver:      strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:        getenv("DB_PATH", "rewards.db"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		Env:           strings.ToLower(getenv("ENV", "dev")),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Release:       os.Getenv("RELEASE"),
		ClientURL:     getenv("CLIENT_URL", "http://localhost:5173"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionKey:    os.Getenv("SESSION_KEY"),
		CookieName:    CookieName,
		SessionTTL:    duration("SESSION_TTL", 12*time.Hour, &errs),
		LDAP: LDAP{
			URL:          os.Getenv("LDAP_URL"),
			BindDN:       os.Getenv("LDAP_BIND_DN"),
			BindPassword: os.Getenv("LDAP_BIND_PASSWORD"),
			BaseDN:       os.Getenv("LDAP_BASE_DN"),
		},
		AMQPURL:        os.Getenv("AMQP_URL"),
		NotifyQueue:    getenv("NOTIFY_QUEUE", "rewards.notifications"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		CacheTTL:       duration("CACHE_TTL", time.Minute, &errs),
		UploadDir:      getenv("UPLOAD_DIR", "./uploads"),
		SyncInterval:   duration("SYNC_INTERVAL", 0, &errs),
		SyncBatchSize:  integer("SYNC_BATCH_SIZE", 5, &errs),
		SyncBatchDelay: duration("SYNC_BATCH_DELAY", 2*time.Second, &errs),
		CORSOrigins:    list(getenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		DBTimeout:      duration("DB_TIMEOUT", 5*time.Second, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks combinations that would fail later at startup.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER: unsupported driver %q", c.DBDriver)
	}
	if c.SessionKey != "" && len(c.SessionKey) != 32 {
		return fmt.Errorf("SESSION_KEY must be 32 bytes, got %d", len(c.SessionKey))
	}
	if c.Env == "prod" && (c.SessionSecret == "" || c.SessionKey == "") {
		return errors.New("SESSION_SECRET and SESSION_KEY are required in prod")
	}
	if c.SyncBatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.SyncBatchSize)
	}
	return nil
}

// Production reports whether ENV=prod.
func (c *Config) Production() bool { return c.Env == "prod" }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func duration(k string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}

func integer(k string, def int, errs *[]error) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
