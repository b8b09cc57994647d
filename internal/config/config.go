package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	JWTSecret string
	TokenTTL  time.Duration
	// WSOrigins are extra browser origins allowed to open /ws.
	WSOrigins []string
	Backup    Backup
}

// Backup configures encrypted snapshots to S3-compatible storage. Backups
// stay off unless the bucket, both keys and the passphrase are set.
type Backup struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
	Interval   time.Duration
	Retention  time.Duration
}

var ErrMissingSecret = errors.New("SPLITBOOK_JWT_SECRET is required")

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("SPLITBOOK_PORT", "8080"),
		DBPath:    getEnv("SPLITBOOK_DB_PATH", "splitbook.db"),
		LogLevel:  getEnv("SPLITBOOK_LOG_LEVEL", "info"),
		LogFormat: getEnv("SPLITBOOK_LOG_FORMAT", "text"),
		JWTSecret: os.Getenv("SPLITBOOK_JWT_SECRET"),
	}

	ttl, err := parseDuration("SPLITBOOK_TOKEN_TTL", "720h")
	if err != nil {
		return nil, err
	}
	cfg.TokenTTL = ttl

	for _, o := range strings.Split(os.Getenv("SPLITBOOK_WS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.WSOrigins = append(cfg.WSOrigins, o)
		}
	}

	cfg.Backup = Backup{
		Endpoint:   os.Getenv("SPLITBOOK_BACKUP_ENDPOINT"),
		Bucket:     os.Getenv("SPLITBOOK_BACKUP_BUCKET"),
		Region:     getEnv("SPLITBOOK_BACKUP_REGION", "us-east-1"),
		AccessKey:  os.Getenv("SPLITBOOK_BACKUP_ACCESS_KEY"),
		SecretKey:  os.Getenv("SPLITBOOK_BACKUP_SECRET_KEY"),
		Prefix:     os.Getenv("SPLITBOOK_BACKUP_PREFIX"),
		Passphrase: os.Getenv("SPLITBOOK_BACKUP_PASSPHRASE"),
	}
	if cfg.Backup.Interval, err = parseDuration("SPLITBOOK_BACKUP_INTERVAL", "24h"); err != nil {
		return nil, err
	}
	if cfg.Backup.Retention, err = parseDuration("SPLITBOOK_BACKUP_RETENTION", "720h"); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
