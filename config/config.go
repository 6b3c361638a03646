package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Identity IdentityConfig
	AWS      AWSConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	BaseURL            string // used for links in emails
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IdentityConfig holds identity provider settings.
type IdentityConfig struct {
	// OrgID is the single organization whose memberships grant staff roles.
	OrgID string
	// SessionSecret verifies HS256 session tokens; SessionPublicKey (PEM) verifies RS256 ones.
	SessionSecret    string
	SessionPublicKey string
	SessionIssuer    string
	// APIURL and APIKey reach the provider's backend API for membership management.
	APIURL        string
	APIKey        string
	APITimeoutSec int
}

// AWSConfig holds AWS credentials and the documents bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	DocumentsBucket      string
	PresignExpireMinutes int
}

// EmailConfig for SMTP delivery.
type EmailConfig struct {
	FromAddress string
	FromName    string
	AdminEmail  string // staff notifications
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
// Values without a safe default (organization id, admin email, session key) must be set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			BaseURL:            strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "grants"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Identity: IdentityConfig{
			OrgID:            strings.TrimSpace(os.Getenv("IDENTITY_ORG_ID")),
			SessionSecret:    os.Getenv("IDENTITY_SESSION_SECRET"),
			SessionPublicKey: os.Getenv("IDENTITY_SESSION_PUBLIC_KEY"),
			SessionIssuer:    getEnv("IDENTITY_SESSION_ISSUER", ""),
			APIURL:           strings.TrimRight(getEnv("IDENTITY_API_URL", ""), "/"),
			APIKey:           getEnv("IDENTITY_API_KEY", ""),
			APITimeoutSec:    getEnvInt("IDENTITY_API_TIMEOUT_SEC", 10),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			DocumentsBucket:      getEnv("AWS_S3_DOCUMENTS_BUCKET", "grant-portal-documents"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "grants@example.org"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Grants Portal"),
			AdminEmail:  strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Identity.OrgID == "" {
		errs = append(errs, errors.New("config: IDENTITY_ORG_ID must be set"))
	}
	if c.Email.AdminEmail == "" {
		errs = append(errs, errors.New("config: ADMIN_EMAIL must be set"))
	}
	if c.Identity.SessionSecret == "" && c.Identity.SessionPublicKey == "" {
		errs = append(errs, errors.New("config: IDENTITY_SESSION_SECRET or IDENTITY_SESSION_PUBLIC_KEY must be set"))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
