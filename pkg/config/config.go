package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment driven settings for the API server.
type Config struct {
	Env            string
	Host           string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	JWTSecret string

	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig

	// ReconcileInterval controls how often the enrollment reconciliation
	// sweep runs. Zero disables it.
	ReconcileInterval time.Duration
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // seconds
	ConnMaxIdleTime int // seconds
	RunMigrations   bool
}

// RedisConfig contains Redis connection settings for the activity stream.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ActivityStream string
}

// EmailConfig contains email/SMTP configuration for the notifier.
type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Secure   bool
}

// Load builds a Config from environment variables with sensible defaults.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Env:               getEnv("ENROLL_ENV", "development"),
		Host:              getEnv("ENROLL_HOST", "0.0.0.0"),
		Port:              getEnv("ENROLL_PORT", "8080"),
		LogLevel:          getEnv("ENROLL_LOG_LEVEL", "info"),
		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key-change-me"),
		ReconcileInterval: time.Duration(getEnvAsInt("ENROLL_RECONCILE_INTERVAL_MINUTES", 30)) * time.Minute,
	}

	cfg.AllowedOrigins = splitAndTrim(os.Getenv("ENROLL_ALLOWED_ORIGINS"))
	cfg.Database = loadDatabaseConfig()
	cfg.Redis = loadRedisConfig()
	cfg.Email = loadEmailConfig()

	return cfg, nil
}

// ServerAddress joins the host and port into a listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction reports whether the app is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// DSN builds a PostgreSQL DSN for gorm.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
		d.TimeZone,
	)
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("ENROLL_DB_HOST", "127.0.0.1"),
		Port:            getEnv("ENROLL_DB_PORT", "5432"),
		User:            getEnv("ENROLL_DB_USER", "postgres"),
		Password:        os.Getenv("ENROLL_DB_PASSWORD"),
		Name:            getEnv("ENROLL_DB_NAME", "enrollhub"),
		SSLMode:         getEnv("ENROLL_DB_SSLMODE", "disable"),
		TimeZone:        getEnv("ENROLL_DB_TIMEZONE", "UTC"),
		MaxIdleConns:    getEnvAsInt("ENROLL_DB_MAX_IDLE_CONNS", 5),
		MaxOpenConns:    getEnvAsInt("ENROLL_DB_MAX_OPEN_CONNS", 20),
		ConnMaxLifetime: getEnvAsInt("ENROLL_DB_CONN_MAX_LIFETIME", 1800),
		ConnMaxIdleTime: getEnvAsInt("ENROLL_DB_CONN_MAX_IDLE_TIME", 300),
		RunMigrations:   getEnvAsBool("ENROLL_DB_RUN_MIGRATIONS", false),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:           getEnv("ENROLL_REDIS_ADDR", ""),
		Password:       os.Getenv("ENROLL_REDIS_PASSWORD"),
		DB:             getEnvAsInt("ENROLL_REDIS_DB", 0),
		ActivityStream: getEnv("ENROLL_ACTIVITY_STREAM", "enrollhub:activity"),
	}
}

func loadEmailConfig() EmailConfig {
	return EmailConfig{
		Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		Port:     getEnv("SMTP_PORT", "587"),
		Username: getEnv("SMTP_USER", ""),
		Password: getEnv("SMTP_PASS", ""),
		From:     getEnv("SMTP_FROM", "noreply@example.com"),
		Secure:   getEnv("SMTP_SECURE", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return fallback
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
