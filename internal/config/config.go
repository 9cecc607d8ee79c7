package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"

	EmailProviderSES = "ses"
	EmailProviderLog = "log"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Recovery RecoveryConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	RunMigrations     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	// Optional bootstrap administrator, created at startup when no account with this email exists
	AdminEmail    string
	AdminPassword string
}

// RecoveryConfig drives the forgot-password attempt limiter and reset tokens
type RecoveryConfig struct {
	MaxAttempts       int
	Window            time.Duration
	Cooldown          time.Duration
	FailClosed        bool
	StoreBackend      string
	Collection        string
	TokenExpiry       time.Duration
	CleanupInterval   time.Duration
	RequestsPerMinute int
	ResponseFloor     time.Duration
}

type EmailConfig struct {
	Provider     string
	AWSRegion    string
	FromAddress  string
	ResetURLBase string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "tourney"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			RunMigrations:     getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			AdminEmail:        getEnv("ADMIN_EMAIL", ""),
			AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		},
		Recovery: RecoveryConfig{
			MaxAttempts:       getEnvAsInt("RECOVERY_MAX_ATTEMPTS", 3),
			Window:            getEnvAsDuration("RECOVERY_WINDOW", 24*time.Hour),
			Cooldown:          getEnvAsDuration("RECOVERY_COOLDOWN", 24*time.Hour),
			FailClosed:        getEnvAsBool("RECOVERY_FAIL_CLOSED", true),
			StoreBackend:      strings.ToLower(getEnv("RECOVERY_STORE", StoreBackendPostgres)),
			Collection:        getEnv("RECOVERY_COLLECTION", "forgotPasswordAttempts"),
			TokenExpiry:       getEnvAsDuration("RESET_TOKEN_EXPIRY", 1*time.Hour),
			CleanupInterval:   getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Minute),
			RequestsPerMinute: getEnvAsInt("RECOVERY_REQUESTS_PER_MINUTE", 10),
			ResponseFloor:     getEnvAsDuration("RECOVERY_RESPONSE_FLOOR", 250*time.Millisecond),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderLog)),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
			ResetURLBase: getEnv("RESET_URL_BASE", "http://localhost:5173"),
		},
	}

	if (cfg.Auth.AdminEmail == "") != (cfg.Auth.AdminPassword == "") {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Recovery.validate(); err != nil {
		return nil, err
	}

	if cfg.Email.Provider == EmailProviderSES && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_PROVIDER=ses")
	}
	if cfg.Email.Provider != EmailProviderSES && cfg.Email.Provider != EmailProviderLog {
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of %q, %q (got %q)", EmailProviderSES, EmailProviderLog, cfg.Email.Provider)
	}

	return cfg, nil
}

func (c *RecoveryConfig) validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("RECOVERY_MAX_ATTEMPTS must be positive (got %d)", c.MaxAttempts)
	}
	if c.Window <= 0 || c.Cooldown <= 0 {
		return fmt.Errorf("RECOVERY_WINDOW and RECOVERY_COOLDOWN must be positive")
	}
	if c.Cooldown > c.Window {
		return fmt.Errorf("RECOVERY_COOLDOWN (%s) must not exceed RECOVERY_WINDOW (%s)", c.Cooldown, c.Window)
	}

	switch c.StoreBackend {
	case StoreBackendMemory, StoreBackendPostgres, StoreBackendRedis:
	default:
		return fmt.Errorf("RECOVERY_STORE must be one of memory, postgres, redis (got %q)", c.StoreBackend)
	}

	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: the admin front-end dev servers
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
