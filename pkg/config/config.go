package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Billing  BillingConfig
	Sweeps   SweepConfig
	LogLevel string

	MetricsEnabled bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
	PoolSize int

	// TTL for cached active-subscription lookups
	SubscriptionTTL time.Duration
}

// BillingConfig holds gateway and invoicing settings
type BillingConfig struct {
	// Per-gateway webhook secrets, keyed by gateway name
	WebhookSecrets map[string]string

	// Days until a freshly generated invoice is due
	InvoiceDueDays int
}

// SweepConfig holds the recurring job settings
type SweepConfig struct {
	// Cron expression for the renewal sweep (default: daily at 02:00 UTC)
	RenewalSchedule string
	// Cron expression for the fee-overdue sweep (default: daily at 02:30 UTC)
	FeeOverdueSchedule string

	// Subscriptions expiring within this window get a reminder
	RenewalLookahead time.Duration
	// Subscriptions expiring within this tighter window get an invoice
	PreInvoiceWindow time.Duration
	// Minimum gap between overdue reminders for the same fee record
	FeeReminderCooldown time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:         loadServerConfig(),
		Database:       loadDatabaseConfig(),
		Redis:          loadRedisConfig(),
		Billing:        loadBillingConfig(),
		Sweeps:         loadSweepConfig(),
		LogLevel:       getEnv("BURSAR_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("BURSAR_METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BURSAR_HOST", "0.0.0.0"),
		Port:            getEnv("BURSAR_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BURSAR_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BURSAR_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BURSAR_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BURSAR_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("BURSAR_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("BURSAR_POSTGRES_URL", "postgres://localhost/bursar?sslmode=disable"),
		MaxConns:    getEnvInt("BURSAR_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("BURSAR_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("BURSAR_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("BURSAR_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("BURSAR_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:         getEnvBool("BURSAR_REDIS_ENABLED", false),
		URL:             getEnv("BURSAR_REDIS_URL", "redis://localhost:6379/0"),
		Password:        getEnv("BURSAR_REDIS_PASSWORD", ""),
		DB:              getEnvInt("BURSAR_REDIS_DB", 0),
		PoolSize:        getEnvInt("BURSAR_REDIS_POOL_SIZE", 10),
		SubscriptionTTL: getEnvDuration("BURSAR_REDIS_SUBSCRIPTION_TTL", 1*time.Minute),
	}
}

func loadBillingConfig() BillingConfig {
	secrets := make(map[string]string)
	// BURSAR_WEBHOOK_SECRETS is "gateway1=secret1,gateway2=secret2"
	for _, pair := range strings.Split(getEnv("BURSAR_WEBHOOK_SECRETS", ""), ",") {
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 && parts[0] != "" {
			secrets[parts[0]] = parts[1]
		}
	}

	return BillingConfig{
		WebhookSecrets: secrets,
		InvoiceDueDays: getEnvInt("BURSAR_INVOICE_DUE_DAYS", 7),
	}
}

func loadSweepConfig() SweepConfig {
	return SweepConfig{
		RenewalSchedule:     getEnv("BURSAR_RENEWAL_SCHEDULE", "0 2 * * *"),
		FeeOverdueSchedule:  getEnv("BURSAR_FEE_OVERDUE_SCHEDULE", "30 2 * * *"),
		RenewalLookahead:    getEnvDuration("BURSAR_RENEWAL_LOOKAHEAD", 7*24*time.Hour),
		PreInvoiceWindow:    getEnvDuration("BURSAR_PRE_INVOICE_WINDOW", 3*24*time.Hour),
		FeeReminderCooldown: getEnvDuration("BURSAR_FEE_REMINDER_COOLDOWN", 24*time.Hour),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when redis is enabled")
	}

	if c.Billing.InvoiceDueDays <= 0 {
		return fmt.Errorf("invoice due days must be positive")
	}

	if c.Sweeps.RenewalLookahead <= 0 {
		return fmt.Errorf("renewal lookahead must be positive")
	}
	if c.Sweeps.PreInvoiceWindow <= 0 {
		return fmt.Errorf("pre-invoice window must be positive")
	}
	if c.Sweeps.PreInvoiceWindow > c.Sweeps.RenewalLookahead {
		return fmt.Errorf("pre-invoice window must not exceed renewal lookahead")
	}
	if c.Sweeps.FeeReminderCooldown <= 0 {
		return fmt.Errorf("fee reminder cooldown must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
