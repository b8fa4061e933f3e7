package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Redis    RedisConfig
	Payroll  PayrollConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32

	// AutoMigrate applies pending schema migrations at startup.
	AutoMigrate bool
}

// JWTConfig holds the key used to verify access tokens issued by the auth service.
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string
}

// RedisConfig is optional. With an empty URL run locks stay in-process.
type RedisConfig struct {
	URL         string
	PoolSize    int
	DialTimeout time.Duration
}

type PayrollConfig struct {
	TaxTablesPath          string
	MinimumReliefFloor     decimal.Decimal
	BatchParallelism       int
	TaxTableReloadInterval time.Duration
	RunLockTTL             time.Duration
}

func Load() (*Config, error) {
	// .env is optional; variables already set in the environment take precedence.
	_ = godotenv.Load()

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	dbMaxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "cmlabs-hris-payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(dbMaxConns),
	}
	config.Database.AutoMigrate, err = strconv.ParseBool(getEnv("DB_AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_AUTO_MIGRATE: %w", err)
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	// Redis configuration
	redisPoolSize, err := strconv.Atoi(getEnv("REDIS_POOL_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	redisDialTimeout, err := time.ParseDuration(getEnv("REDIS_DIAL_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DIAL_TIMEOUT: %w", err)
	}

	config.Redis = RedisConfig{
		URL:         getEnv("REDIS_URL", ""),
		PoolSize:    redisPoolSize,
		DialTimeout: redisDialTimeout,
	}

	// Payroll configuration
	reliefFloor, err := decimal.NewFromString(getEnv("PAYROLL_MINIMUM_RELIEF_FLOOR", "200000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_MINIMUM_RELIEF_FLOOR: %w", err)
	}
	parallelism, err := strconv.Atoi(getEnv("PAYROLL_BATCH_PARALLELISM", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_BATCH_PARALLELISM: %w", err)
	}
	reloadInterval, err := time.ParseDuration(getEnv("PAYROLL_TAX_TABLE_RELOAD_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_TAX_TABLE_RELOAD_INTERVAL: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("PAYROLL_RUN_LOCK_TTL", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_RUN_LOCK_TTL: %w", err)
	}

	config.Payroll = PayrollConfig{
		TaxTablesPath:          getEnv("PAYROLL_TAX_TABLES_PATH", "config/tax_tables.yaml"),
		MinimumReliefFloor:     reliefFloor,
		BatchParallelism:       parallelism,
		TaxTableReloadInterval: reloadInterval,
		RunLockTTL:             lockTTL,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.MinimumReliefFloor.IsNegative() {
		return fmt.Errorf("PAYROLL_MINIMUM_RELIEF_FLOOR must be non-negative")
	}
	if c.Payroll.BatchParallelism <= 0 {
		return fmt.Errorf("PAYROLL_BATCH_PARALLELISM must be positive")
	}
	if c.Payroll.TaxTableReloadInterval <= 0 {
		return fmt.Errorf("PAYROLL_TAX_TABLE_RELOAD_INTERVAL must be positive")
	}
	if c.Payroll.RunLockTTL <= 0 {
		return fmt.Errorf("PAYROLL_RUN_LOCK_TTL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
