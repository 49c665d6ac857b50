package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
}

// EngineConfig holds the leaderboard engine tuning knobs
type EngineConfig struct {
	HeartbeatInterval time.Duration
	MaxConnAge        time.Duration
	ReconcileInterval time.Duration
	SnapshotLimit     int
	WeeklyTTL         time.Duration
	MonthlyTTL        time.Duration
	EventBus          string // "local" or "nats"
	NATSURL           string
	SimulatorEnabled  bool
	SimulatorTick     time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "rankstream"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8000),
		},
		Engine: EngineConfig{
			HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
			MaxConnAge:        getEnvAsDuration("MAX_CONN_AGE", 30*time.Minute),
			ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", time.Minute),
			SnapshotLimit:     getEnvAsInt("SNAPSHOT_LIMIT", 1000),
			WeeklyTTL:         getEnvAsDuration("WEEKLY_TTL", 14*24*time.Hour),
			MonthlyTTL:        getEnvAsDuration("MONTHLY_TTL", 62*24*time.Hour),
			EventBus:          getEnv("EVENT_BUS", "local"),
			NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SimulatorEnabled:  getEnvAsBool("SIMULATOR_ENABLED", false),
			SimulatorTick:     getEnvAsDuration("SIMULATOR_TICK", 500*time.Millisecond),
		},
	}

	return cfg, nil
}

// GetDSN returns the PostgreSQL DSN
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration (e.g. "30s")
// or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
