package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs at startup. It is loaded once in
// main and handed to constructors; services never read the environment.
type Config struct {
	Port        string
	Env         string
	CORSOrigins string

	DB    DBConfig
	Redis RedisConfig

	JWTSecret     string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	NonceTTL           time.Duration
	NonceSweepInterval time.Duration

	LogMode  string
	LogLevel string

	// EVMRPC maps a blockchain name (lower-case) to its JSON-RPC endpoint.
	EVMRPC map[string]string
}

// DBConfig holds PostgreSQL connection and pool settings.
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// Load reads the environment (after LoadEnv) into a Config.
func Load() *Config {
	LoadEnv()

	return &Config{
		Port:        GetEnv("PORT", "3000"),
		Env:         GetEnv("ENV", "development"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "chibank"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
			TTL:      GetDurationEnv("REDIS_TTL", 5*time.Minute),
		},
		JWTSecret:          GetEnv("JWT_SECRET", "chibank"),
		RefreshSecret:      GetEnv("REFRESH_SECRET", "chibank-refresh"),
		AccessTTL:          GetDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:         GetDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		NonceTTL:           GetDurationEnv("NONCE_TTL", 15*time.Minute),
		NonceSweepInterval: GetDurationEnv("NONCE_SWEEP_INTERVAL", 5*time.Minute),
		LogMode:            GetEnv("LOG_MODE", "console"),
		LogLevel:           GetEnv("LOG_LEVEL", "info"),
		EVMRPC:             loadRPCEndpoints(os.Environ()),
	}
}

// IsProduction checks if the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

const rpcPrefix = "EVM_RPC_"

// loadRPCEndpoints collects EVM_RPC_<CHAIN>=<url> pairs.
func loadRPCEndpoints(environ []string) map[string]string {
	endpoints := make(map[string]string)
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || val == "" || !strings.HasPrefix(key, rpcPrefix) {
			continue
		}
		chain := strings.ToLower(strings.TrimPrefix(key, rpcPrefix))
		if chain != "" {
			endpoints[chain] = val
		}
	}
	return endpoints
}
