package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load loads configuration from environment variables with fallback to defaults
func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Printf("Warning: Error loading .env file: %v", err)
		fmt.Println("Continuing with environment variables...")
	}

	config := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:        getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:        getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			GracefulStop:       getEnvInt("SERVER_GRACEFUL_STOP", 30),
			RateLimitPerMinute: getEnvInt("SERVER_RATE_LIMIT_PER_MINUTE", 60),
			RateLimitBurstSize: getEnvInt("SERVER_RATE_LIMIT_BURST_SIZE", 10),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "sysalert.db"),
			Username:        getEnv("DB_USERNAME", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		},
		Security: SecurityConfig{
			MasterKey:    getEnv("MASTER_KEY", ""),
			AdminUserIDs: getEnvInt64Slice("ADMIN_USER_IDS", nil),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/sysalert.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 28),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Queue: QueueConfig{
			WorkerCount:        getEnvInt("QUEUE_WORKER_COUNT", 3),
			Capacity:           getEnvInt("QUEUE_CAPACITY", 1024),
			MaxAttempts:        getEnvInt("QUEUE_MAX_ATTEMPTS", 5),
			PerChatRateSeconds: getEnvFloat("PER_CHAT_RATE_SECONDS", 1.0),
		},
		Telegram: TelegramConfig{
			Token:          getEnv("TELEGRAM_TOKEN", ""),
			RequestTimeout: getEnvInt("TELEGRAM_REQUEST_TIMEOUT", 15),
			BotName:        getEnv("BOT_NAME", "SysAlert"),
		},
		Monitor: MonitorConfig{
			MaxConcurrentChecks:    getEnvInt("MAX_CONCURRENT_CHECKS", 50),
			MinIntervalSeconds:     getEnvInt("MIN_INTERVAL_SECONDS", 20),
			DefaultIntervalSeconds: getEnvInt("DEFAULT_INTERVAL_SECONDS", 60),
			ConnectionTimeout:      getEnvFloat("CONNECTION_TIMEOUT", 10),
			FailureThreshold:       getEnvInt("FAILURE_THRESHOLD", 3),
			MaxTargetsPerUser:      getEnvInt("MAX_TARGETS_PER_USER", 10),
		},
		Benchmark: BenchmarkConfig{
			Enabled:             getEnvBool("CPU_BENCH_ENABLED", true),
			MainnetURL:          getEnv("CPU_BENCH_MAINNET_URL", ""),
			TestnetURL:          getEnv("CPU_BENCH_TESTNET_URL", ""),
			ThresholdSeconds:    getEnvFloat("CPU_BENCH_THRESHOLD_SECONDS", 0.35),
			PollIntervalSeconds: getEnvInt("CPU_BENCH_INTERVAL", 300),
			RequestTimeout:      getEnvFloat("CPU_BENCH_REQUEST_TIMEOUT", 10),
			MaxTargetsPerUser:   getEnvInt("MAX_BENCH_TARGETS_PER_USER", 5),
		},
	}

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateConfig validates required configuration fields
func validateConfig(config *Config) error {
	if config.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	if config.Security.MasterKey == "" {
		return fmt.Errorf("MASTER_KEY is required")
	}

	if _, err := base64.StdEncoding.DecodeString(config.Security.MasterKey); err != nil {
		return fmt.Errorf("MASTER_KEY must be base64-encoded: %w", err)
	}

	if config.Monitor.MinIntervalSeconds <= 0 {
		return fmt.Errorf("MIN_INTERVAL_SECONDS must be positive")
	}

	if config.Monitor.DefaultIntervalSeconds < config.Monitor.MinIntervalSeconds {
		return fmt.Errorf("DEFAULT_INTERVAL_SECONDS must be >= MIN_INTERVAL_SECONDS")
	}

	return nil
}

// URLForNetwork resolves the benchmark endpoint for a network class.
// Returns an empty string when the network has no configured URL.
func (c *BenchmarkConfig) URLForNetwork(network string) string {
	switch network {
	case "mainnet":
		return c.MainnetURL
	case "testnet":
		return c.TestnetURL
	default:
		return ""
	}
}

// IsAdmin reports whether the chat id belongs to a configured administrator.
func (c *SecurityConfig) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminUserIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
	case "sqlite":
		return c.Database
	default:
		return ""
	}
}

// GetServerAddr returns the server address string
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64Slice(key string, defaultValue []int64) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
