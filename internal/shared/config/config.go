package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// External pay provider
	PayGateway PayGatewayConfig

	// Kafka payment events
	Kafka KafkaConfig

	// Background sweep of unapplied cancellations
	Reconcile ReconcileConfig

	// STOMP chat
	Chat ChatConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// TTL values for different operations
	SeatCacheTTL    time.Duration
	PaymentCacheTTL time.Duration
	HeaderLockTTL   time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	JWTExpiresIn time.Duration
	Issuer       string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled                 bool          `json:"enabled"`
	WindowDuration          time.Duration `json:"window_duration"`
	DefaultRequests         int           `json:"default_requests"`
	HealthRequests          int           `json:"health_requests"`
	PaymentCriticalRequests int           `json:"payment_critical_requests"`
	PaymentReadRequests     int           `json:"payment_read_requests"`
	ChatRequests            int           `json:"chat_requests"`
	WhitelistedIPs          []string      `json:"whitelisted_ips"`
}

// PayGatewayConfig holds the pay provider endpoint and credentials
type PayGatewayConfig struct {
	BaseURL    string
	SecretKey  string
	AuthScheme string
	CID        string
	Timeout    time.Duration
}

// KafkaConfig holds payment event producer configuration
type KafkaConfig struct {
	Enabled            bool
	Brokers            []string
	PaymentEventsTopic string
	RetryMax           int
}

// ReconcileConfig holds the pending-cancellation sweeper settings
type ReconcileConfig struct {
	Enabled   bool
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

// ChatConfig holds websocket/STOMP configuration
type ChatConfig struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "topgun_db"),
			User:     getEnv("DB_USER", "topgun_user"),
			Password: getEnv("DB_PASSWORD", "topgun_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			SeatCacheTTL:    getDurationEnv("REDIS_SEAT_CACHE_TTL", time.Minute),
			PaymentCacheTTL: getDurationEnv("REDIS_PAYMENT_CACHE_TTL", 2*time.Minute),
			HeaderLockTTL:   getDurationEnv("REDIS_HEADER_LOCK_TTL", 30*time.Second),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			JWTExpiresIn: getDurationEnvSeconds("JWT_EXPIRES_IN", 60*time.Minute),
			Issuer:       getEnv("JWT_ISSUER", "topgun"),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:                 getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:          getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:         getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			HealthRequests:          getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			PaymentCriticalRequests: getIntEnv("RATE_LIMIT_PAYMENT_CRITICAL_REQUESTS", 10),
			PaymentReadRequests:     getIntEnv("RATE_LIMIT_PAYMENT_READ_REQUESTS", 60),
			ChatRequests:            getIntEnv("RATE_LIMIT_CHAT_REQUESTS", 120),
			WhitelistedIPs:          getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Pay provider
		PayGateway: PayGatewayConfig{
			BaseURL:    getEnv("PAY_BASE_URL", "https://open-api.kakaopay.com"),
			SecretKey:  getEnv("PAY_SECRET_KEY", ""),
			AuthScheme: getEnv("PAY_AUTH_SCHEME", "SECRET_KEY"),
			CID:        getEnv("PAY_CID", "TC0ONETIME"),
			Timeout:    getDurationEnv("PAY_TIMEOUT", 10*time.Second),
		},

		// Kafka
		Kafka: KafkaConfig{
			Enabled:            getBoolEnv("KAFKA_ENABLED", false),
			Brokers:            getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			PaymentEventsTopic: getEnv("PAYMENT_EVENTS_TOPIC", "payment-events"),
			RetryMax:           getIntEnv("KAFKA_RETRY_MAX", 3),
		},

		// Reconcile job
		Reconcile: ReconcileConfig{
			Enabled:   getBoolEnv("RECONCILE_ENABLED", true),
			Interval:  getDurationEnv("RECONCILE_INTERVAL", time.Minute),
			Grace:     getDurationEnv("RECONCILE_GRACE", 2*time.Minute),
			BatchSize: getIntEnv("RECONCILE_BATCH_SIZE", 100),
		},

		// Chat
		Chat: ChatConfig{
			AllowedOrigins: getStringSliceEnv("CHAT_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			SendBuffer:     getIntEnv("CHAT_SEND_BUFFER", 64),
			WriteWait:      getDurationEnv("CHAT_WRITE_WAIT", 10*time.Second),
			MaxMessageSize: getInt64Env("CHAT_MAX_MESSAGE_SIZE", 64*1024),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getInt64Env gets an int64 environment variable with a fallback value
func getInt64Env(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
