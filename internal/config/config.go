package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlotCacheTTL  time.Duration

	AuthJWTSecret      string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Booking engine knobs
	SlotGranularityMinutes int
	DefaultDurationMinutes int
	LowBalanceThreshold    int
	CancelRefundLeadTime   time.Duration
	ConsultationTypes      []string

	// Side-effect dispatch
	UseMemoryQueue      bool
	SideEffectQueueURL  string
	WorkerCount         int
	SideEffectTimeout   time.Duration
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Video-conferencing provider
	VideoAPIBaseURL string
	VideoAPIKey     string
	VideoTimeout    time.Duration

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlotCacheTTL:  getEnvAsDuration("SLOT_CACHE_TTL", 30*time.Second),

		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		SlotGranularityMinutes: getEnvAsInt("SLOT_GRANULARITY_MINUTES", 30),
		DefaultDurationMinutes: getEnvAsInt("DEFAULT_DURATION_MINUTES", 30),
		LowBalanceThreshold:    getEnvAsInt("LOW_BALANCE_THRESHOLD", 2),
		CancelRefundLeadTime:   getEnvAsDuration("CANCEL_REFUND_LEAD_TIME", 24*time.Hour),
		ConsultationTypes:      getEnvAsListDefault("CONSULTATION_TYPES", []string{"video", "audio", "chat"}),

		UseMemoryQueue:      getEnvAsBool("USE_MEMORY_QUEUE", false),
		SideEffectQueueURL:  getEnv("SIDE_EFFECT_QUEUE_URL", ""),
		WorkerCount:         getEnvAsInt("WORKER_COUNT", 2),
		SideEffectTimeout:   getEnvAsDuration("SIDE_EFFECT_TIMEOUT", 10*time.Second),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		VideoAPIBaseURL: getEnv("VIDEO_API_BASE_URL", ""),
		VideoAPIKey:     getEnv("VIDEO_API_KEY", ""),
		VideoTimeout:    getEnvAsDuration("VIDEO_TIMEOUT", 5*time.Second),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "MedLink"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "MedLink"),
	}
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
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	return getEnvAsListDefault(key, nil)
}

func getEnvAsListDefault(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
