// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDBMaxConns() int
	GetDBMinConns() int
	GetDBMaxConnLifetime() time.Duration
	GetDBMaxConnIdleTime() time.Duration
}

// SchedulerConfig provides settings for the asynq job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetJobTimeout() time.Duration
	GetJobMaxRetry() int
}

// SMSConfig provides settings for the SMS/MMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSRatePerSecond() float64
	GetPhoneDefaultRegion() string
}

// EmailConfig provides SMTP settings for outbound email.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}

// SuggestionConfig provides settings for the reply suggestion generator.
type SuggestionConfig interface {
	GetGeminiAPIKey() string
	GetSuggestionModel() string
	IsSuggestionEnabled() bool
}

// KafkaConfig provides settings for the lifecycle event stream.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaEventTopic() string
	IsKafkaEnabled() bool
}

// ObservabilityConfig provides settings for metrics and error reporting.
type ObservabilityConfig interface {
	GetMetricsAddr() string
	GetSentryDSN() string
}

// LifecycleConfig provides tuning knobs for the lifecycle core.
type LifecycleConfig interface {
	GetDefaultCalendarURL() string
	GetEscalationDelay() time.Duration
	GetNoResponseScanSpec() string
	GetNoResponseScanBatch() int
	GetDeadLetterRetention() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	DatabaseURL         string
	DBMaxConns          int
	DBMinConns          int
	DBMaxConnLifetime   time.Duration
	DBMaxConnIdleTime   time.Duration
	MigrationsEnabled   bool
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	JobTimeout          time.Duration
	JobMaxRetry         int
	SMSGatewayURL       string
	SMSGatewayKey       string
	SMSRatePerSecond    float64
	PhoneDefaultRegion  string
	EmailEnabled        bool
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	EmailFromName       string
	EmailFromAddress    string
	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOUseSSL         bool
	GeminiAPIKey        string
	SuggestionModel     string
	KafkaBrokers        []string
	KafkaEventTopic     string
	MetricsAddr         string
	SentryDSN           string
	DefaultCalendarURL  string
	EscalationDelay     time.Duration
	NoResponseScanSpec  string
	NoResponseScanBatch int
	DeadLetterRetention time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string              { return c.DatabaseURL }
func (c *Config) GetDBMaxConns() int                  { return c.DBMaxConns }
func (c *Config) GetDBMinConns() int                  { return c.DBMinConns }
func (c *Config) GetDBMaxConnLifetime() time.Duration { return c.DBMaxConnLifetime }
func (c *Config) GetDBMaxConnIdleTime() time.Duration { return c.DBMaxConnIdleTime }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string           { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool     { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string     { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int      { return c.AsynqConcurrency }
func (c *Config) GetJobTimeout() time.Duration  { return c.JobTimeout }
func (c *Config) GetJobMaxRetry() int           { return c.JobMaxRetry }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string      { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string      { return c.SMSGatewayKey }
func (c *Config) GetSMSRatePerSecond() float64  { return c.SMSRatePerSecond }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) IsMinIOEnabled() bool      { return c.MinIOEndpoint != "" }

// SuggestionConfig implementation
func (c *Config) GetGeminiAPIKey() string    { return c.GeminiAPIKey }
func (c *Config) GetSuggestionModel() string { return c.SuggestionModel }
func (c *Config) IsSuggestionEnabled() bool  { return c.GeminiAPIKey != "" }

// KafkaConfig implementation
func (c *Config) GetKafkaBrokers() []string  { return c.KafkaBrokers }
func (c *Config) GetKafkaEventTopic() string { return c.KafkaEventTopic }
func (c *Config) IsKafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaEventTopic != ""
}

// ObservabilityConfig implementation
func (c *Config) GetMetricsAddr() string { return c.MetricsAddr }
func (c *Config) GetSentryDSN() string   { return c.SentryDSN }

// LifecycleConfig implementation
func (c *Config) GetDefaultCalendarURL() string     { return c.DefaultCalendarURL }
func (c *Config) GetEscalationDelay() time.Duration { return c.EscalationDelay }
func (c *Config) GetNoResponseScanSpec() string     { return c.NoResponseScanSpec }
func (c *Config) GetNoResponseScanBatch() int       { return c.NoResponseScanBatch }
func (c *Config) GetDeadLetterRetention() time.Duration {
	return c.DeadLetterRetention
}

const dbReservedConns = 5

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	smtpUsername := getEnv("SMTP_USERNAME", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBMaxConns:          mustInt(getEnv("DB_MAX_CONNS", "0")),
		DBMinConns:          mustInt(getEnv("DB_MIN_CONNS", "2")),
		DBMaxConnLifetime:   mustDuration(getEnv("DB_MAX_CONN_LIFETIME", "1h")),
		DBMaxConnIdleTime:   mustDuration(getEnv("DB_MAX_CONN_IDLE_TIME", "30m")),
		MigrationsEnabled:   strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		JobTimeout:          mustDuration(getEnv("JOB_TIMEOUT", "30s")),
		JobMaxRetry:         mustInt(getEnv("JOB_MAX_RETRY", "5")),
		SMSGatewayURL:       getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:       getEnv("SMS_GATEWAY_KEY", ""),
		SMSRatePerSecond:    mustFloat(getEnv("SMS_RATE_PER_SECOND", "5")),
		PhoneDefaultRegion:  getEnv("PHONE_DEFAULT_REGION", "US"),
		EmailEnabled:        emailEnabled && getEnv("SMTP_HOST", "") != "",
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:        smtpUsername,
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "Leadflow"),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:         strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		SuggestionModel:     getEnv("SUGGESTION_MODEL", "gemini-2.5-flash"),
		KafkaBrokers:        splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaEventTopic:     getEnv("KAFKA_EVENT_TOPIC", "lead-events"),
		MetricsAddr:         getEnv("METRICS_ADDR", ":9090"),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		DefaultCalendarURL:  getEnv("DEFAULT_CALENDAR_URL", ""),
		EscalationDelay:     mustDuration(getEnv("NURTURE_ESCALATION_DELAY", "1h")),
		NoResponseScanSpec:  getEnv("NO_RESPONSE_SCAN_SPEC", "@every 1h"),
		NoResponseScanBatch: mustInt(getEnv("NO_RESPONSE_SCAN_BATCH", "500")),
		DeadLetterRetention: mustDuration(getEnv("DEAD_LETTER_RETENTION", "720h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DBMaxConns <= 0 {
		// One connection per job handler plus the scanner and dead-letter cleanup.
		cfg.DBMaxConns = cfg.AsynqConcurrency + dbReservedConns
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		cfg.DBMinConns = cfg.DBMaxConns
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("JOB_TIMEOUT must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
