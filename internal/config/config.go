package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names recognised by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	LogLevel string
	LogFile  string // empty disables the rotating file sink

	JWTSecret string // empty falls back to the development secret outside production
	JWTExpiry time.Duration

	RedisURL string
	OTPTTL   time.Duration

	ResendAPIKey string
	EmailFrom    string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string

	SMSProvider        string // "client" | "sns"
	SMSSimulateFailure bool
	SNSRegion          string

	UserStore      string // "dynamo" | "mongo"
	MongoURI       string
	MongoDatabase  string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	GoogleClientID        string
	GoogleCredentialsFile string

	OTelEndpoint string

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users          string
	UserIdentities string
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, EnvProduction)
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "5000"),
		AppEnv:   getEnv("APP_ENV", EnvDevelopment),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 30)) * 24 * time.Hour,

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		OTPTTL:   time.Duration(getEnvInt("OTP_TTL_SECONDS", 600)) * time.Second,

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", ""),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", ""),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SMSProvider:        strings.ToLower(getEnv("SMS_PROVIDER", "client")),
		SMSSimulateFailure: getEnvBool("SMS_SIMULATE_FAILURE", false),
		SNSRegion:          getEnv("SNS_REGION", "us-east-1"),

		UserStore:      strings.ToLower(getEnv("USER_STORE", "dynamo")),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "storefront"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:          getEnv("DYNAMO_TABLE_USERS", "users"),
			UserIdentities: getEnv("DYNAMO_TABLE_USER_IDENTITIES", "user_identities"),
		},

		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		OTelEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
