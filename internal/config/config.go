package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel int    `env:"LOG_LEVEL" envDefault:"0"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	DynamoTables         DynamoTables  `envPrefix:"DYNAMO_TABLE_"`
	DynamoConnectTimeout time.Duration `env:"DYNAMO_CONNECT_TIMEOUT" envDefault:"5s"`
	// Covers table creation on a fresh account, which takes tens of seconds.
	DynamoBootstrapTimeout time.Duration `env:"DYNAMO_BOOTSTRAP_TIMEOUT" envDefault:"2m"`

	S3BucketName string `env:"S3_BUCKET_NAME" envDefault:"marisec-avatars"`

	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CookieSecure *bool         `env:"COOKIE_SECURE"`

	OTP OTP `envPrefix:"OTP_"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SNSEnabled bool   `env:"SNS_ENABLED" envDefault:"false"`
	SNSRegion  string `env:"SNS_REGION" envDefault:"us-east-1"`

	KafkaBrokers         []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaUserEventsTopic string   `env:"KAFKA_TOPIC_USER_EVENTS" envDefault:"user-events"`

	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	// Set only behind a proxy that overwrites X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users      string `env:"USERS" envDefault:"users"`
	OTPRecords string `env:"OTP_RECORDS" envDefault:"otp_records"`
}

// OTP holds one-time passcode policy.
type OTP struct {
	Pepper           string        `env:"PEPPER"` // falls back to JWT_SECRET
	TTL              time.Duration `env:"TTL" envDefault:"10m"`
	MaxAttempts      int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	DeliveryRequired bool          `env:"DELIVERY_REQUIRED" envDefault:"true"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.OTP.MaxAttempts < 1 {
		return nil, fmt.Errorf("OTP_MAX_ATTEMPTS must be positive, got %d", cfg.OTP.MaxAttempts)
	}
	if cfg.OTP.Pepper == "" {
		cfg.OTP.Pepper = cfg.JWTSecret
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies reports whether session cookies carry the Secure attribute.
// An explicit COOKIE_SECURE wins; otherwise production implies secure.
func (c *Config) SecureCookies() bool {
	if c.CookieSecure != nil {
		return *c.CookieSecure
	}
	return c.IsProduction()
}

// KafkaEnabled reports whether user events are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
