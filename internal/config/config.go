package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/tair/parts-exchange/pkg/database"
	"github.com/tair/parts-exchange/pkg/tracing"
)

// Config is shared by every binary under cmd/
type Config struct {
	ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"listing-service"`
	Version     string `env:"SERVICE_VERSION" env-default:"1.0.0"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`

	HTTP       HTTPConfig
	Database   database.Config
	Redis      RedisConfig
	Kafka      KafkaConfig
	SMTP       SMTPConfig
	Validation ValidationConfig
	Tracing    tracing.Config
	Seed       SeedConfig
}

type HTTPConfig struct {
	Port           string        `env:"HTTP_PORT" env-default:"8080"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"30s"`
	CookieSecure   bool          `env:"COOKIE_SECURE" env-default:"false"`
}

type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB" env-default:"0"`
	WishlistTTL time.Duration `env:"WISHLIST_TTL" env-default:"0s"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID string   `env:"KAFKA_GROUP_ID" env-default:"validation-mailer"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" env-default:"mailhog"`
	Port     int    `env:"SMTP_PORT" env-default:"1025"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" env-default:"noreply@eea.com"`
	// Encryption is one of none, ssl, tls
	Encryption string `env:"SMTP_ENCRYPTION" env-default:"none"`

	MaxAttempts  int           `env:"MAIL_MAX_ATTEMPTS" env-default:"4"`
	RetryBackoff time.Duration `env:"MAIL_RETRY_BACKOFF" env-default:"10s"`
	SendTimeout  time.Duration `env:"MAIL_SEND_TIMEOUT" env-default:"10s"`
}

type ValidationConfig struct {
	BaseURL            string        `env:"BASE_URL" env-default:"http://localhost:8080"`
	EnqueueTimeout     time.Duration `env:"VALIDATION_ENQUEUE_TIMEOUT" env-default:"2s"`
	BreakerMaxFailures int           `env:"VALIDATION_BREAKER_FAILURES" env-default:"3"`
	BreakerOpenTimeout time.Duration `env:"VALIDATION_BREAKER_OPEN" env-default:"30s"`
}

type SeedConfig struct {
	RetryAttempts int           `env:"SEED_DB_RETRY" env-default:"30"`
	RetryDelay    time.Duration `env:"SEED_DB_RETRY_DELAY" env-default:"2s"`
	MigrationsDir string        `env:"MIGRATIONS_DIR" env-default:"migrations"`
	ImportDump    bool          `env:"IMPORT_DUMP" env-default:"false"`
	DumpFile      string        `env:"DUMP_FILE"`
}

// IsDevelopment reports whether pretty console logging should be used
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Validation.BaseURL == "" {
		return fmt.Errorf("BASE_URL must not be empty")
	}
	c.Validation.BaseURL = strings.TrimRight(c.Validation.BaseURL, "/")
	if c.SMTP.MaxAttempts < 1 {
		return fmt.Errorf("MAIL_MAX_ATTEMPTS must be at least 1, got %d", c.SMTP.MaxAttempts)
	}
	if c.Redis.WishlistTTL < 0 {
		return fmt.Errorf("WISHLIST_TTL must not be negative")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must list at least one broker")
	}
	return nil
}
