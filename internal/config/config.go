package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"postpilot"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"postpilot"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Poller
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	PollBatchSize      int           `envconfig:"POLL_BATCH_SIZE" default:"10"`
	RetryBaseDelay     time.Duration `envconfig:"RETRY_BASE_DELAY" default:"5m"`
	RetryMaxDelay      time.Duration `envconfig:"RETRY_MAX_DELAY" default:"24h"`
	JobTimeout         time.Duration `envconfig:"JOB_TIMEOUT" default:"2m"`
	StaleRunningAfter  time.Duration `envconfig:"STALE_RUNNING_AFTER" default:"15m"`
	DefaultMaxAttempts int           `envconfig:"DEFAULT_MAX_ATTEMPTS" default:"3"`

	// Collaborators
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	WeaviateHost     string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme   string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WordPressBaseURL string `envconfig:"WORDPRESS_BASE_URL"`
	WordPressToken   string `envconfig:"WORDPRESS_TOKEN"`
	BillingBaseURL   string `envconfig:"BILLING_BASE_URL"`
	BillingToken     string `envconfig:"BILLING_TOKEN"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may also be set in the shell, so a missing .env is fine.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.PollBatchSize <= 0 {
		return fmt.Errorf("%w: POLL_BATCH_SIZE must be positive", ErrMissingRequired)
	}
	if c.DefaultMaxAttempts <= 0 {
		return fmt.Errorf("%w: DEFAULT_MAX_ATTEMPTS must be positive", ErrMissingRequired)
	}
	return nil
}
