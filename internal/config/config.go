package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Version     string `envconfig:"VERSION" default:"dev"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	StorageEndpoint  string        `envconfig:"STORAGE_ENDPOINT" default:""`
	StorageAccessKey string        `envconfig:"STORAGE_ACCESS_KEY" default:""`
	StorageSecretKey string        `envconfig:"STORAGE_SECRET_KEY" default:""`
	StorageBucket    string        `envconfig:"STORAGE_BUCKET" default:"huddle-film"`
	StorageUseSSL    bool          `envconfig:"STORAGE_USE_SSL" default:"true"`
	UploadURLTTL     time.Duration `envconfig:"UPLOAD_URL_TTL" default:"15m"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" default:""`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" default:""`
	AppBaseURL          string `envconfig:"APP_BASE_URL" default:"http://localhost:3000"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	SendgridAPIKey string `envconfig:"SENDGRID_API_KEY" default:""`
	MailFrom       string `envconfig:"MAIL_FROM" default:"noreply@huddle.app"`

	RollbarToken string `envconfig:"ROLLBAR_TOKEN" default:""`

	TrialDays       int `envconfig:"TRIAL_DAYS" default:"14"`
	SweeperInterval int `envconfig:"SWEEPER_INTERVAL" default:"60"`
}

// StorageEnabled reports whether film storage credentials are configured.
func (c *Config) StorageEnabled() bool {
	return c.StorageEndpoint != "" && c.StorageAccessKey != "" && c.StorageSecretKey != ""
}

// SweepEvery returns the billing sweeper period.
func (c *Config) SweepEvery() time.Duration {
	if c.SweeperInterval < 1 {
		return time.Minute
	}
	return time.Duration(c.SweeperInterval) * time.Second
}

// LoadDotEnv loads variables from the given files, or ".env" when none are
// named. Missing files are skipped and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
