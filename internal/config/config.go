package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Contact   ContactConfig   `yaml:"contact"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Turnstile TurnstileConfig `yaml:"turnstile"`
	Storage   StorageConfig   `yaml:"storage"`
	SES       SESConfig       `yaml:"ses"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ContactConfig holds contact form policy settings
type ContactConfig struct {
	DestEmail          string   `yaml:"dest_email"`
	MailFrom           string   `yaml:"mail_from"`
	RequireCaptcha     bool     `yaml:"require_captcha"`
	MinSecondsToSubmit int      `yaml:"min_seconds_to_submit"`
	URLDenylist        []string `yaml:"url_denylist"`
}

// RateLimitConfig holds per-client admission limits
type RateLimitConfig struct {
	PerHour int `yaml:"per_hour"`
	PerDay  int `yaml:"per_day"`
}

// TurnstileConfig holds Cloudflare Turnstile verification settings
type TurnstileConfig struct {
	Secret         string `yaml:"secret"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig selects and configures the rate-counter backend
type StorageConfig struct {
	Backend       string `yaml:"backend"` // "dynamodb", "redis" or "postgres"
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
	RedisURL      string `yaml:"redis_url"`
	PostgresURL   string `yaml:"postgres_url"`
}

// SESConfig holds AWS SES credentials for outbound mail
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// DefaultURLDenylist lists shortener/paste hosts never accepted as a
// verification URL. Config entries are additive.
var DefaultURLDenylist = []string{"bit.ly", "t.co", "tinyurl.com", "pastebin.com"}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.RateLimit.PerHour == 0 {
		c.RateLimit.PerHour = 3
	}
	if c.RateLimit.PerDay == 0 {
		c.RateLimit.PerDay = 10
	}
	if c.Contact.MinSecondsToSubmit == 0 {
		c.Contact.MinSecondsToSubmit = 3
	}
	c.Contact.URLDenylist = append(c.Contact.URLDenylist, DefaultURLDenylist...)
	if c.Turnstile.Endpoint == "" {
		c.Turnstile.Endpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	}
	if c.Turnstile.TimeoutSeconds == 0 {
		c.Turnstile.TimeoutSeconds = 5
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "dynamodb"
	}
	if c.Storage.DynamoDBTable == "" {
		c.Storage.DynamoDBTable = "RateLimits"
	}
	if c.Storage.AWSRegion == "" {
		c.Storage.AWSRegion = "us-east-1"
	}
	if c.SES.Region == "" {
		c.SES.Region = "us-east-1"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in the container.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DEST_EMAIL"); v != "" {
		cfg.Contact.DestEmail = v
	}
	if v := os.Getenv("MAIL_FROM"); v != "" {
		cfg.Contact.MailFrom = v
	}
	if v := os.Getenv("REQUIRE_TURNSTILE"); v != "" {
		cfg.Contact.RequireCaptcha = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("TURNSTILE_SECRET"); v != "" {
		cfg.Turnstile.Secret = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.PerHour = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.PerDay = n
		}
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// Validate checks that configuration required at runtime is present.
func (c *Config) Validate() error {
	if c.Contact.DestEmail == "" {
		return fmt.Errorf("contact.dest_email is required")
	}
	if c.Contact.MailFrom == "" {
		return fmt.Errorf("contact.mail_from is required")
	}
	if c.Contact.RequireCaptcha && c.Turnstile.Secret == "" {
		return fmt.Errorf("turnstile.secret is required when captcha is mandatory")
	}
	switch c.Storage.Backend {
	case "dynamodb":
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required for the redis backend")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
