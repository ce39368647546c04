package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Store       StoreConfig       `yaml:"store"`
	Mailer      MailerConfig      `yaml:"mailer"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Retention   RetentionConfig   `yaml:"retention"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port               int      `yaml:"port"`
	Host               string   `yaml:"host"`
	BaseURL            string   `yaml:"base_url"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// StoreConfig selects the tracking record backend
type StoreConfig struct {
	Backend       string `yaml:"backend"` // "postgres", "dynamodb", or "memory"
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StoreConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "" // Running on ECS or Lambda, use IAM role
	}
	return c.AWSProfile
}

// MailerConfig holds outbound email configuration
type MailerConfig struct {
	Provider       string     `yaml:"provider"` // "ses" or "smtp"
	FromEmail      string     `yaml:"from_email"`
	FromName       string     `yaml:"from_name"`
	ReplyTo        string     `yaml:"reply_to"`
	MaxRetries     int        `yaml:"max_retries"`
	TimeoutSeconds int        `yaml:"timeout_seconds"`
	SES            SESConfig  `yaml:"ses"`
	SMTP           SMTPConfig `yaml:"smtp"`
}

// Timeout returns the configured timeout as a duration
func (c MailerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FromAddress returns the RFC 5322 sender, "Name <email>" when a display
// name is configured.
func (c MailerConfig) FromAddress() string {
	if c.FromName != "" {
		return fmt.Sprintf("%s <%s>", c.FromName, c.FromEmail)
	}
	return c.FromEmail
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// SMTPConfig holds SMTP relay configuration
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Addr returns the host:port dial address for the relay.
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AttachmentsConfig holds resume attachment source configuration
type AttachmentsConfig struct {
	Source     string `yaml:"source"` // "local" or "s3"
	ResumePath string `yaml:"resume_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Key      string `yaml:"s3_key"`
	AWSRegion  string `yaml:"aws_region"`
}

// TrackingConfig holds engagement event pipeline configuration
type TrackingConfig struct {
	QueueURL string `yaml:"queue_url"` // SQS queue for engagement events; empty disables the pipeline
	Port     int    `yaml:"port"`      // listen port for the standalone edge beacon binary
}

// RetentionConfig holds tracking record retention sweeper configuration
type RetentionConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxAgeDays    int  `yaml:"max_age_days"`
	IntervalHours int  `yaml:"interval_hours"`
}

// MaxAge returns the retention window as a duration
func (c RetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// Interval returns the sweep interval as a duration
func (c RetentionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// RedisConfig holds optional Redis configuration (distributed locking)
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig holds structured logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

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

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.DynamoDBTable == "" {
		cfg.Store.DynamoDBTable = "tracking-records"
	}
	if cfg.Store.AWSRegion == "" {
		cfg.Store.AWSRegion = "us-west-2"
	}
	if cfg.Mailer.Provider == "" {
		cfg.Mailer.Provider = "smtp"
	}
	if cfg.Mailer.TimeoutSeconds == 0 {
		cfg.Mailer.TimeoutSeconds = 30
	}
	if cfg.Mailer.SES.Region == "" {
		cfg.Mailer.SES.Region = "us-west-2"
	}
	if cfg.Mailer.SMTP.Port == 0 {
		cfg.Mailer.SMTP.Port = 587
	}
	if cfg.Attachments.Source == "" {
		cfg.Attachments.Source = "local"
	}
	if cfg.Attachments.AWSRegion == "" {
		cfg.Attachments.AWSRegion = cfg.Store.AWSRegion
	}
	if cfg.Tracking.Port == 0 {
		cfg.Tracking.Port = 8081
	}
	if cfg.Retention.MaxAgeDays == 0 {
		cfg.Retention.MaxAgeDays = 180
	}
	if cfg.Retention.IntervalHours == 0 {
		cfg.Retention.IntervalHours = 24
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// A missing config file is not an error here: fresh checkouts and
// container deployments run on defaults plus environment variables.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
		applyDefaults(cfg)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
		if cfg.Store.Backend == "memory" {
			cfg.Store.Backend = "postgres"
		}
	}

	// Mailer overrides
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Mailer.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Mailer.SMTP.Port = p
		}
	}
	if username := os.Getenv("SMTP_USERNAME"); username != "" {
		cfg.Mailer.SMTP.Username = username
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.Mailer.SMTP.Password = password
	}
	if from := os.Getenv("FROM_EMAIL"); from != "" {
		cfg.Mailer.FromEmail = from
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.Mailer.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.Mailer.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Mailer.SES.Region = region
	}

	// Attachment overrides
	if path := os.Getenv("RESUME_PATH"); path != "" {
		cfg.Attachments.ResumePath = path
	}

	// Pipeline overrides
	if queueURL := os.Getenv("SQS_TRACKING_QUEUE_URL"); queueURL != "" {
		cfg.Tracking.QueueURL = queueURL
	}
	if port := os.Getenv("TRACKING_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Tracking.Port = p
		}
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}

	return cfg, nil
}
