package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"recruit-pipeline/domain"
)

type Config struct {
	HTTPPort string

	DBDriver string
	DBDSN    string

	RabbitMQURL       string
	NotificationQueue string
	RedisURL          string

	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	SMSEnabled  bool
	SMSEndpoint string
	SMSAPIKey   string

	// OperatorTokens maps a static bearer token to the operator name recorded in audit rows.
	OperatorTokens map[string]string

	MaxInterviewRound  int
	DraftTTL           time.Duration
	DraftSweepInterval time.Duration
	StoreTimeout       time.Duration
	UploadTimeout      time.Duration
	NotifyTimeout      time.Duration

	MaxAttachmentBytes      int64
	MaxAttachmentTotalBytes int64

	ReferenceCacheTTL time.Duration
	IntakeRatePerMin  int
	AuditDefaultDays  int

	LogLevel string
	SeedFile string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("NOTIFICATION_QUEUE", "interview_notifications")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("SMS_ENABLED", false)
	v.SetDefault("MAX_INTERVIEW_ROUND", domain.DefaultMaxRound)
	v.SetDefault("DRAFT_TTL", 24*time.Hour)
	v.SetDefault("DRAFT_SWEEP_INTERVAL", 0)
	v.SetDefault("STORE_TIMEOUT", 5*time.Second)
	v.SetDefault("UPLOAD_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_TIMEOUT", 5*time.Second)
	v.SetDefault("MAX_ATTACHMENT_MB", 10)
	v.SetDefault("MAX_ATTACHMENT_TOTAL_MB", 40)
	v.SetDefault("REFERENCE_CACHE_TTL", 5*time.Minute)
	v.SetDefault("INTAKE_RATE_PER_MIN", 20)
	v.SetDefault("AUDIT_DEFAULT_DAYS", 30)
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromViper(newViper())
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPPort:                v.GetString("HTTP_PORT"),
		DBDriver:                strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:                   v.GetString("DB_DSN"),
		RabbitMQURL:             v.GetString("RABBITMQ_URL"),
		NotificationQueue:       v.GetString("NOTIFICATION_QUEUE"),
		RedisURL:                v.GetString("REDIS_URL"),
		S3Bucket:                v.GetString("S3_BUCKET"),
		S3Endpoint:              v.GetString("S3_ENDPOINT"),
		S3Region:                v.GetString("S3_REGION"),
		S3AccessKey:             v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:             v.GetString("S3_SECRET_KEY"),
		SMSEnabled:              v.GetBool("SMS_ENABLED"),
		SMSEndpoint:             v.GetString("SMS_ENDPOINT"),
		SMSAPIKey:               v.GetString("SMS_API_KEY"),
		MaxInterviewRound:       v.GetInt("MAX_INTERVIEW_ROUND"),
		DraftTTL:                v.GetDuration("DRAFT_TTL"),
		DraftSweepInterval:      v.GetDuration("DRAFT_SWEEP_INTERVAL"),
		StoreTimeout:            v.GetDuration("STORE_TIMEOUT"),
		UploadTimeout:           v.GetDuration("UPLOAD_TIMEOUT"),
		NotifyTimeout:           v.GetDuration("NOTIFY_TIMEOUT"),
		MaxAttachmentBytes:      v.GetInt64("MAX_ATTACHMENT_MB") << 20,
		MaxAttachmentTotalBytes: v.GetInt64("MAX_ATTACHMENT_TOTAL_MB") << 20,
		ReferenceCacheTTL:       v.GetDuration("REFERENCE_CACHE_TTL"),
		IntakeRatePerMin:        v.GetInt("INTAKE_RATE_PER_MIN"),
		AuditDefaultDays:        v.GetInt("AUDIT_DEFAULT_DAYS"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		SeedFile:                v.GetString("SEED_FILE"),
	}

	tokens, err := ParseOperatorTokens(v.GetString("OPERATOR_TOKENS"))
	if err != nil {
		return nil, err
	}
	cfg.OperatorTokens = tokens

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBDriver != "mysql" && c.DBDriver != "postgres" {
		return fmt.Errorf("DB_DRIVER must be mysql or postgres, got %q", c.DBDriver)
	}
	if c.MaxInterviewRound < 1 {
		return fmt.Errorf("MAX_INTERVIEW_ROUND must be at least 1")
	}
	if c.DraftTTL <= 0 {
		return fmt.Errorf("DRAFT_TTL must be positive")
	}
	if c.MaxAttachmentBytes <= 0 || c.MaxAttachmentTotalBytes < c.MaxAttachmentBytes {
		return fmt.Errorf("attachment limits are inconsistent")
	}
	return nil
}

// RequireServer checks settings only the HTTP server and worker need.
func (c *Config) RequireServer() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is not set in environment")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is not set in environment")
	}
	if len(c.OperatorTokens) == 0 {
		return fmt.Errorf("OPERATOR_TOKENS is not set in environment")
	}
	return nil
}

// ParseOperatorTokens parses "token:name,token:name".
func ParseOperatorTokens(raw string) (map[string]string, error) {
	tokens := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, name, ok := strings.Cut(pair, ":")
		token, name = strings.TrimSpace(token), strings.TrimSpace(name)
		if !ok || token == "" || name == "" {
			return nil, fmt.Errorf("invalid OPERATOR_TOKENS entry %q", pair)
		}
		tokens[token] = name
	}
	return tokens, nil
}
